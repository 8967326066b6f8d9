// Package plan holds the periodized training plan schema and its structural rules.
package plan

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/invopop/jsonschema"
)

type SessionType string

const (
	SessionWOD            SessionType = "WOD"
	SessionStrength       SessionType = "Strength"
	SessionAccessory      SessionType = "Accessory"
	SessionActiveRecovery SessionType = "Active Recovery"
	SessionRestDay        SessionType = "Rest Day"
)

// KnownSessionType reports whether t is one of the session types a plan may carry.
func KnownSessionType(t SessionType) bool {
	switch t {
	case SessionWOD, SessionStrength, SessionAccessory, SessionActiveRecovery, SessionRestDay:
		return true
	}
	return false
}

// FlexString decodes from either a JSON string or a JSON number.
// Models return "sets": 5 and "reps": "1+2" interchangeably.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (FlexString) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string"}
}

// Int returns the leading integer of the value, or 0.
func (f FlexString) Int() int {
	s := string(f)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

type Movement struct {
	Description string `json:"description" jsonschema_description:"Movement with load or distance, e.g. Thrusters (95/65 lbs)"`
	Resources   string `json:"resources,omitempty" jsonschema_description:"Optional link to a movement demo"`
}

type SessionDetail struct {
	Description      string     `json:"description" jsonschema_description:"What the athlete does in this session"`
	IntendedStimulus string     `json:"intended_stimulus,omitempty" jsonschema_description:"Stimulus goal, e.g. quick and intense"`
	ScalingOptions   string     `json:"scaling_options,omitempty" jsonschema_description:"Scaling guidance"`
	Movements        []Movement `json:"movements,omitempty" jsonschema_description:"Ordered movements of the session"`
	Sets             FlexString `json:"sets,omitempty" jsonschema_description:"Strength only: number of sets"`
	Reps             FlexString `json:"reps,omitempty" jsonschema_description:"Strength only: reps per set, e.g. 5 or 1+2"`
	Intensity        string     `json:"intensity,omitempty" jsonschema_description:"Load or effort, e.g. 80% of 1RM"`
	Rest             string     `json:"rest,omitempty" jsonschema_description:"Rest between sets"`
	Notes            string     `json:"notes,omitempty" jsonschema_description:"Execution notes"`
	Activities       []string   `json:"activities,omitempty" jsonschema_description:"Active recovery activities"`
	Duration         string     `json:"duration,omitempty" jsonschema_description:"Duration of the session"`
}

type Session struct {
	Type    SessionType   `json:"type" jsonschema:"enum=WOD,enum=Strength,enum=Accessory,enum=Active Recovery,enum=Rest Day" jsonschema_description:"Kind of session"`
	Details SessionDetail `json:"details"`
}

// Day is an ordered list of sessions. An empty day is a rest day.
type Day struct {
	Sessions []Session `json:"sessions" jsonschema_description:"Sessions of the day in order, empty for a rest day"`
}

type Week struct {
	Days []Day `json:"days" jsonschema_description:"Days of the week in order"`
}

// Plan is a periodized training plan.
type Plan struct {
	Name  string `json:"name" jsonschema_description:"Program name"`
	Weeks []Week `json:"weeks" jsonschema_description:"Weeks of the program in order"`
}

// Record is a persisted plan revision.
type Record struct {
	ID        string    `json:"id"`
	Revision  int       `json:"revision"`
	Plan      Plan      `json:"plan"`
	Profile   *Profile  `json:"profile,omitempty"`
	Feedback  *Feedback `json:"feedback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
