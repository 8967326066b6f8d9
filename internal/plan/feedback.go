package plan

import (
	"strconv"
	"strings"

	"github.com/umeshdangat/workout-ai/internal/apperr"
)

// Level is the granularity of a feedback target.
type Level int

const (
	LevelPlan Level = iota
	LevelWeek
	LevelDay
	LevelSession
)

func (l Level) String() string {
	switch l {
	case LevelWeek:
		return "week"
	case LevelDay:
		return "day"
	case LevelSession:
		return "session"
	default:
		return "plan"
	}
}

// Target points at the part of a plan a feedback applies to.
// Indexes are 1-based; zero means "not set".
type Target struct {
	Week    int `json:"week,omitempty"`
	Day     int `json:"day,omitempty"`
	Session int `json:"session,omitempty"`
}

func (t Target) Level() Level {
	switch {
	case t.Session > 0:
		return LevelSession
	case t.Day > 0:
		return LevelDay
	case t.Week > 0:
		return LevelWeek
	default:
		return LevelPlan
	}
}

// Resolve checks t against the bounds of p.
func (t Target) Resolve(p Plan) error {
	if t.Week < 0 || t.Day < 0 || t.Session < 0 {
		return apperr.New(apperr.InvalidReference, "negative index in target %+v", t)
	}
	if t.Day > 0 && t.Week == 0 {
		return apperr.New(apperr.InvalidReference, "day %d given without a week", t.Day)
	}
	if t.Session > 0 && t.Day == 0 {
		return apperr.New(apperr.InvalidReference, "session %d given without a day", t.Session)
	}
	if t.Week == 0 {
		return nil
	}
	if t.Week > len(p.Weeks) {
		return apperr.New(apperr.InvalidReference, "week %d out of range, plan has %d weeks", t.Week, len(p.Weeks))
	}
	if t.Day == 0 {
		return nil
	}
	week := p.Weeks[t.Week-1]
	if t.Day > len(week.Days) {
		return apperr.New(apperr.InvalidReference, "day %d out of range, week %d has %d days", t.Day, t.Week, len(week.Days))
	}
	if t.Session == 0 {
		return nil
	}
	day := week.Days[t.Day-1]
	if t.Session > len(day.Sessions) {
		return apperr.New(apperr.InvalidReference, "session %d out of range, week %d day %d has %d sessions",
			t.Session, t.Week, t.Day, len(day.Sessions))
	}
	return nil
}

func (t Target) String() string {
	switch t.Level() {
	case LevelWeek:
		return "week " + strconv.Itoa(t.Week)
	case LevelDay:
		return "week " + strconv.Itoa(t.Week) + " day " + strconv.Itoa(t.Day)
	case LevelSession:
		return "week " + strconv.Itoa(t.Week) + " day " + strconv.Itoa(t.Day) + " session " + strconv.Itoa(t.Session)
	default:
		return "whole plan"
	}
}

// Delta is a structured change request accompanying free-text feedback.
type Delta struct {
	Op     string `json:"op"`
	Detail string `json:"detail,omitempty"`
}

// Feedback asks for a revision of (part of) a plan.
type Feedback struct {
	Text   string  `json:"feedback"`
	Target Target  `json:"target"`
	Deltas []Delta `json:"deltas,omitempty"`
}

// Validate requires some instruction, either text or at least one delta.
func (f *Feedback) Validate() error {
	f.Text = strings.TrimSpace(f.Text)
	if f.Text == "" && len(f.Deltas) == 0 {
		return apperr.New(apperr.InvalidInput, "feedback text or deltas are required")
	}
	for i, d := range f.Deltas {
		if strings.TrimSpace(d.Op) == "" {
			return apperr.New(apperr.InvalidInput, "delta %d has no op", i+1)
		}
	}
	return nil
}
