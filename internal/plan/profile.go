package plan

import (
	"strings"

	"github.com/umeshdangat/workout-ai/internal/apperr"
)

type Experience string

const (
	Beginner     Experience = "beginner"
	Intermediate Experience = "intermediate"
	Advanced     Experience = "advanced"
)

// Profile is the athlete description a plan is generated for.
type Profile struct {
	Name            string     `json:"name"`
	Age             int        `json:"age"`
	Experience      Experience `json:"experience"`
	Goals           []string   `json:"goals"`
	Equipment       []string   `json:"equipment"`
	SessionsPerWeek int        `json:"sessions_per_week"`
	DurationWeeks   int        `json:"duration"`
	Injuries        []string   `json:"injuries,omitempty"`
	AvoidExercises  []string   `json:"avoid_exercises,omitempty"`
	Constraints     string     `json:"constraints,omitempty"`
}

// Validate checks the profile fields and normalizes experience and sets.
func (p *Profile) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.New(apperr.InvalidInput, "name is required")
	}
	if p.Age <= 0 {
		return apperr.New(apperr.InvalidInput, "age must be positive, got %d", p.Age)
	}
	p.Experience = Experience(strings.ToLower(strings.TrimSpace(string(p.Experience))))
	switch p.Experience {
	case Beginner, Intermediate, Advanced:
	default:
		return apperr.New(apperr.InvalidInput, "experience must be beginner, intermediate or advanced, got %q", p.Experience)
	}
	if p.SessionsPerWeek <= 0 || p.SessionsPerWeek > 7*3 {
		return apperr.New(apperr.InvalidInput, "sessions_per_week out of range: %d", p.SessionsPerWeek)
	}
	if p.DurationWeeks <= 0 || p.DurationWeeks > 52 {
		return apperr.New(apperr.InvalidInput, "duration out of range: %d", p.DurationWeeks)
	}
	p.Goals = dedupe(p.Goals)
	p.Equipment = dedupe(p.Equipment)
	p.Injuries = dedupe(p.Injuries)
	p.AvoidExercises = dedupe(p.AvoidExercises)
	if len(p.Goals) == 0 {
		return apperr.New(apperr.InvalidInput, "at least one goal is required")
	}
	return nil
}

// dedupe trims entries and drops blanks and case-insensitive repeats, keeping order.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
