package plan

import (
	"fmt"
	"strings"
)

// CalendarDays is the default number of days in a plan week.
const CalendarDays = 7

// maxProblems caps how many violations are reported back to the model.
const maxProblems = 10

// Rules are the structural constraints a plan must satisfy.
type Rules struct {
	// Weeks is the required week count.
	Weeks int
	// DaysPerWeek is the required day count of every week. Zero skips the check.
	DaysPerWeek int
}

// DaysMode selects how the per-week day count is derived from a profile.
type DaysMode string

const (
	DaysCalendar DaysMode = "calendar"
	DaysSessions DaysMode = "sessions"
)

// RulesFor derives plan rules for a generation request.
func RulesFor(p Profile, mode DaysMode) Rules {
	r := Rules{Weeks: p.DurationWeeks, DaysPerWeek: CalendarDays}
	if mode == DaysSessions {
		r.DaysPerWeek = p.SessionsPerWeek
	}
	return r
}

// ValidationError lists every structural violation found in a plan.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	shown := e.Problems
	suffix := ""
	if len(shown) > maxProblems {
		suffix = fmt.Sprintf("; and %d more", len(shown)-maxProblems)
		shown = shown[:maxProblems]
	}
	return "invalid plan: " + strings.Join(shown, "; ") + suffix
}

type collector struct {
	problems []string
}

func (c *collector) addf(format string, args ...any) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

func (c *collector) err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: c.problems}
}

// Validate checks p against r.
func (p Plan) Validate(r Rules) error {
	c := &collector{}
	if strings.TrimSpace(p.Name) == "" {
		c.addf("plan name is empty")
	}
	if len(p.Weeks) != r.Weeks {
		c.addf("expected %d weeks, got %d", r.Weeks, len(p.Weeks))
	}
	for i, w := range p.Weeks {
		checkWeek(c, fmt.Sprintf("week %d", i+1), w, r.DaysPerWeek)
	}
	return c.err()
}

// ValidateWeek checks a single week with the given day count (zero skips it).
func ValidateWeek(w Week, daysPerWeek int) error {
	c := &collector{}
	checkWeek(c, "week", w, daysPerWeek)
	return c.err()
}

// ValidateDay checks every session of a single day.
func ValidateDay(d Day) error {
	c := &collector{}
	checkDay(c, "day", d)
	return c.err()
}

// ValidateSession checks a single session.
func ValidateSession(s Session) error {
	c := &collector{}
	checkSession(c, "session", s)
	return c.err()
}

func checkWeek(c *collector, where string, w Week, daysPerWeek int) {
	if daysPerWeek > 0 && len(w.Days) != daysPerWeek {
		c.addf("%s: expected %d days, got %d", where, daysPerWeek, len(w.Days))
	}
	for j, d := range w.Days {
		checkDay(c, fmt.Sprintf("%s day %d", where, j+1), d)
	}
}

func checkDay(c *collector, where string, d Day) {
	for k, s := range d.Sessions {
		checkSession(c, fmt.Sprintf("%s session %d", where, k+1), s)
	}
}

func checkSession(c *collector, where string, s Session) {
	if !KnownSessionType(s.Type) {
		c.addf("%s: unknown session type %q", where, s.Type)
	}
	if strings.TrimSpace(s.Details.Description) == "" {
		c.addf("%s: details.description is empty", where)
	}
}
