package plan

import (
	"fmt"
	"strings"
)

// SummarizeWeek renders a week as one line per day so the next week's prompt
// can continue the progression.
func SummarizeWeek(w Week) string {
	var parts []string
	for i, d := range w.Days {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Day %d:", i+1)
		if len(d.Sessions) == 0 {
			sb.WriteString(" Rest Day - Recovery & Rest.")
		}
		for _, s := range d.Sessions {
			det := s.Details
			switch s.Type {
			case SessionWOD:
				fmt.Fprintf(&sb, " WOD - %s | Stimulus: %s;", det.Description, det.IntendedStimulus)
			case SessionStrength:
				fmt.Fprintf(&sb, " Strength - %s, %sx%s at %s | Notes: %s;",
					det.Description, det.Sets, det.Reps, det.Intensity, det.Notes)
			case SessionRestDay:
				sb.WriteString(" Rest Day - Recovery & Rest.")
			case SessionActiveRecovery:
				fmt.Fprintf(&sb, " Active Recovery - %s, Duration: %s;", strings.Join(det.Activities, ", "), det.Duration)
			default:
				fmt.Fprintf(&sb, " %s - %s;", s.Type, det.Description)
			}
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, " ")
}
