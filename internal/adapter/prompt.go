package adapter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/umeshdangat/workout-ai/internal/llm"
	"github.com/umeshdangat/workout-ai/internal/plan"
)

const systemPrompt = "You are a highly experienced coach revising an existing training plan from athlete feedback. " +
	"You answer with a single JSON object and nothing else."

func adaptPrompt(p plan.Plan, fb plan.Feedback) (llm.Prompt, error) {
	level := fb.Target.Level()
	current, err := json.MarshalIndent(fragment(p, fb.Target), "", "  ")
	if err != nil {
		return llm.Prompt{}, fmt.Errorf("failed to encode plan fragment: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Revise the training plan %q according to the athlete's feedback. Target: %s.\n\n", p.Name, fb.Target)

	sb.WriteString("Plan Context:\n")
	fmt.Fprintf(&sb, "- The plan has %d weeks.\n", len(p.Weeks))
	if level != plan.LevelPlan {
		fmt.Fprintf(&sb, "- Week %d currently looks like this: %s\n", fb.Target.Week, plan.SummarizeWeek(p.Weeks[fb.Target.Week-1]))
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Current %s:\n%s\n\n", level, current)

	sb.WriteString("Athlete Feedback:\n")
	if fb.Text != "" {
		fmt.Fprintf(&sb, "%s\n", fb.Text)
	}
	if len(fb.Deltas) > 0 {
		sb.WriteString("Requested changes:\n")
		for _, d := range fb.Deltas {
			if d.Detail != "" {
				fmt.Fprintf(&sb, "- %s: %s\n", d.Op, d.Detail)
			} else {
				fmt.Fprintf(&sb, "- %s\n", d.Op)
			}
		}
	}
	sb.WriteString("\n")

	sb.WriteString("Output Requirements:\n")
	fmt.Fprintf(&sb, "- Return only the revised %s as a JSON object with the same structure as above. Do not wrap it in markdown.\n", level)
	switch level {
	case plan.LevelPlan:
		fmt.Fprintf(&sb, "- Keep exactly %d weeks and the same number of days in every week.\n", len(p.Weeks))
	case plan.LevelWeek:
		fmt.Fprintf(&sb, "- Keep exactly %d days.\n", len(p.Weeks[fb.Target.Week-1].Days))
	}
	sb.WriteString(`- Use only these session types: "WOD", "Strength", "Accessory", "Active Recovery", "Rest Day". Every session needs details.description.` + "\n")
	sb.WriteString("- The response must follow this JSON schema:\n")
	sb.WriteString(plan.SchemaText(plan.SchemaFor(level)))
	sb.WriteString("\n")

	return llm.Prompt{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: sb.String()},
		},
		SchemaName:  "revised_" + level.String(),
		Description: "The revised " + level.String() + " of a training plan",
		Schema:      plan.SchemaFor(level),
	}, nil
}
