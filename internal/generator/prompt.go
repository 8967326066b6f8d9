package generator

import (
	"fmt"
	"strings"

	"github.com/umeshdangat/workout-ai/internal/llm"
	"github.com/umeshdangat/workout-ai/internal/plan"
	"github.com/umeshdangat/workout-ai/internal/retrieval"
)

const systemPrompt = "You are a highly experienced coach generating structured workout programs. " +
	"You answer with a single JSON object and nothing else."

const defaultSessionLength = "75-90 minutes"

const firstWeekContinuity = "No data from previous weeks provided. Start with baseline workouts for week 1."

var guidelines = []string{
	`Avoid repeating benchmark CrossFit WODs like "Grace" or "Fran" multiple times in the program. Create new, custom workouts with unique names.`,
	"Incorporate progressive overload for strength training and Olympic lifts (increase weight, volume or intensity weekly).",
	"Include CrossFit WODs with high-skill movements where the athlete's level allows it.",
	"Balance WODs, strength sessions and recovery days to avoid overtraining.",
	`Use only these session types: "WOD", "Strength", "Accessory", "Active Recovery", "Rest Day". Every session needs details.description.`,
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

func writeAthlete(sb *strings.Builder, p plan.Profile) {
	fmt.Fprintf(sb, "Athlete: %s, a %d-year-old %s athlete.\n\n", p.Name, p.Age, p.Experience)
	sb.WriteString("Athlete Goals:\n")
	for _, g := range p.Goals {
		fmt.Fprintf(sb, "- %s\n", g)
	}
	sb.WriteString("\nAthlete Details:\n")
	fmt.Fprintf(sb, "- Available equipment: %s\n", orNone(p.Equipment))
	fmt.Fprintf(sb, "- Injuries: %s\n", orNone(p.Injuries))
	fmt.Fprintf(sb, "- Avoid these exercises: %s\n", orNone(p.AvoidExercises))
	fmt.Fprintf(sb, "- Sessions per week: %d\n", p.SessionsPerWeek)
	constraints := p.Constraints
	if constraints == "" {
		constraints = defaultSessionLength
	}
	fmt.Fprintf(sb, "- Session duration: %s\n\n", constraints)
}

func writeReferences(sb *strings.Builder, refs []retrieval.Result) {
	sb.WriteString("Reference Workouts (retrieved from similar programs):\n")
	if len(refs) == 0 {
		sb.WriteString("- None available.\n\n")
		return
	}
	for _, r := range refs {
		fmt.Fprintf(sb, "%d. %s - %s | Type: %s | Score: %s\n", r.Rank, r.Title, r.Description, r.WorkoutType, r.ScoreType)
	}
	sb.WriteString("\n")
}

func writeGuidelines(sb *strings.Builder) {
	sb.WriteString("Training Guidelines:\n")
	for _, g := range guidelines {
		fmt.Fprintf(sb, "- %s\n", g)
	}
	sb.WriteString("\n")
}

func writeShape(sb *strings.Builder, rules plan.Rules) {
	sb.WriteString("Plan Shape:\n")
	if rules.Weeks > 0 {
		fmt.Fprintf(sb, "- Exactly %d weeks.\n", rules.Weeks)
	}
	if rules.DaysPerWeek > 0 {
		fmt.Fprintf(sb, "- Every week has exactly %d days. A rest day is a day with an empty sessions list or a single \"Rest Day\" session.\n", rules.DaysPerWeek)
	}
	sb.WriteString("\n")
}

func writeOutput(sb *strings.Builder, schemaText string) {
	sb.WriteString("Output Requirements:\n")
	sb.WriteString("- Return only a valid JSON object. Do not wrap it in markdown.\n")
	sb.WriteString("- The response must follow this JSON schema:\n")
	sb.WriteString(schemaText)
	sb.WriteString("\n")
}

func planPrompt(p plan.Profile, refs []retrieval.Result, rules plan.Rules) llm.Prompt {
	var sb strings.Builder
	sb.WriteString("Create a complete periodized training plan in valid JSON.\n\n")
	writeAthlete(&sb, p)
	writeReferences(&sb, refs)
	writeGuidelines(&sb)
	writeShape(&sb, rules)
	writeOutput(&sb, plan.SchemaText(plan.PlanSchema))
	fmt.Fprintf(&sb, "\nName the plan and generate all %d weeks.", rules.Weeks)

	return llm.Prompt{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: sb.String()},
		},
		SchemaName:  "training_plan",
		Description: "A periodized training plan",
		Schema:      plan.PlanSchema,
	}
}

func weekPrompt(p plan.Profile, refs []retrieval.Result, rules plan.Rules, week int, previous string) llm.Prompt {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create week %d of a %d-week training plan in valid JSON.\n\n", week, rules.Weeks)
	writeAthlete(&sb, p)
	writeReferences(&sb, refs)
	writeGuidelines(&sb)

	sb.WriteString("Program Continuity:\n")
	if previous == "" {
		previous = firstWeekContinuity
	}
	fmt.Fprintf(&sb, "- Summary of the previous week: %s\n", previous)
	sb.WriteString("- Increase load, volume or intensity for strength sessions week to week.\n")
	sb.WriteString("- Introduce progressively harder WODs or higher-skill movements as the athlete progresses.\n\n")

	writeShape(&sb, plan.Rules{DaysPerWeek: rules.DaysPerWeek})
	writeOutput(&sb, plan.SchemaText(plan.WeekSchema))
	fmt.Fprintf(&sb, "\nGenerate week %d only.", week)

	return llm.Prompt{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: sb.String()},
		},
		SchemaName:  "training_week",
		Description: "One week of a periodized training plan",
		Schema:      plan.WeekSchema,
	}
}
