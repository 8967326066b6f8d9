// Package generator produces training plans from an athlete profile using
// retrieved reference workouts and a generative model.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/umeshdangat/workout-ai/internal/apperr"
	"github.com/umeshdangat/workout-ai/internal/llm"
	"github.com/umeshdangat/workout-ai/internal/metrics"
	"github.com/umeshdangat/workout-ai/internal/plan"
	"github.com/umeshdangat/workout-ai/internal/retrieval"
)

type Mode string

const (
	// ModeWhole asks for the full plan in one call.
	ModeWhole Mode = "whole"
	// ModeWeekByWeek asks for one week per call, carrying a summary forward.
	ModeWeekByWeek Mode = "week_by_week"
)

const DefaultTopK = 5

type Options struct {
	TopK int
	Mode Mode
	Days plan.DaysMode
}

// Searcher finds reference workouts for a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]retrieval.Result, error)
}

type Generator struct {
	search  Searcher
	model   llm.Model
	opts    Options
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func New(search Searcher, model llm.Model, opts Options, m *metrics.Metrics, log zerolog.Logger) *Generator {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Mode == "" {
		opts.Mode = ModeWhole
	}
	if opts.Days == "" {
		opts.Days = plan.DaysCalendar
	}
	return &Generator{
		search:  search,
		model:   model,
		opts:    opts,
		metrics: m,
		log:     log.With().Str("component", "generator").Logger(),
	}
}

// Generate builds a plan for profile. The result always has exactly
// profile.DurationWeeks weeks. profile is validated and normalized in place,
// so callers can store it afterwards without validating it themselves.
func (g *Generator) Generate(ctx context.Context, in *plan.Profile) (plan.Plan, error) {
	if err := in.Validate(); err != nil {
		return plan.Plan{}, err
	}
	profile := *in
	rules := plan.RulesFor(profile, g.opts.Days)

	query := retrievalQuery(profile)
	refs, err := g.search.Search(ctx, query, g.opts.TopK)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("failed to retrieve reference workouts: %w", err)
	}
	g.log.Debug().Str("query", query).Int("references", len(refs)).Str("mode", string(g.opts.Mode)).Msg("generating plan")

	ctx = llm.WithOperation(ctx, "generate")
	if g.opts.Mode == ModeWeekByWeek {
		return g.generateWeekly(ctx, profile, refs, rules)
	}
	return g.generateWhole(ctx, profile, refs, rules)
}

func (g *Generator) generateWhole(ctx context.Context, profile plan.Profile, refs []retrieval.Result, rules plan.Rules) (plan.Plan, error) {
	var out plan.Plan
	calls, err := llm.Conform(ctx, g.model, planPrompt(profile, refs, rules), func(raw string) error {
		var p plan.Plan
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return fmt.Errorf("response is not a plan object: %w", err)
		}
		if strings.TrimSpace(p.Name) == "" {
			p.Name = defaultPlanName(profile)
		}
		if err := p.Validate(rules); err != nil {
			return err
		}
		out = p
		return nil
	})
	g.metrics.ObserveAttempts("generate", calls)
	if err != nil {
		g.log.Warn().Err(err).Int("calls", calls).Msg("plan generation failed")
		return plan.Plan{}, err
	}
	g.log.Info().Str("plan", out.Name).Int("weeks", len(out.Weeks)).Int("calls", calls).Msg("plan generated")
	return out, nil
}

func (g *Generator) generateWeekly(ctx context.Context, profile plan.Profile, refs []retrieval.Result, rules plan.Rules) (plan.Plan, error) {
	out := plan.Plan{Name: defaultPlanName(profile), Weeks: make([]plan.Week, 0, rules.Weeks)}
	previous := ""
	for n := 1; n <= rules.Weeks; n++ {
		var week plan.Week
		calls, err := llm.Conform(ctx, g.model, weekPrompt(profile, refs, rules, n, previous), func(raw string) error {
			var w plan.Week
			if err := json.Unmarshal([]byte(raw), &w); err != nil {
				return fmt.Errorf("response is not a week object: %w", err)
			}
			if err := plan.ValidateWeek(w, rules.DaysPerWeek); err != nil {
				return err
			}
			week = w
			return nil
		})
		g.metrics.ObserveAttempts("generate_week", calls)
		if err != nil {
			g.log.Warn().Err(err).Int("week", n).Int("calls", calls).Msg("week generation failed")
			return plan.Plan{}, fmt.Errorf("week %d: %w", n, err)
		}
		out.Weeks = append(out.Weeks, week)
		previous = plan.SummarizeWeek(week)
		g.log.Debug().Int("week", n).Int("calls", calls).Msg("week generated")
	}
	if err := out.Validate(rules); err != nil {
		return plan.Plan{}, apperr.Wrap(apperr.GenerationFailed, err, "assembled plan failed validation: %v", err)
	}
	g.log.Info().Str("plan", out.Name).Int("weeks", len(out.Weeks)).Msg("plan generated")
	return out, nil
}

func retrievalQuery(p plan.Profile) string {
	return strings.Join(p.Goals, ", ") + " " + string(p.Experience)
}

func defaultPlanName(p plan.Profile) string {
	return p.Name + "'s Plan"
}
