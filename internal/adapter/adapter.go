// Package adapter revises an existing plan from athlete feedback, touching
// only the targeted week, day or session.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/umeshdangat/workout-ai/internal/apperr"
	"github.com/umeshdangat/workout-ai/internal/llm"
	"github.com/umeshdangat/workout-ai/internal/metrics"
	"github.com/umeshdangat/workout-ai/internal/plan"
)

type Adapter struct {
	model   llm.Model
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func New(model llm.Model, m *metrics.Metrics, log zerolog.Logger) *Adapter {
	return &Adapter{
		model:   model,
		metrics: m,
		log:     log.With().Str("component", "adapter").Logger(),
	}
}

// Adapt returns a revised copy of p. Parts of p outside the feedback target
// are carried over unchanged and p itself is never modified. The plan and
// target are checked before the model is called.
func (a *Adapter) Adapt(ctx context.Context, p plan.Plan, fb plan.Feedback) (plan.Plan, error) {
	if err := fb.Validate(); err != nil {
		return plan.Plan{}, err
	}
	if len(p.Weeks) == 0 {
		return plan.Plan{}, apperr.New(apperr.InvalidInput, "plan has no weeks")
	}
	rules := plan.Rules{Weeks: len(p.Weeks)}
	if err := p.Validate(rules); err != nil {
		return plan.Plan{}, apperr.Wrap(apperr.InvalidInput, err, "input plan is invalid: %v", err)
	}
	if err := fb.Target.Resolve(p); err != nil {
		return plan.Plan{}, err
	}

	prompt, err := adaptPrompt(p, fb)
	if err != nil {
		return plan.Plan{}, err
	}

	var out plan.Plan
	ctx = llm.WithOperation(ctx, "adapt")
	calls, err := llm.Conform(ctx, a.model, prompt, func(raw string) error {
		merged, err := merge(p, fb.Target, raw)
		if err != nil {
			return err
		}
		if err := merged.Validate(rules); err != nil {
			return err
		}
		out = merged
		return nil
	})
	a.metrics.ObserveAttempts("adapt", calls)
	if err != nil {
		a.log.Warn().Err(err).Str("target", fb.Target.String()).Int("calls", calls).Msg("adaptation failed")
		return plan.Plan{}, err
	}
	a.log.Info().Str("plan", out.Name).Str("target", fb.Target.String()).Int("calls", calls).Msg("plan adapted")
	return out, nil
}

// merge decodes the model's fragment and puts it in place of the target in a
// copy of orig.
func merge(orig plan.Plan, t plan.Target, raw string) (plan.Plan, error) {
	out := orig.Clone()
	switch t.Level() {
	case plan.LevelSession:
		var s plan.Session
		if err := decodeFragment(raw, &s); err != nil {
			return plan.Plan{}, err
		}
		out.Weeks[t.Week-1].Days[t.Day-1].Sessions[t.Session-1] = s
	case plan.LevelDay:
		var d plan.Day
		if err := decodeFragment(raw, &d); err != nil {
			return plan.Plan{}, err
		}
		out.Weeks[t.Week-1].Days[t.Day-1] = d
	case plan.LevelWeek:
		var w plan.Week
		if err := decodeFragment(raw, &w); err != nil {
			return plan.Plan{}, err
		}
		if want := len(orig.Weeks[t.Week-1].Days); len(w.Days) != want {
			return plan.Plan{}, fmt.Errorf("revised week must keep %d days, got %d", want, len(w.Days))
		}
		out.Weeks[t.Week-1] = w
	default:
		var p plan.Plan
		if err := decodeFragment(raw, &p); err != nil {
			return plan.Plan{}, err
		}
		if len(p.Weeks) != len(orig.Weeks) {
			return plan.Plan{}, fmt.Errorf("revised plan must keep %d weeks, got %d", len(orig.Weeks), len(p.Weeks))
		}
		for i := range p.Weeks {
			if want := len(orig.Weeks[i].Days); len(p.Weeks[i].Days) != want {
				return plan.Plan{}, fmt.Errorf("revised week %d must keep %d days, got %d", i+1, want, len(p.Weeks[i].Days))
			}
		}
		p.Name = orig.Name
		out = p
	}
	return out, nil
}

// decodeFragment rejects unknown fields so that a fragment of the wrong shape
// is not silently read as an empty one.
func decodeFragment(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("response does not match the requested fragment: %w", err)
	}
	return nil
}

// fragment returns the part of p addressed by t.
func fragment(p plan.Plan, t plan.Target) any {
	switch t.Level() {
	case plan.LevelSession:
		return p.Weeks[t.Week-1].Days[t.Day-1].Sessions[t.Session-1]
	case plan.LevelDay:
		return p.Weeks[t.Week-1].Days[t.Day-1]
	case plan.LevelWeek:
		return p.Weeks[t.Week-1]
	default:
		return p
	}
}
