package llm

import (
	"context"
	"errors"

	"github.com/umeshdangat/workout-ai/internal/apperr"
)

// maxAttempts is one call plus one corrective retry.
const maxAttempts = 2

// Conform calls the model and hands the extracted JSON to accept. If accept
// rejects it, the model is asked once more with the violation spelled out.
// Model errors (timeouts, outages) are returned as-is and never retried.
// It returns the number of model calls made.
func Conform(ctx context.Context, m Model, p Prompt, accept func(raw string) error) (int, error) {
	var lastErr error
	prompt := p
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		raw, err := m.Complete(ctx, prompt)
		if err != nil {
			return attempt, err
		}
		body := ExtractJSON(raw)
		if body == "" {
			lastErr = errors.New("response did not contain a JSON object")
		} else {
			lastErr = accept(body)
		}
		if lastErr == nil {
			return attempt, nil
		}
		prompt = p.WithCorrection(raw, lastErr.Error())
	}
	return maxAttempts, apperr.Wrap(apperr.GenerationFailed, lastErr,
		"model output did not conform to the plan schema after %d attempts: %v", maxAttempts, lastErr)
}
