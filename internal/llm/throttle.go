package llm

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/umeshdangat/workout-ai/internal/apperr"
)

// ThrottledModel spaces model calls at least interval apart across the process.
type ThrottledModel struct {
	next    Model
	limiter *rate.Limiter
}

func NewThrottledModel(next Model, interval time.Duration) *ThrottledModel {
	return &ThrottledModel{next: next, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (m *ThrottledModel) Complete(ctx context.Context, p Prompt) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", ctx.Err()
		}
		return "", apperr.Wrap(apperr.UpstreamTimeout, err, "waiting for a model call slot")
	}
	return m.next.Complete(ctx, p)
}
