package llm

import (
	"context"
	"time"

	"github.com/umeshdangat/workout-ai/internal/apperr"
	"github.com/umeshdangat/workout-ai/internal/metrics"
)

type operationKey struct{}

// WithOperation labels model calls made with ctx for metrics.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

func operationOf(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok {
		return op
	}
	return "unknown"
}

// InstrumentedModel records call counts and latency.
type InstrumentedModel struct {
	next    Model
	metrics *metrics.Metrics
}

func NewInstrumentedModel(next Model, m *metrics.Metrics) *InstrumentedModel {
	return &InstrumentedModel{next: next, metrics: m}
}

func (m *InstrumentedModel) Complete(ctx context.Context, p Prompt) (string, error) {
	start := time.Now()
	out, err := m.next.Complete(ctx, p)
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	m.metrics.ObserveModelCall(operationOf(ctx), outcome, time.Since(start))
	return out, err
}
