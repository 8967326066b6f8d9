package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/umeshdangat/workout-ai/internal/apperr"
	"github.com/umeshdangat/workout-ai/internal/corpus"
	"github.com/umeshdangat/workout-ai/internal/llm"
)

const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// Sink receives embedded workouts.
type Sink interface {
	InsertWorkouts(ctx context.Context, workouts []corpus.Workout) error
}

type Options struct {
	BatchSize   int
	Concurrency int
	// Dimension, when set, is the embedding size every vector must have.
	Dimension int
}

type Pipeline struct {
	embedder llm.Embedder
	sink     Sink
	opts     Options
	log      zerolog.Logger
}

func NewPipeline(embedder llm.Embedder, sink Sink, opts Options, log zerolog.Logger) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Pipeline{
		embedder: embedder,
		sink:     sink,
		opts:     opts,
		log:      log.With().Str("component", "ingest").Logger(),
	}
}

// Run embeds workouts in concurrent batches and stores them in their
// original order. Nothing is stored if any batch fails.
func (p *Pipeline) Run(ctx context.Context, workouts []corpus.Workout) ([]corpus.Workout, error) {
	out := make([]corpus.Workout, len(workouts))
	copy(out, workouts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for start := 0; start < len(out); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(out))
		batch := out[start:end]
		g.Go(func() error {
			return p.embedBatch(gctx, batch)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := p.opts.Dimension
	for _, w := range out {
		if dim == 0 {
			dim = len(w.Embedding)
		}
		if len(w.Embedding) != dim {
			return nil, apperr.New(apperr.EmbeddingDimensionMismatch,
				"workout %s embedded with %d dimensions, expected %d", w.ID, len(w.Embedding), dim)
		}
	}

	if err := p.sink.InsertWorkouts(ctx, out); err != nil {
		return nil, fmt.Errorf("failed to store workouts: %w", err)
	}
	p.log.Info().Int("workouts", len(out)).Int("dimension", dim).Msg("corpus ingested")
	return out, nil
}

func (p *Pipeline) embedBatch(ctx context.Context, batch []corpus.Workout) error {
	texts := make([]string, len(batch))
	for i, w := range batch {
		texts[i] = w.Text()
	}
	vecs, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch starting at %s: %w", batch[0].ID, err)
	}
	if len(vecs) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d workouts", len(vecs), len(batch))
	}
	for i := range batch {
		batch[i].Embedding = vecs[i]
	}
	p.log.Debug().Int("batch", len(batch)).Msg("batch embedded")
	return nil
}
