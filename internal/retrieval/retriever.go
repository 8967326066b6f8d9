// Package retrieval finds the historical workouts closest to a free-text query.
package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/umeshdangat/workout-ai/internal/apperr"
	"github.com/umeshdangat/workout-ai/internal/corpus"
	"github.com/umeshdangat/workout-ai/internal/llm"
	"github.com/umeshdangat/workout-ai/internal/metrics"
)

// DefaultMaxTopK bounds topK when no limit is configured.
const DefaultMaxTopK = 50

// dimensionProbe is embedded at startup to learn the embedder's dimension.
const dimensionProbe = "dimension check"

// Result is one ranked match.
type Result struct {
	Rank        int     `json:"rank"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ScoreType   string  `json:"score_type"`
	WorkoutType string  `json:"workout_type"`
	Track       string  `json:"track"`
	CreatedAt   string  `json:"created_at"`
	Distance    float64 `json:"distance"`
}

// SearchResponse splits ranked matches by workout category.
type SearchResponse struct {
	Query     string   `json:"query"`
	Results   []Result `json:"results"`
	Warmups   []Result `json:"warmups,omitempty"`
	Cooldowns []Result `json:"cooldowns,omitempty"`
}

type Retriever struct {
	embedder llm.Embedder
	index    atomic.Pointer[Index]
	maxTopK  int
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func New(embedder llm.Embedder, maxTopK int, m *metrics.Metrics, log zerolog.Logger) *Retriever {
	if maxTopK <= 0 {
		maxTopK = DefaultMaxTopK
	}
	return &Retriever{
		embedder: embedder,
		maxTopK:  maxTopK,
		metrics:  m,
		log:      log.With().Str("component", "retriever").Logger(),
	}
}

// Load swaps in a new index. Searches already running keep the old one.
func (r *Retriever) Load(ix *Index) {
	r.index.Store(ix)
	r.metrics.SetCorpusSize(ix.Len())
	r.log.Info().Int("workouts", ix.Len()).Int("dimension", ix.Dim()).Msg("index loaded")
}

func (r *Retriever) Ready() bool {
	return r.index.Load() != nil
}

func (r *Retriever) MaxTopK() int {
	return r.maxTopK
}

// CheckDimension embeds a probe and fails if its dimension differs from the
// loaded index.
func (r *Retriever) CheckDimension(ctx context.Context) error {
	ix := r.index.Load()
	if ix == nil {
		return apperr.New(apperr.IndexUnavailable, "no index loaded")
	}
	if ix.Len() == 0 {
		return nil
	}
	vec, err := r.embedOne(ctx, dimensionProbe)
	if err != nil {
		return err
	}
	if len(vec) != ix.Dim() {
		return apperr.New(apperr.EmbeddingDimensionMismatch,
			"embedder returns %d dimensions, index was built with %d", len(vec), ix.Dim())
	}
	return nil
}

// Search returns up to topK workouts ranked by distance to query. Ranks are
// dense from 1; equal distances keep corpus order.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	start := time.Now()
	results, err := r.search(ctx, query, topK)
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	r.metrics.ObserveSearch(outcome, time.Since(start))
	return results, err
}

// SearchCategorized ranks like Search, then moves warmups and cooldowns into
// their own lists when asked for; otherwise they stay in the main results.
// Each list is ranked densely from 1 in distance order.
func (r *Retriever) SearchCategorized(ctx context.Context, query string, topK int, includeWarmups, includeCooldowns bool) (*SearchResponse, error) {
	ranked, err := r.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	ix := r.index.Load()
	resp := &SearchResponse{Query: strings.TrimSpace(query), Results: []Result{}}
	for _, res := range ranked {
		switch category := corpus.Categorize(res.Title, res.ScoreType); {
		case category == corpus.CategoryWarmup && includeWarmups:
			resp.Warmups = appendRanked(resp.Warmups, res)
		case category == corpus.CategoryCooldown && includeCooldowns:
			resp.Cooldowns = appendRanked(resp.Cooldowns, res)
		default:
			resp.Results = appendRanked(resp.Results, res)
		}
	}
	r.log.Debug().
		Int("corpus", ix.Len()).
		Int("results", len(resp.Results)).
		Int("warmups", len(resp.Warmups)).
		Int("cooldowns", len(resp.Cooldowns)).
		Msg("categorized search")
	return resp, nil
}

func (r *Retriever) search(ctx context.Context, query string, topK int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.New(apperr.InvalidInput, "query must not be empty")
	}
	if topK < 1 || topK > r.maxTopK {
		return nil, apperr.New(apperr.InvalidInput, "top_k must be between 1 and %d, got %d", r.maxTopK, topK)
	}
	ix := r.index.Load()
	if ix == nil {
		return nil, apperr.New(apperr.IndexUnavailable, "no index loaded")
	}
	if ix.Len() == 0 {
		return []Result{}, nil
	}

	vec, err := r.embedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vec) != ix.Dim() {
		return nil, apperr.New(apperr.EmbeddingDimensionMismatch,
			"query embedding has %d dimensions, index has %d", len(vec), ix.Dim())
	}

	neighbors := ix.nearest(vec, topK)
	results := make([]Result, len(neighbors))
	for i, n := range neighbors {
		w := ix.Workout(n.pos)
		results[i] = Result{
			Rank:        i + 1,
			Title:       w.Title,
			Description: w.Description,
			ScoreType:   w.ScoreType,
			WorkoutType: w.WorkoutType,
			Track:       w.Track,
			CreatedAt:   w.CreatedAt,
			Distance:    float64(n.distance),
		}
	}
	return results, nil
}

func (r *Retriever) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := r.embedder.Embed(ctx, []string{text})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.Wrap(apperr.UpstreamTimeout, err, "embedding call timed out")
		}
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, err, "failed to embed query")
	}
	if len(vecs) != 1 {
		return nil, apperr.New(apperr.UpstreamUnavailable, "embedder returned %d vectors for 1 input", len(vecs))
	}
	return vecs[0], nil
}

func appendRanked(list []Result, res Result) []Result {
	res.Rank = len(list) + 1
	return append(list, res)
}
