// Package api exposes search, generation and adaptation over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/umeshdangat/workout-ai/internal/apperr"
	"github.com/umeshdangat/workout-ai/internal/metrics"
	"github.com/umeshdangat/workout-ai/internal/plan"
	"github.com/umeshdangat/workout-ai/internal/retrieval"
)

const (
	defaultSearchTopK = 10
	maxBodyBytes      = 1 << 20
)

type Searcher interface {
	SearchCategorized(ctx context.Context, query string, topK int, includeWarmups, includeCooldowns bool) (*retrieval.SearchResponse, error)
}

type Generator interface {
	// Generate validates and normalizes profile in place.
	Generate(ctx context.Context, profile *plan.Profile) (plan.Plan, error)
}

type Adapter interface {
	Adapt(ctx context.Context, p plan.Plan, fb plan.Feedback) (plan.Plan, error)
}

type PlanStore interface {
	SavePlan(ctx context.Context, rec plan.Record) (plan.Record, error)
	GetPlan(ctx context.Context, id string) (plan.Record, error)
	GetPlanRevision(ctx context.Context, id string, revision int) (plan.Record, error)
}

type Options struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// API holds the services the handlers call into.
type API struct {
	search  Searcher
	gen     Generator
	adapter Adapter
	store   PlanStore
	metrics *metrics.Metrics
	opts    Options
	log     zerolog.Logger
}

func NewAPI(search Searcher, gen Generator, adapter Adapter, store PlanStore, m *metrics.Metrics, opts Options, log zerolog.Logger) *API {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &API{
		search:  search,
		gen:     gen,
		adapter: adapter,
		store:   store,
		metrics: m,
		opts:    opts,
		log:     log.With().Str("component", "api").Logger(),
	}
}

// Routes builds the router with its middleware stack.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.accessLog)
	r.Use(middleware.Recoverer)
	if a.opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(a.opts.RequestTimeout))
	}
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: a.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	})
	r.Use(corsMiddleware.Handler)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		a.respondWithJSON(w, http.StatusOK, map[string]string{"message": "WorkoutAI API is running!"})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", a.metrics.Handler())

	r.Route("/workouts", func(r chi.Router) {
		r.Get("/search_similar_workouts", a.SearchSimilarWorkouts)
		r.Post("/generate", a.GeneratePlan)
		r.Post("/adapt", a.AdaptPlan)
	})
	r.Route("/plans/{planId}", func(r chi.Router) {
		r.Get("/", a.GetPlan)
		r.Get("/revisions/{revision}", a.GetPlanRevision)
		r.Post("/adapt", a.AdaptStoredPlan)
	})
	return r
}

// --- Helper Functions ---

type errorBody struct {
	Kind   apperr.Kind `json:"kind"`
	Detail string      `json:"detail"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidInput, apperr.InvalidReference:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.IndexUnavailable:
		return http.StatusServiceUnavailable
	case apperr.UpstreamTimeout:
		return http.StatusGatewayTimeout
	case apperr.UpstreamUnavailable:
		return http.StatusBadGateway
	case apperr.GenerationFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	detail := apperr.DetailOf(err)
	if errors.Is(err, context.DeadlineExceeded) && kind == apperr.Internal {
		kind, detail = apperr.UpstreamTimeout, "request timed out"
	}
	code := statusFor(kind)
	if code >= http.StatusInternalServerError {
		a.log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Str("kind", string(kind)).Msg("request failed")
	}
	if kind == apperr.Internal {
		detail = "internal error"
	}
	a.respondWithJSON(w, code, map[string]errorBody{"error": {Kind: kind, Detail: detail}})
}

func (a *API) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"kind": "Internal", "detail": "failed to marshal JSON response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.InvalidInput, err, "invalid request payload: %v", err)
	}
	return nil
}

func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		a.metrics.ObserveRequest(route, status)
		a.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
