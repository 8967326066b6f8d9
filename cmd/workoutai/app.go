package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/umeshdangat/workout-ai/internal/adapter"
	"github.com/umeshdangat/workout-ai/internal/api"
	"github.com/umeshdangat/workout-ai/internal/apperr"
	"github.com/umeshdangat/workout-ai/internal/config"
	"github.com/umeshdangat/workout-ai/internal/database"
	"github.com/umeshdangat/workout-ai/internal/generator"
	"github.com/umeshdangat/workout-ai/internal/ingest"
	"github.com/umeshdangat/workout-ai/internal/llm"
	"github.com/umeshdangat/workout-ai/internal/metrics"
	"github.com/umeshdangat/workout-ai/internal/plan"
	"github.com/umeshdangat/workout-ai/internal/retrieval"
)

const shutdownTimeout = 5 * time.Second

// app owns the long-lived dependencies shared by every command.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	metrics   *metrics.Metrics
	store     database.Store
	embedder  llm.Embedder
	retriever *retrieval.Retriever
	index     *retrieval.Index
	closers   []io.Closer
}

func newApp(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	log := newLogger(os.Stderr, level)

	m := metrics.New()
	store, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		return nil, err
	}
	embedder := llm.NewOpenAIEmbedder(llm.EmbedderConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: firstNonEmpty(cfg.Embedding.BaseURL, cfg.LLM.BaseURL),
		Model:   cfg.Embedding.Model,
		Timeout: cfg.Embedding.Timeout,
	})

	return &app{
		cfg:       cfg,
		log:       log,
		metrics:   m,
		store:     store,
		embedder:  embedder,
		retriever: retrieval.New(embedder, cfg.Retrieval.MaxTopK, m, log),
		closers:   []io.Closer{store},
	}, nil
}

// newLogger writes human-readable output to terminals and JSON otherwise.
func newLogger(out *os.File, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var w io.Writer = out
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("app", appName).Logger()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
}

// loadIndex builds the similarity index from the stored corpus.
func (a *app) loadIndex(ctx context.Context) error {
	workouts, err := a.store.LoadWorkouts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load workouts: %w", err)
	}
	ix, err := retrieval.NewIndex(workouts)
	if err != nil {
		return err
	}
	if ix.Len() > 0 && ix.Dim() != a.cfg.Embedding.Dimension {
		return apperr.New(apperr.EmbeddingDimensionMismatch,
			"stored corpus has %d-dimensional embeddings but embedding.dimension is %d; re-run ingest",
			ix.Dim(), a.cfg.Embedding.Dimension)
	}
	a.index = ix
	a.retriever.Load(ix)
	return nil
}

// model builds the completion chain: OpenAI, then the optional Redis
// cache, then throttling, then metrics.
func (a *app) model(ctx context.Context) (llm.Model, error) {
	base := llm.NewOpenAIModel(llm.OpenAIConfig{
		APIKey:       a.cfg.LLM.APIKey,
		BaseURL:      a.cfg.LLM.BaseURL,
		Model:        a.cfg.LLM.Model,
		Temperature:  a.cfg.LLM.Temperature,
		Timeout:      a.cfg.LLM.Timeout,
		StrictSchema: a.cfg.LLM.StrictSchema,
	}, a.log)

	var model llm.Model = base
	if a.cfg.Cache.RedisURL != "" {
		cache, err := llm.NewRedisCache(ctx, a.cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, cache)
		model = llm.NewCachedModel(model, cache, base.Name(), a.cfg.Cache.TTL, a.log)
		a.log.Info().Msg("completion cache enabled")
	}
	if a.cfg.LLM.MinInterval > 0 {
		model = llm.NewThrottledModel(model, a.cfg.LLM.MinInterval)
	}
	return llm.NewInstrumentedModel(model, a.metrics), nil
}

func (a *app) handler(ctx context.Context) (http.Handler, error) {
	model, err := a.model(ctx)
	if err != nil {
		return nil, err
	}
	gen := generator.New(a.retriever, model, generator.Options{
		TopK: a.cfg.Retrieval.TopK,
		Mode: generator.Mode(a.cfg.Generation.Mode),
		Days: plan.DaysMode(a.cfg.Generation.DaysPerWeek),
	}, a.metrics, a.log)
	adapt := adapter.New(model, a.metrics, a.log)

	return api.NewAPI(a.retriever, gen, adapt, a.store, a.metrics, api.Options{
		RequestTimeout: a.cfg.HTTP.RequestTimeout,
	}, a.log).Routes(), nil
}

func (a *app) serve() error {
	ctx := context.Background()
	if err := a.loadIndex(ctx); err != nil {
		return err
	}
	checkCtx, cancel := context.WithTimeout(ctx, a.cfg.Embedding.Timeout)
	err := a.retriever.CheckDimension(checkCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("embedding model check failed: %w", err)
	}

	h, err := a.handler(ctx)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", server.Addr).Int("workouts", a.index.Len()).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("listen failed: %w", err)
		}
		return nil
	case <-quit:
	}
	a.log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.log.Info().Msg("server exiting")
	return nil
}

func (a *app) ingest(ctx context.Context, dir, tracksPath string) error {
	tracks, err := ingest.LoadTracks(tracksPath)
	if err != nil {
		return err
	}
	workouts, err := ingest.LoadDir(dir, tracks, a.log)
	if err != nil {
		return err
	}
	if len(workouts) == 0 {
		return fmt.Errorf("no workouts found in %s", dir)
	}
	p := ingest.NewPipeline(a.embedder, a.store, ingest.Options{
		BatchSize: a.cfg.Embedding.BatchSize,
		Dimension: a.cfg.Embedding.Dimension,
	}, a.log)
	_, err = p.Run(ctx, workouts)
	return err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
