package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/umeshdangat/workout-ai/internal/corpus"
	"github.com/umeshdangat/workout-ai/internal/plan"
)

type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func OpenPostgres(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	stmts, err := initStatements("postgres.sql")
	if err != nil {
		pool.Close()
		return nil, err
	}
	for i, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to execute statement %d: %w\nStatement: %s", i+1, err, stmt)
		}
	}
	log.Info().Msg("database initialized")
	return &PostgresStore{pool: pool, log: log}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertWorkouts(ctx context.Context, workouts []corpus.Workout) error {
	batch := &pgx.Batch{}
	for _, w := range workouts {
		batch.Queue(`
			INSERT INTO workouts (id, title, description, score_type, workout_type, track, created_at, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				score_type = EXCLUDED.score_type,
				workout_type = EXCLUDED.workout_type,
				track = EXCLUDED.track,
				created_at = EXCLUDED.created_at,
				embedding = EXCLUDED.embedding`,
			w.ID, w.Title, w.Description, w.ScoreType, w.WorkoutType, w.Track, w.CreatedAt, w.Embedding)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert workouts: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit workouts: %w", err)
	}
	s.log.Debug().Int("workouts", len(workouts)).Msg("workouts stored")
	return nil
}

func (s *PostgresStore) LoadWorkouts(ctx context.Context) ([]corpus.Workout, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, score_type, workout_type, track, created_at, embedding
		FROM workouts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workouts: %w", err)
	}
	workouts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (corpus.Workout, error) {
		var w corpus.Workout
		err := row.Scan(&w.ID, &w.Title, &w.Description, &w.ScoreType,
			&w.WorkoutType, &w.Track, &w.CreatedAt, &w.Embedding)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan workouts: %w", err)
	}
	return workouts, nil
}

func (s *PostgresStore) SavePlan(ctx context.Context, rec plan.Record) (plan.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()
	cols, err := encodePlanColumns(rec)
	if err != nil {
		return plan.Record{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return plan.Record{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serializes revision numbering per plan id.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rec.ID); err != nil {
		return plan.Record{}, fmt.Errorf("failed to lock plan %s: %w", rec.ID, err)
	}
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(revision), 0) + 1 FROM plans WHERE id = $1`, rec.ID).Scan(&rec.Revision); err != nil {
		return plan.Record{}, fmt.Errorf("failed to read plan revision: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO plans (id, revision, plan, profile, feedback, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Revision, string(cols.plan), nullableText(cols.profile), nullableText(cols.feedback), rec.CreatedAt); err != nil {
		return plan.Record{}, fmt.Errorf("failed to insert plan: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return plan.Record{}, fmt.Errorf("failed to commit plan: %w", err)
	}
	s.log.Info().Str("plan_id", rec.ID).Int("revision", rec.Revision).Msg("plan saved")
	return rec, nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, id string) (plan.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, revision, plan::text, profile::text, feedback::text, created_at
		FROM plans WHERE id = $1 ORDER BY revision DESC LIMIT 1`, id)
	return scanPostgresPlan(row, id, 0)
}

func (s *PostgresStore) GetPlanRevision(ctx context.Context, id string, revision int) (plan.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, revision, plan::text, profile::text, feedback::text, created_at
		FROM plans WHERE id = $1 AND revision = $2`, id, revision)
	return scanPostgresPlan(row, id, revision)
}

func scanPostgresPlan(row pgx.Row, id string, revision int) (plan.Record, error) {
	var rec plan.Record
	var body string
	var profile, feedback *string
	err := row.Scan(&rec.ID, &rec.Revision, &body, &profile, &feedback, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return plan.Record{}, notFound(id, revision)
	}
	if err != nil {
		return plan.Record{}, fmt.Errorf("failed to read plan %s: %w", id, err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	cols := planColumns{plan: []byte(body)}
	if profile != nil {
		cols.profile = []byte(*profile)
	}
	if feedback != nil {
		cols.feedback = []byte(*feedback)
	}
	if err := cols.decodeInto(&rec); err != nil {
		return plan.Record{}, err
	}
	return rec, nil
}
