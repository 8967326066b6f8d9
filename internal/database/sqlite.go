package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/umeshdangat/workout-ai/internal/apperr"
	"github.com/umeshdangat/workout-ai/internal/corpus"
	"github.com/umeshdangat/workout-ai/internal/plan"
)

// SQLiteStore works with both the pure-Go "sqlite" driver and the cgo
// "sqlite3" driver.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func OpenSQLite(ctx context.Context, driver, dsn string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps revision numbering free of SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := executeInitSQL(ctx, db, "sqlite.sql"); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("dsn", dsn).Msg("database initialized")
	return &SQLiteStore{db: db, log: log}, nil
}

func executeInitSQL(ctx context.Context, db *sql.DB, script string) error {
	stmts, err := initStatements(script)
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement %d: %w\nStatement: %s", i+1, err, stmt)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertWorkouts(ctx context.Context, workouts []corpus.Workout) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO workouts (id, title, description, score_type, workout_type, track, created_at, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			score_type = excluded.score_type,
			workout_type = excluded.workout_type,
			track = excluded.track,
			created_at = excluded.created_at,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("failed to prepare workout insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range workouts {
		if _, err := stmt.ExecContext(ctx, w.ID, w.Title, w.Description, w.ScoreType,
			w.WorkoutType, w.Track, w.CreatedAt, encodeVector(w.Embedding)); err != nil {
			return fmt.Errorf("failed to insert workout %s: %w", w.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workouts: %w", err)
	}
	s.log.Debug().Int("workouts", len(workouts)).Msg("workouts stored")
	return nil
}

func (s *SQLiteStore) LoadWorkouts(ctx context.Context) ([]corpus.Workout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, score_type, workout_type, track, created_at, embedding
		FROM workouts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workouts: %w", err)
	}
	defer rows.Close()

	var workouts []corpus.Workout
	for rows.Next() {
		var w corpus.Workout
		var blob []byte
		if err := rows.Scan(&w.ID, &w.Title, &w.Description, &w.ScoreType,
			&w.WorkoutType, &w.Track, &w.CreatedAt, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan workout: %w", err)
		}
		if w.Embedding, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("workout %s: %w", w.ID, err)
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workouts: %w", err)
	}
	return workouts, nil
}

func (s *SQLiteStore) SavePlan(ctx context.Context, rec plan.Record) (plan.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()
	cols, err := encodePlanColumns(rec)
	if err != nil {
		return plan.Record{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return plan.Record{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(revision), 0) + 1 FROM plans WHERE id = ?`, rec.ID).Scan(&rec.Revision); err != nil {
		return plan.Record{}, fmt.Errorf("failed to read plan revision: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO plans (id, revision, plan, profile, feedback, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Revision, string(cols.plan), nullableText(cols.profile), nullableText(cols.feedback),
		rec.CreatedAt.Format(time.RFC3339Nano)); err != nil {
		return plan.Record{}, fmt.Errorf("failed to insert plan: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return plan.Record{}, fmt.Errorf("failed to commit plan: %w", err)
	}
	s.log.Info().Str("plan_id", rec.ID).Int("revision", rec.Revision).Msg("plan saved")
	return rec, nil
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (plan.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, revision, plan, profile, feedback, created_at
		FROM plans WHERE id = ? ORDER BY revision DESC LIMIT 1`, id)
	return scanSQLitePlan(row, id, 0)
}

func (s *SQLiteStore) GetPlanRevision(ctx context.Context, id string, revision int) (plan.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, revision, plan, profile, feedback, created_at
		FROM plans WHERE id = ? AND revision = ?`, id, revision)
	return scanSQLitePlan(row, id, revision)
}

func scanSQLitePlan(row *sql.Row, id string, revision int) (plan.Record, error) {
	var rec plan.Record
	var body string
	var profile, feedback sql.NullString
	var created string
	err := row.Scan(&rec.ID, &rec.Revision, &body, &profile, &feedback, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return plan.Record{}, notFound(id, revision)
	}
	if err != nil {
		return plan.Record{}, fmt.Errorf("failed to read plan %s: %w", id, err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return plan.Record{}, fmt.Errorf("failed to parse created_at of plan %s: %w", id, err)
	}
	cols := planColumns{plan: []byte(body)}
	if profile.Valid {
		cols.profile = []byte(profile.String)
	}
	if feedback.Valid {
		cols.feedback = []byte(feedback.String)
	}
	if err := cols.decodeInto(&rec); err != nil {
		return plan.Record{}, err
	}
	return rec, nil
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func notFound(id string, revision int) error {
	if revision > 0 {
		return apperr.New(apperr.NotFound, "plan %s has no revision %d", id, revision)
	}
	return apperr.New(apperr.NotFound, "plan %s not found", id)
}
