// Package database persists the workout corpus and plan revisions.
package database

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/umeshdangat/workout-ai/internal/corpus"
	"github.com/umeshdangat/workout-ai/internal/plan"
)

//go:embed sql/*.sql
var initScripts embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverSQLite3  = "sqlite3"
	DriverPostgres = "postgres"
)

// Store is the persistence surface used by the service.
type Store interface {
	// InsertWorkouts upserts workouts by id. New ids are appended to the
	// corpus order.
	InsertWorkouts(ctx context.Context, workouts []corpus.Workout) error
	// LoadWorkouts returns the corpus in insertion order.
	LoadWorkouts(ctx context.Context) ([]corpus.Workout, error)
	// SavePlan stores rec as the next revision of rec.ID, assigning an id
	// when empty. The stored record is returned.
	SavePlan(ctx context.Context, rec plan.Record) (plan.Record, error)
	// GetPlan returns the latest revision of id.
	GetPlan(ctx context.Context, id string) (plan.Record, error)
	GetPlanRevision(ctx context.Context, id string, revision int) (plan.Record, error)
	Close() error
}

// Open connects to the database named by driver and dsn and creates the
// schema if needed.
func Open(ctx context.Context, driver, dsn string, log zerolog.Logger) (Store, error) {
	log = log.With().Str("component", "database").Str("driver", driver).Logger()
	switch driver {
	case DriverSQLite, DriverSQLite3:
		return OpenSQLite(ctx, driver, dsn, log)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func initStatements(name string) ([]string, error) {
	sqlBytes, err := initScripts.ReadFile("sql/" + name)
	if err != nil {
		return nil, fmt.Errorf("failed to read init SQL file: %w", err)
	}
	var stmts []string
	for _, stmt := range strings.Split(string(sqlBytes), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

type planColumns struct {
	plan     []byte
	profile  []byte
	feedback []byte
}

func encodePlanColumns(rec plan.Record) (planColumns, error) {
	var cols planColumns
	var err error
	if cols.plan, err = json.Marshal(rec.Plan); err != nil {
		return cols, fmt.Errorf("failed to encode plan: %w", err)
	}
	if rec.Profile != nil {
		if cols.profile, err = json.Marshal(rec.Profile); err != nil {
			return cols, fmt.Errorf("failed to encode profile: %w", err)
		}
	}
	if rec.Feedback != nil {
		if cols.feedback, err = json.Marshal(rec.Feedback); err != nil {
			return cols, fmt.Errorf("failed to encode feedback: %w", err)
		}
	}
	return cols, nil
}

func (c planColumns) decodeInto(rec *plan.Record) error {
	if err := json.Unmarshal(c.plan, &rec.Plan); err != nil {
		return fmt.Errorf("failed to decode plan %s: %w", rec.ID, err)
	}
	if len(c.profile) > 0 {
		rec.Profile = &plan.Profile{}
		if err := json.Unmarshal(c.profile, rec.Profile); err != nil {
			return fmt.Errorf("failed to decode profile of plan %s: %w", rec.ID, err)
		}
	}
	if len(c.feedback) > 0 {
		rec.Feedback = &plan.Feedback{}
		if err := json.Unmarshal(c.feedback, rec.Feedback); err != nil {
			return fmt.Errorf("failed to decode feedback of plan %s: %w", rec.ID, err)
		}
	}
	return nil
}
