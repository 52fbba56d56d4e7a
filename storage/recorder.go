// Package storage persists forecast runs in Postgres.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Yafet01/drug-prescription-app/forecast"
	"github.com/Yafet01/drug-prescription-app/interfaces"
)

var (
	_ interfaces.ForecastRecorder = (*PostgresRecorder)(nil)
	_ interfaces.ForecastRecorder = NopRecorder{}
)

const schema = `
CREATE TABLE IF NOT EXISTS forecast_runs (
	id          UUID PRIMARY KEY,
	year        INTEGER NOT NULL,
	month       INTEGER NOT NULL,
	season      TEXT NOT NULL,
	medicines   INTEGER NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS forecast_points (
	run_id    UUID NOT NULL REFERENCES forecast_runs(id) ON DELETE CASCADE,
	medicine  TEXT NOT NULL,
	disease   TEXT NOT NULL DEFAULT '',
	month     INTEGER NOT NULL,
	predicted DOUBLE PRECISION NOT NULL,
	is_trend  BOOLEAN NOT NULL,
	PRIMARY KEY (run_id, medicine, month, is_trend)
);`

// Run is a row of forecast_runs
type Run = interfaces.ForecastRun

// Point is a row of forecast_points
type Point struct {
	RunID     string  `db:"run_id"`
	Medicine  string  `db:"medicine"`
	Disease   string  `db:"disease"`
	Month     int     `db:"month"`
	Predicted float64 `db:"predicted"`
	IsTrend   bool    `db:"is_trend"`
}

// PostgresRecorder writes each forecast run and its points in one transaction
type PostgresRecorder struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostgresRecorder connects to dsn and creates the tables if needed
func NewPostgresRecorder(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresRecorder{db: db, now: time.Now}, nil
}

// Record implements interfaces.ForecastRecorder
func (r *PostgresRecorder) Record(ctx context.Context, runID string, result *forecast.Result) error {
	run, points := Rows(runID, result, r.now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertRun = `
		INSERT INTO forecast_runs (id, year, month, season, medicines, recorded_at)
		VALUES (:id, :year, :month, :season, :medicines, :recorded_at)`
	if _, err := tx.NamedExecContext(ctx, insertRun, run); err != nil {
		return fmt.Errorf("failed to insert forecast run: %w", err)
	}

	if len(points) > 0 {
		const insertPoints = `
			INSERT INTO forecast_points (run_id, medicine, disease, month, predicted, is_trend)
			VALUES (:run_id, :medicine, :disease, :month, :predicted, :is_trend)`
		if _, err := tx.NamedExecContext(ctx, insertPoints, points); err != nil {
			return fmt.Errorf("failed to insert forecast points: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit forecast run: %w", err)
	}
	return nil
}

// RecentRuns implements interfaces.ForecastRecorder
func (r *PostgresRecorder) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	const query = `
		SELECT id, year, month, season, medicines, recorded_at
		FROM forecast_runs
		ORDER BY recorded_at DESC
		LIMIT $1`

	runs := []Run{}
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query forecast runs: %w", err)
	}
	return runs, nil
}

func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}

// Rows flattens a result into its run row and point rows: the point estimate of each medicine
// followed by its twelve trend values
func Rows(runID string, result *forecast.Result, recordedAt time.Time) (Run, []Point) {
	run := Run{
		ID:         runID,
		Year:       result.Request.Year,
		Month:      result.Request.Month,
		Season:     result.Request.Season,
		Medicines:  len(result.Medicines),
		RecordedAt: recordedAt.UTC(),
	}

	points := make([]Point, 0, len(result.Medicines)*13)
	for _, m := range result.Medicines {
		points = append(points, Point{
			RunID:     runID,
			Medicine:  m.Medicine,
			Disease:   m.Disease,
			Month:     m.Month,
			Predicted: float64(m.Predicted),
		})
		for _, p := range m.Trend {
			points = append(points, Point{
				RunID:     runID,
				Medicine:  m.Medicine,
				Disease:   m.Disease,
				Month:     p.Month,
				Predicted: p.Predicted,
				IsTrend:   true,
			})
		}
	}
	return run, points
}

// NopRecorder discards forecast runs
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, *forecast.Result) error { return nil }
func (NopRecorder) Close() error                                           { return nil }

func (NopRecorder) RecentRuns(context.Context, int) ([]Run, error) {
	return nil, interfaces.ErrHistoryDisabled
}
