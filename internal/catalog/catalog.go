// Package catalog records shading runs and the rasters they persisted in an
// embedded SQLite database.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/songololo/umep-core/pkg/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Run states
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// ErrNotFound is returned when a run id is not in the catalogue.
var ErrNotFound = errors.New("run not found")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run is one catalogued shading run.
type Run struct {
	ID              uuid.UUID  `json:"id" msgpack:"id"`
	CreatedAt       time.Time  `json:"created_at" msgpack:"created_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty" msgpack:"finished_at,omitempty"`
	Status          string     `json:"status" msgpack:"status"`
	Mode            string     `json:"mode" msgpack:"mode"`
	Schedule        string     `json:"schedule" msgpack:"schedule"`
	IntervalMinutes int        `json:"interval_minutes" msgpack:"interval_minutes"`
	Year            int        `json:"year" msgpack:"year"`
	Month           int        `json:"month" msgpack:"month"`
	Day             int        `json:"day" msgpack:"day"`
	Latitude        float64    `json:"latitude" msgpack:"latitude"`
	Longitude       float64    `json:"longitude" msgpack:"longitude"`
	ValidSamples    int        `json:"valid_samples" msgpack:"valid_samples"`
	TotalSamples    int        `json:"total_samples" msgpack:"total_samples"`
	LastTimestamp   string     `json:"last_timestamp,omitempty" msgpack:"last_timestamp,omitempty"`
	MeanRaster      string     `json:"mean_raster,omitempty" msgpack:"mean_raster,omitempty"`
	Error           string     `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Summary is what a finished run reports back to the catalogue.
type Summary struct {
	Mode          string
	ValidSamples  int
	TotalSamples  int
	LastTimestamp string
	MeanRaster    string
}

// Raster is a raster persisted by a run.
type Raster struct {
	Name      string    `json:"name" msgpack:"name"`
	Path      string    `json:"path" msgpack:"path"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

// Catalog is the run catalogue.
type Catalog struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// Open opens (creating if needed) the catalogue database at path.
func Open(path string, logger *zap.SugaredLogger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	// Parallel runs write rasters concurrently; SQLite takes one writer.
	db.SetMaxOpenConns(1)

	provider := migrate.NewFSProvider(migrationsFS, "migrations", "")
	if err := migrate.NewMigrator(db, provider, logger).Up(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate catalog schema: %w", err)
	}

	logger.Infow("opened run catalog", "path", path)
	return &Catalog{db: db, logger: logger}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// StartRun inserts a new run in the running state and returns it with its id and
// creation time set.
func (c *Catalog) StartRun(ctx context.Context, run Run) (Run, error) {
	run.ID = uuid.New()
	run.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	run.Status = StatusRunning

	query := `
		INSERT INTO runs (id, created_at, status, mode, schedule, interval_minutes,
		                  run_year, run_month, run_day, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := c.db.ExecContext(ctx, query,
		run.ID.String(), formatTime(run.CreatedAt), run.Status, run.Mode, run.Schedule, run.IntervalMinutes,
		run.Year, run.Month, run.Day, run.Latitude, run.Longitude,
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// FinishRun marks a run complete.
func (c *Catalog) FinishRun(ctx context.Context, id uuid.UUID, s Summary) error {
	query := `
		UPDATE runs
		SET finished_at = ?, status = ?, mode = ?, valid_samples = ?, total_samples = ?,
		    last_timestamp = ?, mean_raster = ?
		WHERE id = ?
	`
	return c.update(ctx, query,
		formatTime(time.Now().UTC()), StatusComplete, s.Mode, s.ValidSamples, s.TotalSamples,
		s.LastTimestamp, s.MeanRaster, id.String(),
	)
}

// FailRun marks a run failed with runErr.
func (c *Catalog) FailRun(ctx context.Context, id uuid.UUID, runErr error) error {
	query := `UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`
	return c.update(ctx, query, formatTime(time.Now().UTC()), StatusFailed, runErr.Error(), id.String())
}

// FailInterrupted marks every run still in the running state as failed. It is
// called at startup, when no run can be in flight, and returns how many runs it
// closed.
func (c *Catalog) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE status = ?`,
		formatTime(time.Now().UTC()), StatusFailed, "interrupted before completion", StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to close interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

func (c *Catalog) update(ctx context.Context, query string, args ...any) error {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const runColumns = `id, created_at, finished_at, status, mode, schedule, interval_minutes,
	run_year, run_month, run_day, latitude, longitude, valid_samples, total_samples,
	last_timestamp, mean_raster, error`

// GetRun returns the run with the given id.
func (c *Catalog) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

// ListRuns returns up to limit runs, newest first.
func (c *Catalog) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := c.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run         Run
		id, created string
		finished    sql.NullString
	)
	err := s.Scan(&id, &created, &finished, &run.Status, &run.Mode, &run.Schedule, &run.IntervalMinutes,
		&run.Year, &run.Month, &run.Day, &run.Latitude, &run.Longitude, &run.ValidSamples, &run.TotalSamples,
		&run.LastTimestamp, &run.MeanRaster, &run.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return Run{}, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	if run.CreatedAt, err = parseTime(created); err != nil {
		return Run{}, err
	}
	if finished.Valid {
		t, err := parseTime(finished.String)
		if err != nil {
			return Run{}, err
		}
		run.FinishedAt = &t
	}
	return run, nil
}

// RecordRaster notes that a run persisted a raster.
func (c *Catalog) RecordRaster(ctx context.Context, runID uuid.UUID, name, path string) error {
	query := `
		INSERT INTO rasters (run_id, name, path, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (run_id, name) DO UPDATE SET path = excluded.path, created_at = excluded.created_at
	`
	_, err := c.db.ExecContext(ctx, query, runID.String(), name, path, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to record raster %s: %w", name, err)
	}
	return nil
}

// Rasters lists the rasters a run persisted, in name order.
func (c *Catalog) Rasters(ctx context.Context, runID uuid.UUID) ([]Raster, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name, path, created_at FROM rasters WHERE run_id = ? ORDER BY name`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query rasters: %w", err)
	}
	defer rows.Close()

	var out []Raster
	for rows.Next() {
		var r Raster
		var created string
		if err := rows.Scan(&r.Name, &r.Path, &created); err != nil {
			return nil, fmt.Errorf("failed to scan raster: %w", err)
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// timeLayout has fixed-width fractional seconds so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
