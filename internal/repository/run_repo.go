package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/smt-log-parser/internal/models"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// RunRepository handles trace run database operations
type RunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, logger *zap.Logger) *RunRepository {
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new run and sets its ID
func (r *RunRepository) Create(run *models.TraceRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}

	result, err := r.db.Exec(
		`INSERT INTO trace_runs (source, status, started_at) VALUES (?, ?, ?)`,
		run.Source,
		run.Status,
		run.StartedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create trace run", zap.String("source", run.Source), zap.Error(err))
		return fmt.Errorf("failed to create run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// Finish stores the outcome of a run
func (r *RunRepository) Finish(run *models.TraceRun) error {
	now := time.Now()
	run.FinishedAt = &now

	query := `
		UPDATE trace_runs
		SET status = ?, solver = ?, version = ?, lines = ?, diagnostics = ?,
			terminated = ?, error = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		run.Status,
		run.Solver,
		run.Version,
		run.Lines,
		run.Diagnostics,
		run.Terminated,
		run.Error,
		run.FinishedAt,
		run.ID,
	)
	if err != nil {
		r.logger.Error("Failed to finish trace run", zap.Int64("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %d: %w", run.ID, ErrNotFound)
	}
	return nil
}

const runColumns = `id, source, status, solver, version, lines, diagnostics,
	terminated, error, started_at, finished_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*models.TraceRun, error) {
	var run models.TraceRun
	var finishedAt sql.NullTime
	err := s.Scan(
		&run.ID,
		&run.Source,
		&run.Status,
		&run.Solver,
		&run.Version,
		&run.Lines,
		&run.Diagnostics,
		&run.Terminated,
		&run.Error,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

// GetByID retrieves a run by ID
func (r *RunRepository) GetByID(id int64) (*models.TraceRun, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM trace_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get trace run", zap.Int64("run_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first
func (r *RunRepository) List(limit int) ([]*models.TraceRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`SELECT `+runColumns+` FROM trace_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		r.logger.Error("Failed to list trace runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.TraceRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
