package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tamima/evoucher/internal/models"
	"github.com/tamima/evoucher/pkg/database"
)

// ErrRunNotFound is returned when no batch run has the requested id
var ErrRunNotFound = errors.New("batch run not found")

// DefaultListLimit caps ListRecent when no limit is given
const DefaultListLimit = 20

// RunRepository handles batch run ledger database operations
type RunRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *database.DB, logger *zap.Logger) *RunRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a run and its failures in one transaction.
// An empty run.ID is replaced by a new UUID.
func (r *RunRepository) Create(ctx context.Context, run *models.BatchRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	err := r.db.WithTransactionContext(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO batch_runs (
				id, source, total, succeeded, failed, skipped, cancelled,
				archive_size, logo_used, status, started_at, finished_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			run.Source,
			run.Total,
			run.Succeeded,
			run.Failed,
			run.Skipped,
			run.Cancelled,
			run.ArchiveSize,
			run.LogoUsed,
			run.Status(),
			run.StartedAt.UTC(),
			run.FinishedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert batch run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO batch_run_failures (run_id, order_id, guest_name, reason)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare failure insert: %w", err)
		}
		defer stmt.Close()

		for i := range run.Failures {
			f := &run.Failures[i]
			f.RunID = run.ID
			result, err := stmt.ExecContext(ctx, f.RunID, f.OrderID, f.GuestName, f.Reason)
			if err != nil {
				return fmt.Errorf("failed to insert batch run failure: %w", err)
			}
			if f.ID, err = result.LastInsertId(); err != nil {
				return fmt.Errorf("failed to get last insert id: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to record batch run", zap.String("run_id", run.ID), zap.Error(err))
		return err
	}

	r.logger.Debug("Batch run recorded",
		zap.String("run_id", run.ID),
		zap.String("status", run.Status()),
		zap.Int("failures", len(run.Failures)))
	return nil
}

// GetByID retrieves a run together with its failures
func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.BatchRun, error) {
	query := `
		SELECT id, source, total, succeeded, failed, skipped, cancelled,
			archive_size, logo_used, started_at, finished_at
		FROM batch_runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get batch run", zap.String("run_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get batch run: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, order_id, guest_name, reason
		FROM batch_run_failures
		WHERE run_id = ?
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch run failures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f models.BatchRunFailure
		if err := rows.Scan(&f.ID, &f.RunID, &f.OrderID, &f.GuestName, &f.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan batch run failure: %w", err)
		}
		run.Failures = append(run.Failures, f)
	}
	return run, rows.Err()
}

// ListRecent returns the most recent runs first, without their failures
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*models.BatchRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, total, succeeded, failed, skipped, cancelled,
			archive_size, logo_used, started_at, finished_at
		FROM batch_runs
		ORDER BY started_at DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		r.logger.Error("Failed to list batch runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list batch runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.BatchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.BatchRun, error) {
	var run models.BatchRun
	var startedAt, finishedAt time.Time
	err := s.Scan(
		&run.ID,
		&run.Source,
		&run.Total,
		&run.Succeeded,
		&run.Failed,
		&run.Skipped,
		&run.Cancelled,
		&run.ArchiveSize,
		&run.LogoUsed,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.StartedAt = startedAt.UTC()
	run.FinishedAt = finishedAt.UTC()
	return &run, nil
}
