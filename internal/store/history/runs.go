package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vouchercat/internal/models"
	"vouchercat/internal/store"
)

const runColumns = `id, input_path, output_path, language, encoding, model, status, error,
	total, categorized, unknown, cost_usd, started_at, finished_at`

// RecordRun upserts run by ID, so a queued run can later be completed.
func (s *Store) RecordRun(ctx context.Context, run *models.Run) error {
	if err := s.usable(); err != nil {
		return err
	}
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id is required", models.ErrValidation)
	}
	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			input_path = excluded.input_path,
			output_path = excluded.output_path,
			language = excluded.language,
			encoding = excluded.encoding,
			model = excluded.model,
			status = excluded.status,
			error = excluded.error,
			total = excluded.total,
			categorized = excluded.categorized,
			unknown = excluded.unknown,
			cost_usd = excluded.cost_usd,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.InputPath,
		run.OutputPath,
		run.Language,
		run.Encoding,
		run.Model,
		run.Status,
		run.Error,
		run.Total,
		run.Categorized,
		run.Unknown,
		run.CostUSD,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns the run with id, or store.ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*models.Run, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// GetRunSummary aggregates completed runs.
func (s *Store) GetRunSummary(ctx context.Context) (*models.UsageSummary, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	var summary models.UsageSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total), 0), COALESCE(SUM(cost_usd), 0.0)
		FROM runs
		WHERE status = ?
	`, models.JobStatusCompleted).Scan(&summary.Runs, &summary.Rows, &summary.CostUSD)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize runs: %w", err)
	}
	return &summary, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun expects the columns in runColumns order.
func scanRun(row scanner) (*models.Run, error) {
	var run models.Run
	err := row.Scan(
		&run.ID,
		&run.InputPath,
		&run.OutputPath,
		&run.Language,
		&run.Encoding,
		&run.Model,
		&run.Status,
		&run.Error,
		&run.Total,
		&run.Categorized,
		&run.Unknown,
		&run.CostUSD,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
