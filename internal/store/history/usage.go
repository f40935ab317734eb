package history

import (
	"context"
	"fmt"
	"time"

	"vouchercat/internal/models"
)

// RecordUsage inserts a new AI usage log entry.
func (s *Store) RecordUsage(ctx context.Context, entry *models.UsageLog) error {
	if err := s.usable(); err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_usage_logs (
			timestamp, run_id, operation, provider_name, model_name,
			input_tokens, output_tokens, cost
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.Timestamp.UTC(),
		entry.RunID,
		entry.Operation,
		entry.ProviderName,
		entry.ModelName,
		entry.InputTokens,
		entry.OutputTokens,
		entry.Cost,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ai_usage_log: %w", err)
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read ai_usage_log id: %w", err)
	}
	return nil
}

// ListUsage returns usage logs, newest first.
func (s *Store) ListUsage(ctx context.Context, limit, offset int) ([]*models.UsageLog, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, run_id, operation, provider_name, model_name,
		       input_tokens, output_tokens, cost
		FROM ai_usage_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ai_usage_logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.UsageLog
	for rows.Next() {
		var l models.UsageLog
		if err := rows.Scan(
			&l.ID,
			&l.Timestamp,
			&l.RunID,
			&l.Operation,
			&l.ProviderName,
			&l.ModelName,
			&l.InputTokens,
			&l.OutputTokens,
			&l.Cost,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ai_usage_log row: %w", err)
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ai_usage_log rows: %w", err)
	}
	return logs, nil
}

// GetUsageSummary totals cost and tokens over every logged call.
func (s *Store) GetUsageSummary(ctx context.Context) (totalCost float64, totalInputTokens, totalOutputTokens int64, err error) {
	if err = s.usable(); err != nil {
		return 0, 0, 0, err
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(cost), 0.0), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM ai_usage_logs
	`).Scan(&totalCost, &totalInputTokens, &totalOutputTokens)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get usage summary: %w", err)
	}
	return totalCost, totalInputTokens, totalOutputTokens, nil
}
