package database

import (
	"context"
	"database/sql"
	"docdigest/internal/domain"
	"encoding/json"
	"errors"
	"fmt"
)

// SaveLatest stores result unless the stored one completed later.
func (d *Database) SaveLatest(ctx context.Context, result *domain.AggregateResult) error {
	if result == nil {
		return errors.New("result is nil")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `insert into latest_result (id, batch_id, payload, completed_at) values (1, ?, ?, ?)
on conflict (id) do update set
    batch_id = excluded.batch_id,
    payload = excluded.payload,
    completed_at = excluded.completed_at
where excluded.completed_at >= latest_result.completed_at`

	_, err = d.db.ExecContext(ctx, query, result.BatchID, string(payload), result.CompletedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	return nil
}

// LoadLatest returns the stored result, or nil when none was saved yet.
func (d *Database) LoadLatest(ctx context.Context) (*domain.AggregateResult, error) {
	query := "select batch_id, payload from latest_result where id = 1"

	var batchID, payload string
	err := d.db.QueryRowContext(ctx, query).Scan(&batchID, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // No result is not an error.
	}
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}

	var result domain.AggregateResult
	if err = json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("unmarshal result (batchID = %s): %w", batchID, err)
	}

	return &result, nil
}
