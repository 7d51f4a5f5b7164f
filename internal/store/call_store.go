package store

import (
	"context"
	"fmt"

	"github.com/lumamail/webhook-service/internal/domain"
)

// InsertCall appends a delivery attempt to the call log.
func (s *PostgresStore) InsertCall(ctx context.Context, rec CallRecord) error {
	var errMsg *string
	if rec.ErrorMessage != "" {
		errMsg = &rec.ErrorMessage
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_calls (webhook_id, event_type, success, http_status_code, error_message, response_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.WebhookID, rec.EventType, rec.Success, rec.HTTPStatusCode, errMsg, rec.ResponseTimeMs, rec.At)
	if err != nil {
		return fmt.Errorf("inserting webhook call: %w", err)
	}
	return nil
}

// ListCalls returns the delivery history, newest first.
func (s *PostgresStore) ListCalls(ctx context.Context, webhookID string, limit int) ([]domain.WebhookCall, error) {
	query := `SELECT id, webhook_id, event_type, success, http_status_code, error_message, response_time_ms, created_at FROM webhook_calls`
	args := []any{}

	if webhookID != "" {
		query += " WHERE webhook_id = $1"
		args = append(args, webhookID)
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying webhook calls: %w", err)
	}
	defer rows.Close()

	calls := []domain.WebhookCall{}
	for rows.Next() {
		var c domain.WebhookCall
		err := rows.Scan(
			&c.ID, &c.WebhookID, &c.EventType, &c.Success,
			&c.HTTPStatusCode, &c.ErrorMessage, &c.ResponseTimeMs, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook call: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webhook calls: %w", err)
	}

	return calls, nil
}
