package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lumamail/webhook-service/internal/domain"
)

const webhookColumns = `id, url, secret, event_types, status, failure_count,
	last_success_at, last_failure_at, created_at, updated_at, version`

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Webhook, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks WHERE id = $1
	`, id)

	w, err := scanWebhook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying webhook: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.Webhook, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying webhooks: %w", err)
	}
	defer rows.Close()

	webhooks := []domain.Webhook{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook: %w", err)
		}
		webhooks = append(webhooks, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webhooks: %w", err)
	}

	return webhooks, nil
}

func (s *PostgresStore) Insert(ctx context.Context, w *domain.Webhook) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhooks (id, url, secret, event_types, status, failure_count,
			last_success_at, last_failure_at, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, w.ID, w.URL, w.Secret, w.EventTypes, w.Status, w.FailureCount,
		w.LastSuccessAt, w.LastFailureAt, w.CreatedAt, w.UpdatedAt, w.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("inserting webhook: %w", err)
	}
	return nil
}

// Update writes the full record if and only if the stored version still
// matches w.Version, then bumps the version on both sides.
func (s *PostgresStore) Update(ctx context.Context, w *domain.Webhook) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhooks
		SET url = $3, event_types = $4, status = $5, failure_count = $6,
			last_success_at = $7, last_failure_at = $8, updated_at = $9,
			secret = $10, version = version + 1
		WHERE id = $1 AND version = $2
	`, w.ID, w.Version, w.URL, w.EventTypes, w.Status, w.FailureCount,
		w.LastSuccessAt, w.LastFailureAt, w.UpdatedAt, w.Secret)
	if err != nil {
		return fmt.Errorf("updating webhook: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Either the record is gone or another writer won the race.
		var exists bool
		err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM webhooks WHERE id = $1)", w.ID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking webhook existence: %w", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}

	w.Version++
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM webhooks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanWebhook(row pgx.Row) (*domain.Webhook, error) {
	var w domain.Webhook
	err := row.Scan(
		&w.ID, &w.URL, &w.Secret, &w.EventTypes, &w.Status, &w.FailureCount,
		&w.LastSuccessAt, &w.LastFailureAt, &w.CreatedAt, &w.UpdatedAt, &w.Version,
	)
	if err != nil {
		return nil, err
	}
	if w.EventTypes == nil {
		w.EventTypes = []string{}
	}
	return &w, nil
}
