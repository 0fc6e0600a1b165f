package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"relay/internal/domain"
)

// FindActiveWebhook resolves the per-user, per-strategy endpoint an
// inbound alert is addressed to. Inactive webhooks are treated as absent.
func (r *Repository) FindActiveWebhook(ctx context.Context, userID, strategyID string) (*domain.Webhook, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, strategy_id, strategy_name, is_virtual, is_active,
			last_triggered, trigger_count, created_at
		FROM relay_webhooks
		WHERE user_id = $1 AND strategy_id = $2 AND is_active
	`, userID, strategyID)

	var w domain.Webhook
	err := row.Scan(
		&w.ID, &w.UserID, &w.StrategyID, &w.StrategyName, &w.IsVirtual,
		&w.IsActive, &w.LastTriggered, &w.TriggerCount, &w.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWebhookNotFound
		}
		return nil, fmt.Errorf("find webhook: %w", err)
	}
	return &w, nil
}

// MarkTriggered bumps the webhook's trigger counter and timestamp.
func (r *Repository) MarkTriggered(ctx context.Context, webhookID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE relay_webhooks
		SET trigger_count = trigger_count + 1, last_triggered = NOW()
		WHERE id = $1
	`, webhookID)
	if err != nil {
		return fmt.Errorf("mark webhook triggered: %w", err)
	}
	return nil
}

// UpsertWebhook creates or refreshes a webhook endpoint record.
func (r *Repository) UpsertWebhook(ctx context.Context, w *domain.Webhook) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO relay_webhooks (
			id, user_id, strategy_id, strategy_name, is_virtual, is_active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, strategy_id) DO UPDATE
		SET strategy_name = EXCLUDED.strategy_name,
			is_virtual = EXCLUDED.is_virtual,
			is_active = EXCLUDED.is_active
	`, w.ID, w.UserID, w.StrategyID, w.StrategyName, w.IsVirtual, w.IsActive, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert webhook: %w", err)
	}
	return nil
}
