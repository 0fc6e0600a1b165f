package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"relay/internal/domain"
)

// Credential columns hold values the upstream credential-management layer
// has already decrypted; this service never encrypts or decrypts.

// GetBrokerAccount fetches one broker account by id.
func (r *Repository) GetBrokerAccount(ctx context.Context, accountID string) (*domain.BrokerAccount, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, broker_name, api_key, api_secret, access_token,
			is_virtual, balance, is_active
		FROM relay_broker_accounts
		WHERE id = $1
	`, accountID)
	return scanAccount(row)
}

// GetActiveAccount resolves the account a webhook's orders route to: the
// user's active account matching the webhook's virtual flag.
func (r *Repository) GetActiveAccount(ctx context.Context, userID string, isVirtual bool) (*domain.BrokerAccount, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, broker_name, api_key, api_secret, access_token,
			is_virtual, balance, is_active
		FROM relay_broker_accounts
		WHERE user_id = $1 AND is_virtual = $2 AND is_active
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, isVirtual)
	return scanAccount(row)
}

// UpsertBrokerAccount creates or refreshes a broker connection.
func (r *Repository) UpsertBrokerAccount(ctx context.Context, a *domain.BrokerAccount) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO relay_broker_accounts (
			id, user_id, broker_name, api_key, api_secret, access_token,
			is_virtual, balance, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET api_key = EXCLUDED.api_key,
			api_secret = EXCLUDED.api_secret,
			access_token = EXCLUDED.access_token,
			balance = EXCLUDED.balance,
			is_active = EXCLUDED.is_active
	`,
		a.ID, a.UserID, string(a.BrokerName), a.APIKey, a.APISecret, a.AccessToken,
		a.IsVirtual, a.Balance, a.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upsert broker account: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.BrokerAccount, error) {
	var a domain.BrokerAccount
	var brokerName string
	err := row.Scan(
		&a.ID, &a.UserID, &brokerName, &a.APIKey, &a.APISecret, &a.AccessToken,
		&a.IsVirtual, &a.Balance, &a.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan broker account: %w", err)
	}
	a.BrokerName = domain.BrokerName(brokerName)
	return &a, nil
}
