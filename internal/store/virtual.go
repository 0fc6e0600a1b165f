package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"relay/internal/broker/virtual"
	"relay/internal/domain"
)

// VirtualStore is the durable simulator ledger. Every order execution
// loads, mutates and persists one account's state inside a single
// transaction with the account row locked, so concurrent webhooks for the
// same account serialize instead of clobbering each other.
type VirtualStore struct {
	repo    *Repository
	initial decimal.Decimal
}

var _ virtual.StateStore = (*VirtualStore)(nil)

// NewVirtualStore builds a Postgres-backed state store seeding new
// accounts with the given balance.
func NewVirtualStore(repo *Repository, initialBalance decimal.Decimal) *VirtualStore {
	return &VirtualStore{repo: repo, initial: initialBalance}
}

func (s *VirtualStore) WithState(ctx context.Context, accountID string, fn func(*virtual.State) error) error {
	tx, err := s.repo.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin virtual state tx: %w", err)
	}
	defer tx.Rollback(ctx)

	state, err := s.loadForUpdate(ctx, tx, accountID)
	if err != nil {
		return err
	}
	booked := len(state.Fills)

	if err := fn(state); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE relay_virtual_accounts SET balance = $2, updated_at = NOW()
		WHERE account_id = $1
	`, accountID, state.Balance); err != nil {
		return fmt.Errorf("update virtual balance: %w", err)
	}

	// Flat positions keep their row: the record carries the running
	// realized PnL for the symbol.
	for symbol, pos := range state.Positions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO relay_virtual_positions (account_id, symbol, quantity, average_price, realized_pnl)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (account_id, symbol) DO UPDATE
			SET quantity = EXCLUDED.quantity,
			    average_price = EXCLUDED.average_price,
			    realized_pnl = EXCLUDED.realized_pnl
		`, accountID, symbol, pos.Quantity, pos.AveragePrice, pos.RealizedPnL); err != nil {
			return fmt.Errorf("upsert position: %w", err)
		}
	}

	for _, fill := range state.Fills[booked:] {
		if _, err := tx.Exec(ctx, `
			INSERT INTO relay_virtual_fills (
				id, account_id, symbol, action, quantity, price, realized_pnl, filled_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			fill.ID, accountID, fill.Symbol, string(fill.Action),
			fill.Quantity, fill.Price, fill.RealizedPnL, fill.FilledAt,
		); err != nil {
			return fmt.Errorf("insert fill: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit virtual state: %w", err)
	}
	return nil
}

func (s *VirtualStore) State(ctx context.Context, accountID string) (*virtual.State, error) {
	state := virtual.NewState(s.initial)

	err := s.repo.pool.QueryRow(ctx, `
		SELECT balance FROM relay_virtual_accounts WHERE account_id = $1
	`, accountID).Scan(&state.Balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load virtual balance: %w", err)
	}

	if err := s.loadPositionsAndFills(ctx, s.repo.pool, accountID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// loadForUpdate locks the account row (creating it on first use) and
// loads the full ledger inside the caller's transaction.
func (s *VirtualStore) loadForUpdate(ctx context.Context, tx pgx.Tx, accountID string) (*virtual.State, error) {
	state := virtual.NewState(s.initial)

	err := tx.QueryRow(ctx, `
		SELECT balance FROM relay_virtual_accounts WHERE account_id = $1 FOR UPDATE
	`, accountID).Scan(&state.Balance)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO relay_virtual_accounts (account_id, balance) VALUES ($1, $2)
		`, accountID, s.initial); err != nil {
			return nil, fmt.Errorf("create virtual account: %w", err)
		}
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock virtual account: %w", err)
	}

	if err := s.loadPositionsAndFills(ctx, tx, accountID, state); err != nil {
		return nil, err
	}
	return state, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (s *VirtualStore) loadPositionsAndFills(ctx context.Context, q querier, accountID string, state *virtual.State) error {
	rows, err := q.Query(ctx, `
		SELECT symbol, quantity, average_price, realized_pnl
		FROM relay_virtual_positions
		WHERE account_id = $1
	`, accountID)
	if err != nil {
		return fmt.Errorf("load virtual positions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pos domain.Position
		if err := rows.Scan(&pos.Symbol, &pos.Quantity, &pos.AveragePrice, &pos.RealizedPnL); err != nil {
			return fmt.Errorf("scan virtual position: %w", err)
		}
		state.Positions[pos.Symbol] = pos
	}
	rows.Close()

	fillRows, err := q.Query(ctx, `
		SELECT id, symbol, action, quantity, price, realized_pnl, filled_at
		FROM relay_virtual_fills
		WHERE account_id = $1
		ORDER BY filled_at, id
	`, accountID)
	if err != nil {
		return fmt.Errorf("load virtual fills: %w", err)
	}
	defer fillRows.Close()
	for fillRows.Next() {
		var fill virtual.Fill
		var action string
		if err := fillRows.Scan(
			&fill.ID, &fill.Symbol, &action, &fill.Quantity,
			&fill.Price, &fill.RealizedPnL, &fill.FilledAt,
		); err != nil {
			return fmt.Errorf("scan virtual fill: %w", err)
		}
		fill.Action = domain.Action(action)
		state.Fills = append(state.Fills, fill)
	}

	return nil
}
