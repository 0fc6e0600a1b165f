package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"relay/internal/domain"
)

// InsertOrder persists a freshly routed order in PENDING state.
func (r *Repository) InsertOrder(ctx context.Context, order *domain.Order) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO relay_orders (
			id, user_id, broker_account_id, strategy_id, webhook_id,
			symbol, action, order_type, quantity, price, stop_loss, take_profit,
			status, is_virtual, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		order.ID, order.UserID, order.BrokerAccountID, order.StrategyID, order.WebhookID,
		order.Symbol, string(order.Action), string(order.OrderType),
		order.Quantity, order.Price, order.StopLoss, order.TakeProfit,
		string(order.Status), order.IsVirtual, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// UpdateOrderExecution records the broker's answer for a pending order:
// EXECUTED with the broker order id on success, REJECTED with the error
// message otherwise.
func (r *Repository) UpdateOrderExecution(ctx context.Context, orderID string, result domain.OrderResult) error {
	status := domain.OrderStatusRejected
	var executedAt *time.Time
	if result.Success {
		status = domain.OrderStatusExecuted
		now := time.Now().UTC()
		executedAt = &now
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE relay_orders
		SET status = $2, broker_order_id = $3, executed_price = $4,
			error_message = $5, executed_at = $6
		WHERE id = $1
	`, orderID, string(status), result.OrderID, result.ExecutedPrice, result.Error, executedAt)
	if err != nil {
		return fmt.Errorf("update order execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// GetOrder fetches one order by id.
func (r *Repository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, broker_account_id, strategy_id, webhook_id,
			symbol, action, order_type, quantity, price, stop_loss, take_profit,
			status, broker_order_id, executed_price, error_message, is_virtual,
			created_at, executed_at
		FROM relay_orders
		WHERE id = $1
	`, orderID)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// OrderFilter defines filters for listing orders.
type OrderFilter struct {
	AccountID string
	Symbol    string
	Status    string
	IsVirtual *bool
	Start     *time.Time
	End       *time.Time
	Cursor    string
	Limit     int
}

// OrderListResult contains paginated order results.
type OrderListResult struct {
	Orders     []domain.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ListOrders returns a user's orders with filters and cursor-based
// pagination, newest first.
func (r *Repository) ListOrders(ctx context.Context, userID string, filter OrderFilter) (*OrderListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}

	var conditions []string
	var args []interface{}
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
	args = append(args, userID)
	argIdx++

	if filter.AccountID != "" {
		conditions = append(conditions, fmt.Sprintf("broker_account_id = $%d", argIdx))
		args = append(args, filter.AccountID)
		argIdx++
	}
	if filter.Symbol != "" {
		conditions = append(conditions, fmt.Sprintf("symbol = $%d", argIdx))
		args = append(args, filter.Symbol)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.IsVirtual != nil {
		conditions = append(conditions, fmt.Sprintf("is_virtual = $%d", argIdx))
		args = append(args, *filter.IsVirtual)
		argIdx++
	}
	if filter.Start != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filter.Start)
		argIdx++
	}
	if filter.End != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *filter.End)
		argIdx++
	}

	// Cursor-based pagination: cursor is base64-encoded "created_at|id"
	if filter.Cursor != "" {
		cursorTS, cursorID, err := decodeCursor(filter.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		conditions = append(conditions, fmt.Sprintf(
			"(created_at, id) < ($%d, $%d)", argIdx, argIdx+1,
		))
		args = append(args, cursorTS, cursorID)
		argIdx += 2
	}

	where := strings.Join(conditions, " AND ")

	query := fmt.Sprintf(`
		SELECT id, user_id, broker_account_id, strategy_id, webhook_id,
			symbol, action, order_type, quantity, price, stop_loss, take_profit,
			status, broker_order_id, executed_price, error_message, is_virtual,
			created_at, executed_at
		FROM relay_orders
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, where, argIdx)
	args = append(args, filter.Limit+1) // fetch one extra to check if there's a next page

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	result := &OrderListResult{}
	if len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
		last := orders[len(orders)-1]
		result.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	result.Orders = orders
	if result.Orders == nil {
		result.Orders = []domain.Order{}
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var action, orderType, status string
	var strategyID, webhookID, brokerOrderID, errorMessage *string
	err := row.Scan(
		&o.ID, &o.UserID, &o.BrokerAccountID, &strategyID, &webhookID,
		&o.Symbol, &action, &orderType, &o.Quantity, &o.Price, &o.StopLoss, &o.TakeProfit,
		&status, &brokerOrderID, &o.ExecutedPrice, &errorMessage, &o.IsVirtual,
		&o.CreatedAt, &o.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Action = domain.Action(action)
	o.OrderType = domain.OrderType(orderType)
	o.Status = domain.OrderStatus(status)
	if strategyID != nil {
		o.StrategyID = *strategyID
	}
	if webhookID != nil {
		o.WebhookID = *webhookID
	}
	if brokerOrderID != nil {
		o.BrokerOrderID = *brokerOrderID
	}
	if errorMessage != nil {
		o.ErrorMessage = *errorMessage
	}
	return &o, nil
}

func encodeCursor(ts time.Time, id string) string {
	raw := fmt.Sprintf("%s|%s", ts.Format(time.RFC3339Nano), id)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("decode base64: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("invalid cursor format")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("parse timestamp: %w", err)
	}
	return ts, parts[1], nil
}
