package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// BrokerName identifies a supported brokerage integration.
type BrokerName string

const (
	BrokerZerodha BrokerName = "ZERODHA"
	BrokerUpstox  BrokerName = "UPSTOX"
	BrokerFyers   BrokerName = "FYERS"
	BrokerBinance BrokerName = "BINANCE"
	BrokerVirtual BrokerName = "VIRTUAL"
)

// Action represents the trade direction of a signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// OrderType represents the normalized order type of a signal.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// OrderStatus represents the lifecycle status of a persisted order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusExecuted  OrderStatus = "EXECUTED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// BrokerAccount is a snapshot of one brokerage connection owned by a user.
// Credentials arrive already decrypted; the core never writes them back.
type BrokerAccount struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	BrokerName  BrokerName      `json:"broker_name"`
	APIKey      string          `json:"-"`
	APISecret   string          `json:"-"`
	AccessToken string          `json:"-"`
	IsVirtual   bool            `json:"is_virtual"`
	Balance     decimal.Decimal `json:"balance"`
	IsActive    bool            `json:"is_active"`
}

// TradeSignal is a normalized trading instruction derived from an inbound
// webhook alert. Action, Symbol and Quantity are always present after
// validation; Price is set when the order type requires a limit price.
type TradeSignal struct {
	Action     Action           `json:"action"`
	Symbol     string           `json:"symbol"`
	Quantity   decimal.Decimal  `json:"quantity"`
	OrderType  OrderType        `json:"order_type"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	StopLoss   *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit *decimal.Decimal `json:"take_profit,omitempty"`

	// Broker-specific hints; adapters apply their own defaults when absent.
	Product  string `json:"product,omitempty"`
	Exchange string `json:"exchange,omitempty"`
}

// OrderResult is the uniform outcome of routing one signal to one broker.
// Every adapter failure is normalized into this shape; callers persist it
// and relay it to the user.
type OrderResult struct {
	Success       bool             `json:"success"`
	OrderID       string           `json:"order_id,omitempty"`
	ExecutedPrice *decimal.Decimal `json:"executed_price,omitempty"`
	Raw           json.RawMessage  `json:"raw,omitempty"`
	Error         string           `json:"error,omitempty"`
	ErrorType     ErrorType        `json:"error_type,omitempty"`
}

// Position is a broker position normalized to the common shape. Brokerages
// that only expose wallet balances synthesize positions from non-zero
// balances. RealizedPnL is the running total booked against this position;
// live brokerages that do not report it leave it zero.
type Position struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
}

// Profile is the minimal account identity returned by connectivity checks.
type Profile struct {
	Name  string          `json:"name,omitempty"`
	Email string          `json:"email,omitempty"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}

// Balance is the available cash or margin reported by a broker, plus the
// raw funds response it was extracted from.
type Balance struct {
	Available decimal.Decimal `json:"available"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// Order is the persisted record of one routed signal.
type Order struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	BrokerAccountID string           `json:"broker_account_id"`
	StrategyID      string           `json:"strategy_id,omitempty"`
	WebhookID       string           `json:"webhook_id,omitempty"`
	Symbol          string           `json:"symbol"`
	Action          Action           `json:"action"`
	OrderType       OrderType        `json:"order_type"`
	Quantity        decimal.Decimal  `json:"quantity"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	StopLoss        *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit      *decimal.Decimal `json:"take_profit,omitempty"`
	Status          OrderStatus      `json:"status"`
	BrokerOrderID   string           `json:"broker_order_id,omitempty"`
	ExecutedPrice   *decimal.Decimal `json:"executed_price,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	IsVirtual       bool             `json:"is_virtual"`
	CreatedAt       time.Time        `json:"created_at"`
	ExecutedAt      *time.Time       `json:"executed_at,omitempty"`
}

// Webhook is the per-user, per-strategy endpoint record that inbound alerts
// are matched against.
type Webhook struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	StrategyID    string     `json:"strategy_id"`
	StrategyName  string     `json:"strategy_name"`
	IsVirtual     bool       `json:"is_virtual"`
	IsActive      bool       `json:"is_active"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	TriggerCount  int64      `json:"trigger_count"`
	CreatedAt     time.Time  `json:"created_at"`
}
