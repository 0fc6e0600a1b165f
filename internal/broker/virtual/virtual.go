// Package virtual is the paper-trading simulator. It implements the same
// capability set as the live adapters, fills every order synchronously at
// a deterministic price, and keeps its ledger in a durable StateStore
// keyed by account id.
package virtual

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"relay/internal/broker"
	"relay/internal/domain"
)

// OrderIDPrefix marks simulator-generated order ids.
const OrderIDPrefix = "VIRTUAL_"

var _ broker.Adapter = (*Broker)(nil)

// OrderRequest carries the normalized signal straight through; the
// simulator has no wire schema to convert to.
type OrderRequest struct {
	Signal domain.TradeSignal
}

// Broker tags the request for the router.
func (*OrderRequest) Broker() domain.BrokerName { return domain.BrokerVirtual }

// Broker simulates one virtual account.
type Broker struct {
	accountID string
	store     StateStore
	prices    PriceSource

	now   func() time.Time
	newID func() string
}

// New builds a simulator bound to one account's ledger.
func New(accountID string, store StateStore, prices PriceSource) *Broker {
	return &Broker{
		accountID: accountID,
		store:     store,
		prices:    prices,
		now:       time.Now,
		newID:     func() string { return OrderIDPrefix + uuid.NewString() },
	}
}

// Name returns the broker tag.
func (b *Broker) Name() domain.BrokerName { return domain.BrokerVirtual }

// Profile returns the fixed simulator identity.
func (b *Broker) Profile(ctx context.Context) (*domain.Profile, error) {
	return &domain.Profile{Name: "Virtual Trading Account"}, nil
}

// Balance reads the ledger's cash balance.
func (b *Broker) Balance(ctx context.Context) (*domain.Balance, error) {
	state, err := b.store.State(ctx, b.accountID)
	if err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "load virtual state: %v", err)
	}
	return &domain.Balance{Available: state.Balance}, nil
}

// Positions returns the open positions, flat symbols omitted.
func (b *Broker) Positions(ctx context.Context) ([]domain.Position, error) {
	state, err := b.store.State(ctx, b.accountID)
	if err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "load virtual state: %v", err)
	}

	var positions []domain.Position
	for _, pos := range state.Positions {
		if pos.Quantity.IsZero() {
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// PlaceOrder fills the order immediately and books it into the ledger in
// one atomic load-mutate-persist. The simulator never rejects an order on
// business grounds; only a state-store failure can fail a placement.
func (b *Broker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.Placement, error) {
	order, ok := req.(*OrderRequest)
	if !ok {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "virtual: unexpected order request type %T", req)
	}
	sig := order.Signal

	fill := Fill{
		ID:       b.newID(),
		Symbol:   sig.Symbol,
		Action:   sig.Action,
		Quantity: sig.Quantity,
		Price:    b.fillPrice(sig),
		FilledAt: b.now().UTC(),
	}

	err := b.store.WithState(ctx, b.accountID, func(state *State) error {
		fill.RealizedPnL = state.Apply(fill)
		return nil
	})
	if err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "persist virtual fill: %v", err)
	}

	raw, _ := json.Marshal(fill)
	price := fill.Price
	return &broker.Placement{
		OrderID:       fill.ID,
		ExecutedPrice: &price,
		Raw:           raw,
	}, nil
}

// OrderStatus looks the fill up in the ledger.
func (b *Broker) OrderStatus(ctx context.Context, orderID string) (json.RawMessage, error) {
	state, err := b.store.State(ctx, b.accountID)
	if err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "load virtual state: %v", err)
	}
	for _, fill := range state.Fills {
		if fill.ID == orderID {
			return json.Marshal(fill)
		}
	}
	return nil, domain.ErrOrderNotFound
}

// CancelOrder always fails: virtual orders fill synchronously, so there is
// never anything open to cancel.
func (b *Broker) CancelOrder(ctx context.Context, orderID string) error {
	return domain.NewBrokerError(domain.ErrorTypeBrokerRejection, "virtual orders fill immediately and cannot be cancelled")
}

func (b *Broker) fillPrice(sig domain.TradeSignal) decimal.Decimal {
	if sig.Price != nil {
		return *sig.Price
	}
	return b.prices.Price(sig.Symbol)
}

// ConvertSignal wraps the signal unchanged.
func ConvertSignal(sig domain.TradeSignal) (broker.OrderRequest, error) {
	return &OrderRequest{Signal: sig}, nil
}

// Registration describes the simulator for the broker catalog. The
// constructor is nil: virtual accounts are routed to a simulator the
// engine owns, since building one needs the state store, not credentials.
func Registration() broker.Registration {
	return broker.Registration{
		Name:        domain.BrokerVirtual,
		DisplayName: "Virtual Trading",
		Description: "Paper trading with simulated fills",
		AuthType:    "none",
		Features:    []string{"Equity", "F&O", "Paper Trading"},
		Convert:     ConvertSignal,
	}
}
