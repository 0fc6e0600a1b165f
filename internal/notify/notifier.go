// Package notify fans order outcomes out to notification channels. A
// failed notification is logged and dropped; it never fails the order
// path that produced it.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"relay/internal/domain"
)

// Event types.
const (
	TypeOrderExecuted = "order_executed"
	TypeOrderFailed   = "order_failed"
)

// Event is one user-facing notification.
type Event struct {
	UserID    string        `json:"user_id"`
	Type      string        `json:"type"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	Order     *domain.Order `json:"order,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// OrderEvent builds the notification for one routed order.
func OrderEvent(order domain.Order, strategyName string) Event {
	ev := Event{
		UserID:    order.UserID,
		Order:     &order,
		CreatedAt: time.Now().UTC(),
	}

	source := strategyName
	if source == "" {
		source = "manual order"
	}

	if order.Status == domain.OrderStatusExecuted {
		ev.Type = TypeOrderExecuted
		ev.Title = "Order Executed"
		ev.Message = fmt.Sprintf("%s %s %s executed via %s", order.Action, order.Quantity, order.Symbol, source)
	} else {
		ev.Type = TypeOrderFailed
		ev.Title = "Order Failed"
		ev.Message = fmt.Sprintf("%s %s %s failed: %s", order.Action, order.Quantity, order.Symbol, order.ErrorMessage)
	}
	return ev
}

// Sender delivers one event over one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Notifier fans events out to every configured sender.
type Notifier struct {
	log     zerolog.Logger
	senders []Sender
}

// New builds a notifier. Zero senders is valid and makes Notify a no-op.
func New(log zerolog.Logger, senders ...Sender) *Notifier {
	return &Notifier{
		log:     log.With().Str("component", "notify").Logger(),
		senders: senders,
	}
}

// Notify delivers the event on every channel. Errors are logged per
// sender; one channel failing does not stop the others.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	for _, sender := range n.senders {
		if err := sender.Send(ctx, ev); err != nil {
			n.log.Warn().
				Err(err).
				Str("sender", sender.Name()).
				Str("user_id", ev.UserID).
				Msg("notification delivery failed")
		}
	}
}
