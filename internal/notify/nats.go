package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSSender publishes order events for the dashboard layer, which holds
// the websocket connections to users.
type NATSSender struct {
	nc            *nats.Conn
	subjectPrefix string
}

var _ Sender = (*NATSSender)(nil)

// NewNATSSender builds a sender publishing to {prefix}.{userID}.
func NewNATSSender(nc *nats.Conn, subjectPrefix string) *NATSSender {
	if subjectPrefix == "" {
		subjectPrefix = "relay.orders"
	}
	return &NATSSender{nc: nc, subjectPrefix: subjectPrefix}
}

func (s *NATSSender) Name() string { return "nats" }

func (s *NATSSender) Send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", s.subjectPrefix, ev.UserID)
	if err := s.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
