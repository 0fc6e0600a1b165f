package ingest

import (
	"fmt"

	"relay/internal/domain"
	"relay/internal/signal"
)

// SignalEvent is the JSON structure for signal events received via NATS.
// It is the webhook payload plus the addressing fields that normally come
// from the URL path.
type SignalEvent struct {
	UserID     string `json:"user_id"`
	StrategyID string `json:"strategy_id"`
	signal.Payload
}

// Validate checks the addressing fields; the embedded payload is
// validated by ToSignal.
func (e *SignalEvent) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("missing required field: user_id")
	}
	if e.StrategyID == "" {
		return fmt.Errorf("missing required field: strategy_id")
	}
	return nil
}

// ToSignal normalizes the embedded payload into a trade signal.
func (e *SignalEvent) ToSignal() (domain.TradeSignal, error) {
	return e.Payload.Normalize()
}
