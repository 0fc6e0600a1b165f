package ingest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"relay/internal/domain"
	"relay/internal/signal"
)

func TestSignalEventValidation_Valid(t *testing.T) {
	event := SignalEvent{
		UserID:     "user-1",
		StrategyID: "strat-1",
		Payload: signal.Payload{
			Action:   "BUY",
			Symbol:   "RELIANCE",
			Quantity: decimal.NewFromInt(50),
		},
	}

	if err := event.Validate(); err != nil {
		t.Fatalf("expected valid event, got error: %v", err)
	}

	sig, err := event.ToSignal()
	if err != nil {
		t.Fatalf("ToSignal: %v", err)
	}
	if sig.Action != domain.ActionBuy || sig.OrderType != domain.OrderTypeMarket {
		t.Errorf("signal = %+v", sig)
	}
}

func TestSignalEventValidation_MissingFields(t *testing.T) {
	tests := []struct {
		name  string
		event SignalEvent
		want  string
	}{
		{
			name:  "missing user_id",
			event: SignalEvent{StrategyID: "s-1"},
			want:  "missing required field: user_id",
		},
		{
			name:  "missing strategy_id",
			event: SignalEvent{UserID: "u-1"},
			want:  "missing required field: strategy_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestSignalEventToSignal_InvalidPayload(t *testing.T) {
	event := SignalEvent{
		UserID:     "user-1",
		StrategyID: "strat-1",
		Payload: signal.Payload{
			Action:   "HOLD",
			Symbol:   "RELIANCE",
			Quantity: decimal.NewFromInt(1),
		},
	}

	if _, err := event.ToSignal(); domain.TypeOf(err) != domain.ErrorTypeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSignalEventJSONShape(t *testing.T) {
	raw := `{
		"user_id": "user-1",
		"strategy_id": "strat-1",
		"action": "sell",
		"symbol": "BTCUSDT",
		"quantity": "0.5",
		"orderType": "LIMIT",
		"price": 60000
	}`

	var event SignalEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := event.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	sig, err := event.ToSignal()
	if err != nil {
		t.Fatalf("ToSignal: %v", err)
	}
	if sig.Action != domain.ActionSell || sig.OrderType != domain.OrderTypeLimit {
		t.Errorf("signal = %+v", sig)
	}
	if sig.Price == nil || !sig.Price.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("price = %v, want 60000", sig.Price)
	}
}
