package signal

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"relay/internal/domain"
)

func TestParseValidSignal(t *testing.T) {
	sig, err := Parse([]byte(`{
		"action": "buy",
		"symbol": "reliance",
		"quantity": 50,
		"orderType": "limit",
		"price": "2450.50"
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if sig.Action != domain.ActionBuy {
		t.Errorf("action = %s, want BUY", sig.Action)
	}
	if sig.Symbol != "RELIANCE" {
		t.Errorf("symbol = %s, want RELIANCE", sig.Symbol)
	}
	if !sig.Quantity.Equal(decimal.NewFromInt(50)) {
		t.Errorf("quantity = %s, want 50", sig.Quantity)
	}
	if sig.OrderType != domain.OrderTypeLimit {
		t.Errorf("order type = %s, want LIMIT", sig.OrderType)
	}
	if sig.Price == nil || !sig.Price.Equal(decimal.RequireFromString("2450.50")) {
		t.Errorf("price = %v, want 2450.50", sig.Price)
	}
}

func TestParseDefaultsToMarket(t *testing.T) {
	sig, err := Parse([]byte(`{"action":"SELL","symbol":"TCS","quantity":"10"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sig.OrderType != domain.OrderTypeMarket {
		t.Errorf("order type = %s, want MARKET default", sig.OrderType)
	}
}

func TestParseFractionalQuantity(t *testing.T) {
	sig, err := Parse([]byte(`{"action":"BUY","symbol":"BTCUSDT","quantity":0.5}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !sig.Quantity.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("quantity = %s, want 0.5", sig.Quantity)
	}
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `buy RELIANCE`, "malformed"},
		{"missing action", `{"symbol":"X","quantity":1}`, "missing action"},
		{"bad action", `{"action":"HOLD","symbol":"X","quantity":1}`, "invalid action"},
		{"missing symbol", `{"action":"BUY","quantity":1}`, "missing symbol"},
		{"zero quantity", `{"action":"BUY","symbol":"X","quantity":0}`, "quantity must be positive"},
		{"negative quantity", `{"action":"BUY","symbol":"X","quantity":-5}`, "quantity must be positive"},
		{"bad order type", `{"action":"BUY","symbol":"X","quantity":1,"orderType":"ICEBERG"}`, "invalid order type"},
		{"limit without price", `{"action":"BUY","symbol":"X","quantity":1,"orderType":"LIMIT"}`, "requires a positive price"},
		{"stop limit without price", `{"action":"BUY","symbol":"X","quantity":1,"orderType":"STOP_LIMIT"}`, "requires a positive price"},
		{"negative price", `{"action":"BUY","symbol":"X","quantity":1,"price":-10}`, "price must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if domain.TypeOf(err) != domain.ErrorTypeValidation {
				t.Errorf("error type = %s, want validation", domain.TypeOf(err))
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestNormalizeUppercasesHints(t *testing.T) {
	sig, err := Payload{
		Action:   "buy",
		Symbol:   "nifty",
		Quantity: decimal.NewFromInt(75),
		Product:  "mis",
		Exchange: "nfo",
	}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if sig.Product != "MIS" || sig.Exchange != "NFO" {
		t.Errorf("hints = %s/%s, want MIS/NFO", sig.Product, sig.Exchange)
	}
}
