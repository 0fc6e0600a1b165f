package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"relay/internal/broker"
	"relay/internal/broker/virtual"
	"relay/internal/domain"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	store := virtual.NewMemoryStore(decimal.NewFromInt(100000))
	return New(zerolog.Nop(), store, virtual.NewStaticPrices(), nil)
}

func TestCreateAdapterKnownBrokers(t *testing.T) {
	e := newTestExecutor(t)

	for _, name := range []domain.BrokerName{
		domain.BrokerZerodha,
		domain.BrokerUpstox,
		domain.BrokerFyers,
		domain.BrokerBinance,
	} {
		adapter, err := e.CreateAdapter(domain.BrokerAccount{
			ID:         "acct",
			BrokerName: name,
			APIKey:     "k", APISecret: "s", AccessToken: "t",
		})
		if err != nil {
			t.Errorf("CreateAdapter(%s): %v", name, err)
			continue
		}
		if adapter.Name() != name {
			t.Errorf("adapter name = %s, want %s", adapter.Name(), name)
		}
	}
}

func TestCreateAdapterUnknownBroker(t *testing.T) {
	e := newTestExecutor(t)

	_, err := e.CreateAdapter(domain.BrokerAccount{BrokerName: "ROBINHOOD"})
	if domain.TypeOf(err) != domain.ErrorTypeUnsupportedBroker {
		t.Fatalf("want unsupported broker error, got %v", err)
	}
}

func TestCreateAdapterVirtualAccount(t *testing.T) {
	e := newTestExecutor(t)

	// The virtual flag routes to the simulator regardless of tag.
	adapter, err := e.CreateAdapter(domain.BrokerAccount{
		ID:         "acct",
		BrokerName: domain.BrokerZerodha,
		IsVirtual:  true,
	})
	if err != nil {
		t.Fatalf("CreateAdapter: %v", err)
	}
	if adapter.Name() != domain.BrokerVirtual {
		t.Errorf("adapter name = %s, want VIRTUAL", adapter.Name())
	}
}

func TestExecuteOrderUnknownBrokerFolds(t *testing.T) {
	e := newTestExecutor(t)

	result := e.ExecuteOrder(context.Background(), domain.BrokerAccount{BrokerName: "ROBINHOOD"}, domain.TradeSignal{
		Action:   domain.ActionBuy,
		Symbol:   "AAPL",
		Quantity: decimal.NewFromInt(1),
	})
	if result.Success {
		t.Fatal("unknown broker reported success")
	}
	if result.ErrorType != domain.ErrorTypeUnsupportedBroker {
		t.Errorf("error type = %s, want unsupported_broker", result.ErrorType)
	}
}

func TestExecuteOrderVirtual(t *testing.T) {
	e := newTestExecutor(t)

	result := e.ExecuteOrder(context.Background(), domain.BrokerAccount{
		ID:        "acct-1",
		IsVirtual: true,
	}, domain.TradeSignal{
		Action:   domain.ActionBuy,
		Symbol:   "RELIANCE",
		Quantity: decimal.NewFromInt(10),
	})
	if !result.Success {
		t.Fatalf("virtual execution failed: %s", result.Error)
	}
	if result.OrderID == "" || result.ExecutedPrice == nil {
		t.Errorf("result missing order id or price: %+v", result)
	}
	if !result.ExecutedPrice.Equal(decimal.NewFromInt(2450)) {
		t.Errorf("executed price = %s, want reference 2450", result.ExecutedPrice)
	}
}

func TestExecuteOrderConversionFailureFolds(t *testing.T) {
	e := newTestExecutor(t)

	// Limit order without a price fails in the converter, before any I/O.
	result := e.ExecuteOrder(context.Background(), domain.BrokerAccount{
		BrokerName: domain.BrokerBinance,
		APIKey:     "k", APISecret: "s",
	}, domain.TradeSignal{
		Action:    domain.ActionBuy,
		Symbol:    "BTC",
		Quantity:  decimal.NewFromInt(1),
		OrderType: domain.OrderTypeLimit,
	})
	if result.Success {
		t.Fatal("conversion failure reported success")
	}
	if result.ErrorType != domain.ErrorTypeValidation {
		t.Errorf("error type = %s, want validation", result.ErrorType)
	}
}

type panicAdapter struct{}

func (panicAdapter) Name() domain.BrokerName { return "PANIC" }
func (panicAdapter) Profile(context.Context) (*domain.Profile, error) {
	panic("profile")
}
func (panicAdapter) Balance(context.Context) (*domain.Balance, error) {
	panic("balance")
}
func (panicAdapter) Positions(context.Context) ([]domain.Position, error) {
	panic("positions")
}
func (panicAdapter) PlaceOrder(context.Context, broker.OrderRequest) (*broker.Placement, error) {
	panic("place order exploded")
}
func (panicAdapter) OrderStatus(context.Context, string) (json.RawMessage, error) {
	panic("status")
}
func (panicAdapter) CancelOrder(context.Context, string) error { panic("cancel") }

type panicRequest struct{}

func (panicRequest) Broker() domain.BrokerName { return "PANIC" }

func TestExecuteOrderRecoversPanic(t *testing.T) {
	broker.Register(broker.Registration{
		Name: "PANIC",
		New: func(broker.Credentials, broker.Options) broker.Adapter {
			return panicAdapter{}
		},
		Convert: func(domain.TradeSignal) (broker.OrderRequest, error) {
			return panicRequest{}, nil
		},
	})

	e := newTestExecutor(t)
	result := e.ExecuteOrder(context.Background(), domain.BrokerAccount{BrokerName: "PANIC"}, domain.TradeSignal{
		Action:   domain.ActionBuy,
		Symbol:   "X",
		Quantity: decimal.NewFromInt(1),
	})
	if result.Success {
		t.Fatal("panicking adapter reported success")
	}
	if result.ErrorType != domain.ErrorTypeUnknown {
		t.Errorf("error type = %s, want unknown", result.ErrorType)
	}
}

func TestSupportedBrokersCatalog(t *testing.T) {
	regs := SupportedBrokers()

	want := map[domain.BrokerName]bool{
		domain.BrokerZerodha: false,
		domain.BrokerUpstox:  false,
		domain.BrokerFyers:   false,
		domain.BrokerBinance: false,
		domain.BrokerVirtual: false,
	}
	for _, reg := range regs {
		if _, ok := want[reg.Name]; ok {
			want[reg.Name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("catalog missing %s", name)
		}
	}

	// Sorted, so two calls agree.
	again := SupportedBrokers()
	for i := range regs {
		if regs[i].Name != again[i].Name {
			t.Errorf("catalog order unstable at %d: %s vs %s", i, regs[i].Name, again[i].Name)
		}
	}
}

func TestValidateBrokerCredentials(t *testing.T) {
	tests := []struct {
		name    domain.BrokerName
		creds   map[string]string
		valid   bool
		missing int
	}{
		{domain.BrokerZerodha, map[string]string{"apiKey": "k", "apiSecret": "s", "accessToken": "t"}, true, 0},
		{domain.BrokerZerodha, map[string]string{"apiKey": "k"}, false, 2},
		{domain.BrokerBinance, map[string]string{"apiKey": "k", "apiSecret": "s"}, true, 0},
		{domain.BrokerVirtual, nil, true, 0},
		{"ROBINHOOD", map[string]string{"apiKey": "k"}, false, 0},
	}

	for _, tt := range tests {
		v := ValidateBrokerCredentials(tt.name, tt.creds)
		if v.Valid != tt.valid {
			t.Errorf("%s: valid = %v, want %v (%s)", tt.name, v.Valid, tt.valid, v.Error)
		}
		if len(v.MissingFields) != tt.missing {
			t.Errorf("%s: missing = %v, want %d fields", tt.name, v.MissingFields, tt.missing)
		}
	}
}
