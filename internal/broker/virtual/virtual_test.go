package virtual

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"relay/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }

func newTestBroker(t *testing.T) (*Broker, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(dec("100000"))
	return New("acct-1", store, NewStaticPrices()), store
}

func TestRoundTripRealizesPnL(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBroker(t)

	buy, err := b.PlaceOrder(ctx, &OrderRequest{Signal: domain.TradeSignal{
		Action:   domain.ActionBuy,
		Symbol:   "RELIANCE",
		Quantity: dec("50"),
	}})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !buy.ExecutedPrice.Equal(dec("2450")) {
		t.Errorf("buy fill price = %s, want reference 2450", buy.ExecutedPrice)
	}

	sell, err := b.PlaceOrder(ctx, &OrderRequest{Signal: domain.TradeSignal{
		Action:   domain.ActionSell,
		Symbol:   "RELIANCE",
		Quantity: dec("50"),
		Price:    ptr(dec("2500")),
	}})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !sell.ExecutedPrice.Equal(dec("2500")) {
		t.Errorf("sell fill price = %s, want signal price 2500", sell.ExecutedPrice)
	}

	bal, err := b.Balance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	// 100000 - 50*2450 + 50*2500
	if !bal.Available.Equal(dec("102500")) {
		t.Errorf("balance = %s, want 102500", bal.Available)
	}

	positions, err := b.Positions(ctx)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("flat account still reports positions: %+v", positions)
	}

	// The flat position record keeps the running realized PnL.
	state, err := store.State(ctx, "acct-1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if got := state.Positions["RELIANCE"].RealizedPnL; !got.Equal(dec("2500")) {
		t.Errorf("position realized pnl = %s, want 2500", got)
	}
}

func TestWeightedAveragePrice(t *testing.T) {
	state := NewState(dec("1000000"))

	state.Apply(Fill{Symbol: "TCS", Action: domain.ActionBuy, Quantity: dec("10"), Price: dec("3800")})
	state.Apply(Fill{Symbol: "TCS", Action: domain.ActionBuy, Quantity: dec("30"), Price: dec("3900")})

	pos := state.Positions["TCS"]
	if !pos.Quantity.Equal(dec("40")) {
		t.Fatalf("quantity = %s, want 40", pos.Quantity)
	}
	// (10*3800 + 30*3900) / 40
	if !pos.AveragePrice.Equal(dec("3875")) {
		t.Errorf("average = %s, want 3875", pos.AveragePrice)
	}

	realized := state.Apply(Fill{Symbol: "TCS", Action: domain.ActionSell, Quantity: dec("15"), Price: dec("3975")})
	if !realized.Equal(dec("1500")) {
		t.Errorf("realized = %s, want 15*(3975-3875) = 1500", realized)
	}
	pos = state.Positions["TCS"]
	if !pos.AveragePrice.Equal(dec("3875")) {
		t.Errorf("average moved on a reducing fill: %s", pos.AveragePrice)
	}
	if !pos.RealizedPnL.Equal(dec("1500")) {
		t.Errorf("position realized pnl = %s, want 1500", pos.RealizedPnL)
	}

	// A second reducing fill accumulates into the position's total.
	state.Apply(Fill{Symbol: "TCS", Action: domain.ActionSell, Quantity: dec("10"), Price: dec("3925")})
	pos = state.Positions["TCS"]
	if !pos.RealizedPnL.Equal(dec("2000")) {
		t.Errorf("position realized pnl = %s, want 1500 + 10*(3925-3875) = 2000", pos.RealizedPnL)
	}
}

func TestShortPosition(t *testing.T) {
	state := NewState(dec("0"))

	state.Apply(Fill{Symbol: "INFY", Action: domain.ActionSell, Quantity: dec("20"), Price: dec("1650")})
	pos := state.Positions["INFY"]
	if !pos.Quantity.Equal(dec("-20")) {
		t.Fatalf("quantity = %s, want -20", pos.Quantity)
	}
	if !state.Balance.Equal(dec("33000")) {
		t.Errorf("balance = %s, want 33000 from short proceeds", state.Balance)
	}

	realized := state.Apply(Fill{Symbol: "INFY", Action: domain.ActionBuy, Quantity: dec("20"), Price: dec("1600")})
	if !realized.Equal(dec("1000")) {
		t.Errorf("realized = %s, want 20*(1650-1600) = 1000", realized)
	}
	if !state.Positions["INFY"].Quantity.IsZero() {
		t.Errorf("position not flat after cover")
	}
}

func TestCrossingZeroResetsAverage(t *testing.T) {
	state := NewState(dec("1000000"))

	state.Apply(Fill{Symbol: "HDFCBANK", Action: domain.ActionBuy, Quantity: dec("10"), Price: dec("1580")})
	state.Apply(Fill{Symbol: "HDFCBANK", Action: domain.ActionSell, Quantity: dec("25"), Price: dec("1600")})

	pos := state.Positions["HDFCBANK"]
	if !pos.Quantity.Equal(dec("-15")) {
		t.Fatalf("quantity = %s, want -15", pos.Quantity)
	}
	if !pos.AveragePrice.Equal(dec("1600")) {
		t.Errorf("average = %s, want fresh short basis 1600", pos.AveragePrice)
	}
}

func TestUnknownSymbolUsesFallbackPrice(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBroker(t)

	placement, err := b.PlaceOrder(ctx, &OrderRequest{Signal: domain.TradeSignal{
		Action:   domain.ActionBuy,
		Symbol:   "OBSCURE",
		Quantity: dec("1"),
	}})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !placement.ExecutedPrice.Equal(dec("100")) {
		t.Errorf("fill price = %s, want fallback 100", placement.ExecutedPrice)
	}
}

func TestOrderStatusAndCancel(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBroker(t)

	placement, err := b.PlaceOrder(ctx, &OrderRequest{Signal: domain.TradeSignal{
		Action:   domain.ActionBuy,
		Symbol:   "NIFTY",
		Quantity: dec("1"),
	}})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if _, err := b.OrderStatus(ctx, placement.OrderID); err != nil {
		t.Errorf("OrderStatus(%s): %v", placement.OrderID, err)
	}
	if _, err := b.OrderStatus(ctx, "VIRTUAL_missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("want ErrOrderNotFound, got %v", err)
	}
	if err := b.CancelOrder(ctx, placement.OrderID); domain.TypeOf(err) != domain.ErrorTypeBrokerRejection {
		t.Errorf("cancel should be rejected, got %v", err)
	}
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(dec("5000"))

	err := store.WithState(ctx, "acct", func(state *State) error {
		state.Apply(Fill{Symbol: "X", Action: domain.ActionBuy, Quantity: dec("1"), Price: dec("100")})
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error from callback")
	}

	state, err := store.State(ctx, "acct")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !state.Balance.Equal(dec("5000")) || len(state.Fills) != 0 {
		t.Errorf("failed mutation leaked: balance=%s fills=%d", state.Balance, len(state.Fills))
	}
}

func TestStateIsDurablePerAccount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(dec("100000"))

	// Two broker instances over the same store and account see one ledger.
	first := New("acct-9", store, NewStaticPrices())
	if _, err := first.PlaceOrder(ctx, &OrderRequest{Signal: domain.TradeSignal{
		Action:   domain.ActionBuy,
		Symbol:   "TCS",
		Quantity: dec("2"),
	}}); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	second := New("acct-9", store, NewStaticPrices())
	positions, err := second.Positions(ctx)
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(positions) != 1 || !positions[0].Quantity.Equal(dec("2")) {
		t.Errorf("ledger not shared across instances: %+v", positions)
	}

	// A different account starts fresh.
	other := New("acct-10", store, NewStaticPrices())
	bal, err := other.Balance(ctx)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !bal.Available.Equal(dec("100000")) {
		t.Errorf("new account balance = %s, want initial 100000", bal.Available)
	}
}
