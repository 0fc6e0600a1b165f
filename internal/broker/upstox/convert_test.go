package upstox

import (
	"testing"

	"github.com/shopspring/decimal"

	"relay/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }

func TestConvertSignalMarket(t *testing.T) {
	req, err := ConvertSignal(domain.TradeSignal{
		Action:    domain.ActionBuy,
		Symbol:    "NSE_EQ|INE669E01016",
		Quantity:  dec("25"),
		OrderType: domain.OrderTypeMarket,
	})
	if err != nil {
		t.Fatalf("ConvertSignal: %v", err)
	}
	order := req.(*OrderRequest)

	// The symbol passes through untranslated as the instrument token.
	if order.InstrumentToken != "NSE_EQ|INE669E01016" {
		t.Errorf("instrument token = %s", order.InstrumentToken)
	}
	if order.TransactionType != "BUY" || order.OrderType != "MARKET" {
		t.Errorf("txn/type = %s/%s", order.TransactionType, order.OrderType)
	}
	if order.Product != "I" || order.Validity != "DAY" {
		t.Errorf("product/validity = %s/%s, want I/DAY", order.Product, order.Validity)
	}
	if order.Quantity != 25 {
		t.Errorf("quantity = %d, want 25", order.Quantity)
	}
	if order.Price != nil {
		t.Errorf("market order carries price %s", order.Price)
	}
}

func TestConvertSignalLimit(t *testing.T) {
	req, err := ConvertSignal(domain.TradeSignal{
		Action:    domain.ActionSell,
		Symbol:    "RELIANCE",
		Quantity:  dec("10"),
		OrderType: domain.OrderTypeLimit,
		Price:     ptr(dec("2450.5")),
	})
	if err != nil {
		t.Fatalf("ConvertSignal: %v", err)
	}
	order := req.(*OrderRequest)
	if order.OrderType != "LIMIT" || order.TransactionType != "SELL" {
		t.Errorf("type/txn = %s/%s", order.OrderType, order.TransactionType)
	}
	if order.Price == nil || !order.Price.Equal(dec("2450.5")) {
		t.Errorf("price = %v, want 2450.5", order.Price)
	}

	p := order.payload()
	if p["price"] != 2450.5 {
		t.Errorf("payload price = %v", p["price"])
	}
}

func TestConvertSignalStopVariants(t *testing.T) {
	// A stop loss on an otherwise-market order becomes SL-M with the
	// trigger in trigger_price, never a bare MARKET.
	req, err := ConvertSignal(domain.TradeSignal{
		Action:    domain.ActionSell,
		Symbol:    "RELIANCE",
		Quantity:  dec("5"),
		OrderType: domain.OrderTypeStop,
		StopLoss:  ptr(dec("2400")),
	})
	if err != nil {
		t.Fatalf("ConvertSignal: %v", err)
	}
	order := req.(*OrderRequest)
	if order.OrderType != "SL-M" {
		t.Errorf("order type = %s, want SL-M", order.OrderType)
	}
	if order.TriggerPrice == nil || !order.TriggerPrice.Equal(dec("2400")) {
		t.Errorf("trigger price = %v, want 2400", order.TriggerPrice)
	}
	if p := order.payload(); p["trigger_price"] != 2400.0 {
		t.Errorf("payload trigger_price = %v", p["trigger_price"])
	}

	// A limit order with a stop loss becomes SL carrying both prices.
	req, err = ConvertSignal(domain.TradeSignal{
		Action:    domain.ActionSell,
		Symbol:    "RELIANCE",
		Quantity:  dec("5"),
		OrderType: domain.OrderTypeLimit,
		Price:     ptr(dec("2420")),
		StopLoss:  ptr(dec("2400")),
	})
	if err != nil {
		t.Fatalf("ConvertSignal: %v", err)
	}
	order = req.(*OrderRequest)
	if order.OrderType != "SL" {
		t.Errorf("order type = %s, want SL", order.OrderType)
	}
	p := order.payload()
	if p["price"] != 2420.0 || p["trigger_price"] != 2400.0 {
		t.Errorf("payload prices = %v/%v", p["price"], p["trigger_price"])
	}
}

func TestConvertSignalStopWithoutTrigger(t *testing.T) {
	_, err := ConvertSignal(domain.TradeSignal{
		Action:    domain.ActionBuy,
		Symbol:    "RELIANCE",
		Quantity:  dec("1"),
		OrderType: domain.OrderTypeStop,
	})
	if domain.TypeOf(err) != domain.ErrorTypeValidation {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestConvertSignalLimitWithoutPrice(t *testing.T) {
	_, err := ConvertSignal(domain.TradeSignal{
		Action:    domain.ActionBuy,
		Symbol:    "RELIANCE",
		Quantity:  dec("1"),
		OrderType: domain.OrderTypeLimit,
	})
	if domain.TypeOf(err) != domain.ErrorTypeValidation {
		t.Fatalf("want validation error, got %v", err)
	}
}
