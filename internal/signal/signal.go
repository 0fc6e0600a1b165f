// Package signal parses and normalizes inbound webhook alerts into trade
// signals. Validation happens here, once, before anything touches a
// broker; adapters can assume a well-formed signal.
package signal

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"relay/internal/domain"
)

// Payload is the raw alert body posted by TradingView or any compatible
// sender. Quantity and prices accept both JSON numbers and strings.
type Payload struct {
	Action     string           `json:"action"`
	Symbol     string           `json:"symbol"`
	Quantity   decimal.Decimal  `json:"quantity"`
	OrderType  string           `json:"orderType"`
	Price      *decimal.Decimal `json:"price"`
	StopLoss   *decimal.Decimal `json:"stopLoss"`
	TakeProfit *decimal.Decimal `json:"takeProfit"`
	Product    string           `json:"product"`
	Exchange   string           `json:"exchange"`
}

// Parse decodes and normalizes one alert body.
func Parse(raw []byte) (domain.TradeSignal, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.TradeSignal{}, domain.NewBrokerError(domain.ErrorTypeValidation, "malformed signal payload: %v", err)
	}
	return p.Normalize()
}

// Normalize validates the payload and produces the canonical signal:
// uppercase action and symbol, defaulted order type, positive quantities.
func (p Payload) Normalize() (domain.TradeSignal, error) {
	var sig domain.TradeSignal

	switch action := domain.Action(strings.ToUpper(strings.TrimSpace(p.Action))); action {
	case domain.ActionBuy, domain.ActionSell:
		sig.Action = action
	case "":
		return sig, domain.NewBrokerError(domain.ErrorTypeValidation, "signal missing action")
	default:
		return sig, domain.NewBrokerError(domain.ErrorTypeValidation, "invalid action %q, want BUY or SELL", p.Action)
	}

	sig.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
	if sig.Symbol == "" {
		return sig, domain.NewBrokerError(domain.ErrorTypeValidation, "signal missing symbol")
	}

	if p.Quantity.Sign() <= 0 {
		return sig, domain.NewBrokerError(domain.ErrorTypeValidation, "quantity must be positive, got %s", p.Quantity)
	}
	sig.Quantity = p.Quantity

	switch ot := domain.OrderType(strings.ToUpper(strings.TrimSpace(p.OrderType))); ot {
	case "":
		sig.OrderType = domain.OrderTypeMarket
	case domain.OrderTypeMarket, domain.OrderTypeLimit, domain.OrderTypeStop, domain.OrderTypeStopLimit:
		sig.OrderType = ot
	default:
		return sig, domain.NewBrokerError(domain.ErrorTypeValidation, "invalid order type %q", p.OrderType)
	}

	if sig.OrderType == domain.OrderTypeLimit || sig.OrderType == domain.OrderTypeStopLimit {
		if p.Price == nil || p.Price.Sign() <= 0 {
			return sig, domain.NewBrokerError(domain.ErrorTypeValidation, "%s order requires a positive price", sig.OrderType)
		}
	}
	if p.Price != nil && p.Price.Sign() <= 0 {
		return sig, domain.NewBrokerError(domain.ErrorTypeValidation, "price must be positive, got %s", p.Price)
	}
	sig.Price = p.Price
	sig.StopLoss = p.StopLoss
	sig.TakeProfit = p.TakeProfit

	sig.Product = strings.ToUpper(strings.TrimSpace(p.Product))
	sig.Exchange = strings.ToUpper(strings.TrimSpace(p.Exchange))

	return sig, nil
}
