package fyers

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"relay/internal/broker"
	"relay/internal/domain"
)

// Fyers integer codes.
const (
	typeMarket = 1
	typeLimit  = 2
	typeStop   = 3

	sideBuy  = 1
	sideSell = -1
)

// OrderRequest is the Fyers order payload. Sides and types are integer
// codes; symbols are exchange-prefixed with an instrument-class suffix.
type OrderRequest struct {
	Symbol      string
	Quantity    int64
	Type        int
	Side        int
	ProductType string
	LimitPrice  *decimal.Decimal
	StopPrice   *decimal.Decimal
	Validity    string
}

// Broker tags the request for the router.
func (*OrderRequest) Broker() domain.BrokerName { return domain.BrokerFyers }

func (r *OrderRequest) payload() map[string]interface{} {
	p := map[string]interface{}{
		"symbol":      r.Symbol,
		"qty":         r.Quantity,
		"type":        r.Type,
		"side":        r.Side,
		"productType": r.ProductType,
		"validity":    r.Validity,
	}
	if r.LimitPrice != nil {
		price, _ := r.LimitPrice.Float64()
		p["limitPrice"] = price
	}
	if r.StopPrice != nil {
		stop, _ := r.StopPrice.Float64()
		p["stopPrice"] = stop
	}
	return p
}

// ConvertSignal maps a normalized signal to the Fyers order schema:
// NSE-prefixed equity symbols, side +1/-1, type codes 1/2/3. A stop loss
// switches the order to the stop type with the trigger in stopPrice.
func ConvertSignal(sig domain.TradeSignal) (broker.OrderRequest, error) {
	symbol := sig.Symbol
	if !strings.Contains(symbol, ":") {
		symbol = fmt.Sprintf("NSE:%s-EQ", symbol)
	}

	side := sideBuy
	if sig.Action == domain.ActionSell {
		side = sideSell
	}

	req := &OrderRequest{
		Symbol:      symbol,
		Quantity:    sig.Quantity.IntPart(),
		Type:        typeMarket,
		Side:        side,
		ProductType: "INTRADAY",
		Validity:    "DAY",
	}

	if sig.OrderType == domain.OrderTypeLimit || sig.OrderType == domain.OrderTypeStopLimit {
		req.Type = typeLimit
		if sig.Price == nil {
			return nil, domain.NewBrokerError(domain.ErrorTypeValidation, "fyers: limit order requires a price")
		}
		req.LimitPrice = sig.Price
	}

	if sig.StopLoss != nil || sig.OrderType == domain.OrderTypeStop {
		req.Type = typeStop
		if sig.StopLoss == nil {
			return nil, domain.NewBrokerError(domain.ErrorTypeValidation, "fyers: stop order requires a stop loss price")
		}
		req.StopPrice = sig.StopLoss
	}

	return req, nil
}

// Registration describes the Fyers integration for the broker registry.
func Registration() broker.Registration {
	return broker.Registration{
		Name:           domain.BrokerFyers,
		DisplayName:    "Fyers API",
		Description:    "Advanced trading APIs",
		AuthType:       "oauth",
		RequiredFields: []string{"apiKey", "apiSecret", "accessToken"},
		Features:       []string{"Equity", "F&O", "Currency", "Commodity"},
		New: func(creds broker.Credentials, opts broker.Options) broker.Adapter {
			return New(creds, opts)
		},
		Convert: ConvertSignal,
	}
}
