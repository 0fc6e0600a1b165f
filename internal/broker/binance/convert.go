package binance

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"relay/internal/broker"
	"relay/internal/domain"
)

// OrderRequest is the Binance order parameter set. Side and type names
// pass through verbatim; quantities and prices stay decimal strings.
type OrderRequest struct {
	Symbol      string
	Side        string
	Type        string
	Quantity    decimal.Decimal
	Price       *decimal.Decimal
	StopPrice   *decimal.Decimal
	TimeInForce string
}

// Broker tags the request for the router.
func (*OrderRequest) Broker() domain.BrokerName { return domain.BrokerBinance }

func (r *OrderRequest) params() url.Values {
	p := url.Values{}
	p.Set("symbol", r.Symbol)
	p.Set("side", r.Side)
	p.Set("type", r.Type)
	p.Set("quantity", r.Quantity.String())
	if r.Price != nil {
		p.Set("price", r.Price.String())
	}
	if r.StopPrice != nil {
		p.Set("stopPrice", r.StopPrice.String())
	}
	if r.TimeInForce != "" {
		p.Set("timeInForce", r.TimeInForce)
	}
	return p
}

// ConvertSignal maps a normalized signal to Binance spot order
// parameters. Bare symbols get the USDT quote suffix; limit orders carry
// a GTC time in force. A stop loss switches the order to STOP_LOSS (or
// STOP_LOSS_LIMIT when a limit price is present) with the trigger in
// stopPrice.
func ConvertSignal(sig domain.TradeSignal) (broker.OrderRequest, error) {
	symbol := strings.ToUpper(sig.Symbol)
	if !strings.Contains(symbol, quoteAsset) {
		symbol += quoteAsset
	}

	req := &OrderRequest{
		Symbol:   symbol,
		Side:     string(sig.Action),
		Type:     "MARKET",
		Quantity: sig.Quantity,
	}

	switch sig.OrderType {
	case domain.OrderTypeLimit, domain.OrderTypeStopLimit:
		if sig.Price == nil {
			return nil, domain.NewBrokerError(domain.ErrorTypeValidation, "binance: limit order requires a price")
		}
		req.Type = "LIMIT"
		req.Price = sig.Price
		req.TimeInForce = "GTC"
	}

	if sig.StopLoss != nil || sig.OrderType == domain.OrderTypeStop {
		if sig.StopLoss == nil {
			return nil, domain.NewBrokerError(domain.ErrorTypeValidation, "binance: stop order requires a stop loss price")
		}
		req.StopPrice = sig.StopLoss
		if req.Type == "LIMIT" {
			req.Type = "STOP_LOSS_LIMIT"
		} else {
			req.Type = "STOP_LOSS"
		}
	}

	return req, nil
}

// Registration describes the Binance integration for the broker registry.
func Registration() broker.Registration {
	return broker.Registration{
		Name:           domain.BrokerBinance,
		DisplayName:    "Binance",
		Description:    "Global crypto exchange",
		AuthType:       "apikey",
		RequiredFields: []string{"apiKey", "apiSecret"},
		Features:       []string{"Spot", "Futures", "Options"},
		New: func(creds broker.Credentials, opts broker.Options) broker.Adapter {
			return New(creds, opts)
		},
		Convert: ConvertSignal,
	}
}
