package upstox

import (
	"github.com/shopspring/decimal"

	"relay/internal/broker"
	"relay/internal/domain"
)

// OrderRequest is the Upstox order-placement payload.
type OrderRequest struct {
	InstrumentToken string
	TransactionType string
	OrderType       string // MARKET, LIMIT, SL or SL-M
	Quantity        int64
	Price           *decimal.Decimal
	TriggerPrice    *decimal.Decimal
	Product         string
	Validity        string
}

// Broker tags the request for the router.
func (*OrderRequest) Broker() domain.BrokerName { return domain.BrokerUpstox }

func (r *OrderRequest) payload() map[string]interface{} {
	p := map[string]interface{}{
		"instrument_token": r.InstrumentToken,
		"transaction_type": r.TransactionType,
		"order_type":       r.OrderType,
		"quantity":         r.Quantity,
		"product":          r.Product,
		"validity":         r.Validity,
	}
	if r.Price != nil {
		price, _ := r.Price.Float64()
		p["price"] = price
	}
	if r.TriggerPrice != nil {
		trigger, _ := r.TriggerPrice.Float64()
		p["trigger_price"] = trigger
	}
	return p
}

// ConvertSignal maps a normalized signal to the Upstox order schema.
// The symbol passes through as the instrument token; a proper
// instrument-master lookup is a deliberate gap carried over from the
// reference integration. A stop loss switches the order to SL (limit
// price present) or SL-M with the trigger in trigger_price.
func ConvertSignal(sig domain.TradeSignal) (broker.OrderRequest, error) {
	req := &OrderRequest{
		InstrumentToken: sig.Symbol,
		TransactionType: string(sig.Action),
		OrderType:       "MARKET",
		Quantity:        sig.Quantity.IntPart(),
		Product:         "I",
		Validity:        "DAY",
	}

	if sig.OrderType == domain.OrderTypeLimit || sig.OrderType == domain.OrderTypeStopLimit {
		req.OrderType = "LIMIT"
		if sig.Price == nil {
			return nil, domain.NewBrokerError(domain.ErrorTypeValidation, "upstox: limit order requires a price")
		}
		req.Price = sig.Price
	}

	if sig.StopLoss != nil || sig.OrderType == domain.OrderTypeStop {
		if sig.StopLoss == nil {
			return nil, domain.NewBrokerError(domain.ErrorTypeValidation, "upstox: stop order requires a stop loss price")
		}
		req.TriggerPrice = sig.StopLoss
		if req.OrderType == "LIMIT" {
			req.OrderType = "SL"
		} else {
			req.OrderType = "SL-M"
		}
	}

	return req, nil
}

// Registration describes the Upstox integration for the broker registry.
func Registration() broker.Registration {
	return broker.Registration{
		Name:           domain.BrokerUpstox,
		DisplayName:    "Upstox Pro",
		Description:    "Modern trading platform",
		AuthType:       "oauth",
		RequiredFields: []string{"apiKey", "apiSecret", "accessToken"},
		Features:       []string{"Equity", "F&O", "Currency", "Commodity"},
		New: func(creds broker.Credentials, opts broker.Options) broker.Adapter {
			return New(creds, opts)
		},
		Convert: ConvertSignal,
	}
}
