package zerodha

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"relay/internal/broker"
	"relay/internal/domain"
)

// Index aliases used by charting alerts mapped to Kite instrument names.
var symbolMap = map[string]string{
	"NIFTY":      "NIFTY 50",
	"BANKNIFTY":  "NIFTY BANK",
	"FINNIFTY":   "NIFTY FIN SERVICE",
	"MIDCPNIFTY": "NIFTY MID SELECT",
}

// OrderRequest is the Kite regular-order payload.
type OrderRequest struct {
	TradingSymbol   string
	Exchange        string
	TransactionType string
	OrderType       string // MARKET, LIMIT, SL, SL-M
	Quantity        int64
	Price           *decimal.Decimal
	TriggerPrice    *decimal.Decimal
	Product         string
	Validity        string
	Tag             string
}

// Broker tags the request for the router.
func (*OrderRequest) Broker() domain.BrokerName { return domain.BrokerZerodha }

func (r *OrderRequest) form() url.Values {
	form := url.Values{}
	form.Set("tradingsymbol", r.TradingSymbol)
	form.Set("exchange", r.Exchange)
	form.Set("transaction_type", r.TransactionType)
	form.Set("order_type", r.OrderType)
	form.Set("quantity", strconv.FormatInt(r.Quantity, 10))
	form.Set("product", r.Product)
	form.Set("validity", r.Validity)
	if r.Price != nil {
		form.Set("price", r.Price.String())
	}
	if r.TriggerPrice != nil {
		form.Set("trigger_price", r.TriggerPrice.String())
	}
	if r.Tag != "" {
		form.Set("tag", r.Tag)
	}
	return form
}

// ConvertSignal maps a normalized signal to the Kite order schema. Pure:
// no I/O, deterministic. A stop loss switches the order to Kite's SL
// variants with the stop carried as trigger_price.
func ConvertSignal(sig domain.TradeSignal) (broker.OrderRequest, error) {
	symbol := sig.Symbol
	if mapped, ok := symbolMap[symbol]; ok {
		symbol = mapped
	}

	exchange := sig.Exchange
	if exchange == "" {
		if strings.Contains(sig.Symbol, "NIFTY") {
			exchange = "NFO"
		} else {
			exchange = "NSE"
		}
	}

	product := sig.Product
	if product == "" {
		product = "MIS"
	}

	req := &OrderRequest{
		TradingSymbol:   symbol,
		Exchange:        exchange,
		TransactionType: string(sig.Action),
		OrderType:       "MARKET",
		Quantity:        sig.Quantity.IntPart(),
		Product:         product,
		Validity:        "DAY",
		Tag:             "TradingView",
	}

	switch sig.OrderType {
	case domain.OrderTypeLimit:
		req.OrderType = "LIMIT"
		req.Price = sig.Price
	case domain.OrderTypeStop:
		req.OrderType = "SL-M"
	case domain.OrderTypeStopLimit:
		req.OrderType = "SL"
		req.Price = sig.Price
	}

	if sig.StopLoss != nil {
		req.TriggerPrice = sig.StopLoss
		switch req.OrderType {
		case "MARKET":
			req.OrderType = "SL-M"
		case "LIMIT":
			req.OrderType = "SL"
		}
	}

	if (req.OrderType == "SL" || req.OrderType == "SL-M") && req.TriggerPrice == nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeValidation, "zerodha: stop order requires a stop loss price")
	}
	if (req.OrderType == "LIMIT" || req.OrderType == "SL") && req.Price == nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeValidation, "zerodha: %s order requires a price", req.OrderType)
	}

	return req, nil
}

// Registration describes the Zerodha integration for the broker registry.
func Registration() broker.Registration {
	return broker.Registration{
		Name:           domain.BrokerZerodha,
		DisplayName:    "Zerodha Kite",
		Description:    "India's largest discount broker",
		AuthType:       "oauth",
		RequiredFields: []string{"apiKey", "apiSecret", "accessToken"},
		Features:       []string{"Equity", "F&O", "Currency", "Commodity"},
		New: func(creds broker.Credentials, opts broker.Options) broker.Adapter {
			return New(creds, opts)
		},
		Convert: ConvertSignal,
	}
}
