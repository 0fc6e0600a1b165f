package zerodha

// Wire shapes for the Kite Connect REST API. Responses wrap payloads in a
// {status, data} envelope; failures carry message and error_type.

type envelope struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
}

type profileResponse struct {
	Data struct {
		UserName string `json:"user_name"`
		Email    string `json:"email"`
	} `json:"data"`
}

type marginsResponse struct {
	Data struct {
		Equity struct {
			Available struct {
				Cash float64 `json:"cash"`
			} `json:"available"`
		} `json:"equity"`
	} `json:"data"`
}

type orderResponse struct {
	Data struct {
		OrderID string `json:"order_id"`
	} `json:"data"`
}

type positionsResponse struct {
	Data struct {
		Net []netPosition `json:"net"`
	} `json:"data"`
}

type netPosition struct {
	TradingSymbol string  `json:"tradingsymbol"`
	Quantity      int64   `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
}

type orderEntry struct {
	OrderID string `json:"order_id"`
}
