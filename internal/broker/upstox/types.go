package upstox

// Wire shapes for the Upstox v2 REST API (JSON in and out, {status, data}
// envelope, errors as {status, errors:[{message}]} or {message}).

type errorResponse struct {
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type profileResponse struct {
	Data struct {
		UserName string `json:"user_name"`
		Email    string `json:"email"`
	} `json:"data"`
}

type fundsResponse struct {
	Data struct {
		Equity struct {
			AvailableMargin float64 `json:"available_margin"`
		} `json:"equity"`
	} `json:"data"`
}

type orderResponse struct {
	Data struct {
		OrderID string `json:"order_id"`
	} `json:"data"`
}

type positionsResponse struct {
	Data []positionEntry `json:"data"`
}

type positionEntry struct {
	TradingSymbol string  `json:"trading_symbol"`
	Quantity      int64   `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
}

type orderEntry struct {
	OrderID string `json:"order_id"`
}
