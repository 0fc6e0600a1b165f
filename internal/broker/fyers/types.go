package fyers

// Wire shapes for the Fyers v2 REST API. Fyers encodes sides and order
// types as integers and reports statuses with an `s` field ("ok"/"error").

type errorResponse struct {
	S       string `json:"s"`
	Message string `json:"message"`
}

type profileResponse struct {
	Data struct {
		Name  string `json:"name"`
		Email string `json:"email_id"`
	} `json:"data"`
}

type fundsResponse struct {
	FundLimit []fundEntry `json:"fund_limit"`
}

type fundEntry struct {
	AvailableBalance float64 `json:"availableBalance"`
}

type orderResponse struct {
	ID string `json:"id"`
}

type positionsResponse struct {
	NetPositions []positionEntry `json:"netPositions"`
}

type positionEntry struct {
	Symbol   string  `json:"symbol"`
	NetQty   int64   `json:"netQty"`
	AvgPrice float64 `json:"netAvg"`
}

type orderBookResponse struct {
	OrderBook []orderBookEntry `json:"orderBook"`
}

type orderBookEntry struct {
	ID string `json:"id"`
}
