package binance

// Wire shapes for the Binance spot REST API. Errors come back as
// {code, msg}; numeric amounts are decimal strings.

type errorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type accountResponse struct {
	Balances []balanceEntry `json:"balances"`
}

type balanceEntry struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type orderResponse struct {
	OrderID int64  `json:"orderId"`
	Symbol  string `json:"symbol"`
	Status  string `json:"status"`
}
