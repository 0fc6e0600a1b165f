// Package binance implements the broker adapter for the Binance spot API:
// HMAC-SHA256 signed query strings with a mandatory timestamp and an
// X-MBX-APIKEY header, no bearer token.
package binance

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"relay/internal/broker"
	"relay/internal/domain"
)

const (
	defaultBaseURL = "https://api.binance.com/api/v3"

	// Spot balances are reported per asset; the available balance is the
	// free amount of the quote asset.
	quoteAsset = "USDT"
)

var _ broker.Adapter = (*Client)(nil)

// Client talks to the Binance spot REST API for one account.
type Client struct {
	apiKey    string
	apiSecret string
	baseURL   string
	httpc     *http.Client
	nowMillis func() int64
}

// New builds a Binance client from decrypted credentials. Binance has no
// access token; the key pair signs every request.
func New(creds broker.Credentials, opts broker.Options) *Client {
	return &Client{
		apiKey:    creds.APIKey,
		apiSecret: creds.APISecret,
		baseURL:   opts.URL(defaultBaseURL),
		httpc:     opts.Client(),
		nowMillis: func() int64 { return time.Now().UnixMilli() },
	}
}

// Name returns the broker tag.
func (c *Client) Name() domain.BrokerName { return domain.BrokerBinance }

func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	endpoint := c.baseURL + path + "?" + signedQuery(c.apiSecret, params, c.nowMillis())

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "create request: %v", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, broker.NetworkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, broker.NetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Msg != "" {
			msg = errResp.Msg
		}
		return nil, broker.ClassifyStatus(resp.StatusCode, msg)
	}

	return respBody, nil
}

// Profile returns the account snapshot; Binance has no separate profile
// endpoint, so a successful signed /account call proves connectivity.
func (c *Client) Profile(ctx context.Context) (*domain.Profile, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/account", nil)
	if err != nil {
		return nil, err
	}
	return &domain.Profile{Raw: respBody}, nil
}

// Balance scans the balances array for the quote asset's free amount.
func (c *Client) Balance(ctx context.Context) (*domain.Balance, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/account", nil)
	if err != nil {
		return nil, err
	}
	var resp accountResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal account: %v", err)
	}

	available := decimal.Zero
	for _, b := range resp.Balances {
		if b.Asset == quoteAsset {
			available = parseAmount(b.Free)
			break
		}
	}
	return &domain.Balance{Available: available, Raw: respBody}, nil
}

// Positions synthesizes a position list from non-zero wallet balances;
// spot trading has no discrete positions.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/account", nil)
	if err != nil {
		return nil, err
	}
	var resp accountResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal account: %v", err)
	}

	var positions []domain.Position
	for _, b := range resp.Balances {
		total := parseAmount(b.Free).Add(parseAmount(b.Locked))
		if total.IsZero() {
			continue
		}
		positions = append(positions, domain.Position{
			Symbol:   b.Asset,
			Quantity: total,
		})
	}
	return positions, nil
}

// PlaceOrder submits one order; all parameters travel in the signed query.
func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.Placement, error) {
	order, ok := req.(*OrderRequest)
	if !ok {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "binance: unexpected order request type %T", req)
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/order", order.params())
	if err != nil {
		return nil, err
	}

	var resp orderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal order response: %v", err)
	}
	return &broker.Placement{
		OrderID: strconv.FormatInt(resp.OrderID, 10),
		Raw:     respBody,
	}, nil
}

// OrderStatus queries one order. Binance scopes order ids per symbol, so
// the id must be the composite "SYMBOL:orderId".
func (c *Client) OrderStatus(ctx context.Context, orderID string) (json.RawMessage, error) {
	symbol, id, err := splitOrderID(orderID)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", id)
	return c.doRequest(ctx, http.MethodGet, "/order", params)
}

// CancelOrder cancels one order; same composite-id contract as
// OrderStatus.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	symbol, id, err := splitOrderID(orderID)
	if err != nil {
		return err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", id)
	_, err = c.doRequest(ctx, http.MethodDelete, "/order", params)
	return err
}

func splitOrderID(orderID string) (symbol, id string, err error) {
	parts := strings.SplitN(orderID, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", domain.NewBrokerError(domain.ErrorTypeValidation,
			"binance order lookups need a SYMBOL:orderId composite id, got %q", orderID)
	}
	return parts[0], parts[1], nil
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
