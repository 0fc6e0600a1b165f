// Package fyers implements the broker adapter for the Fyers v2 API:
// colon-joined key:token header auth, JSON bodies, numeric side and
// order-type codes.
package fyers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"relay/internal/broker"
	"relay/internal/domain"
)

const defaultBaseURL = "https://api.fyers.in/api/v2"

var _ broker.Adapter = (*Client)(nil)

// Client talks to the Fyers v2 REST API for one account.
type Client struct {
	apiKey      string
	accessToken string
	baseURL     string
	httpc       *http.Client
}

// New builds a Fyers client from decrypted credentials.
func New(creds broker.Credentials, opts broker.Options) *Client {
	return &Client{
		apiKey:      creds.APIKey,
		accessToken: creds.AccessToken,
		baseURL:     opts.URL(defaultBaseURL),
		httpc:       opts.Client(),
	}
}

// Name returns the broker tag.
func (c *Client) Name() domain.BrokerName { return domain.BrokerFyers }

func (c *Client) doRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "marshal body: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "create request: %v", err)
	}
	req.Header.Set("Authorization", c.apiKey+":"+c.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

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
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			msg = errResp.Message
		}
		return nil, broker.ClassifyStatus(resp.StatusCode, msg)
	}

	return respBody, nil
}

// Profile fetches the account identity.
func (c *Client) Profile(ctx context.Context) (*domain.Profile, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/profile", nil)
	if err != nil {
		return nil, err
	}
	var resp profileResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal profile: %v", err)
	}
	return &domain.Profile{Name: resp.Data.Name, Email: resp.Data.Email, Raw: respBody}, nil
}

// Balance reads the first fund-limit entry's available balance.
func (c *Client) Balance(ctx context.Context) (*domain.Balance, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/funds", nil)
	if err != nil {
		return nil, err
	}
	var resp fundsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal funds: %v", err)
	}
	if len(resp.FundLimit) == 0 {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "funds response missing fund_limit")
	}
	return &domain.Balance{
		Available: decimal.NewFromFloat(resp.FundLimit[0].AvailableBalance),
		Raw:       respBody,
	}, nil
}

// Positions returns net positions normalized to the common shape.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/positions", nil)
	if err != nil {
		return nil, err
	}
	var resp positionsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal positions: %v", err)
	}

	positions := make([]domain.Position, 0, len(resp.NetPositions))
	for _, p := range resp.NetPositions {
		positions = append(positions, domain.Position{
			Symbol:       p.Symbol,
			Quantity:     decimal.NewFromInt(p.NetQty),
			AveragePrice: decimal.NewFromFloat(p.AvgPrice),
		})
	}
	return positions, nil
}

// PlaceOrder submits one order as a JSON POST.
func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.Placement, error) {
	order, ok := req.(*OrderRequest)
	if !ok {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "fyers: unexpected order request type %T", req)
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/orders", order.payload())
	if err != nil {
		return nil, err
	}

	var resp orderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal order response: %v", err)
	}
	return &broker.Placement{OrderID: resp.ID, Raw: respBody}, nil
}

// OrderStatus scans the order book for the given order id.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (json.RawMessage, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return nil, err
	}

	var book struct {
		OrderBook []json.RawMessage `json:"orderBook"`
	}
	if err := json.Unmarshal(respBody, &book); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal order book: %v", err)
	}
	for _, raw := range book.OrderBook {
		var entry orderBookEntry
		if json.Unmarshal(raw, &entry) == nil && entry.ID == orderID {
			return raw, nil
		}
	}
	return nil, domain.NewBrokerError(domain.ErrorTypeBrokerRejection, "order %s not found in order book", orderID)
}

// CancelOrder requests cancellation; Fyers takes the id in a DELETE body.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/orders", map[string]string{"id": orderID})
	return err
}
