// Package upstox implements the broker adapter for the Upstox v2 API:
// bearer token auth and JSON request bodies.
package upstox

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

const defaultBaseURL = "https://api.upstox.com/v2"

var _ broker.Adapter = (*Client)(nil)

// Client talks to the Upstox v2 REST API for one account.
type Client struct {
	accessToken string
	baseURL     string
	httpc       *http.Client
}

// New builds an Upstox client from decrypted credentials.
func New(creds broker.Credentials, opts broker.Options) *Client {
	return &Client{
		accessToken: creds.AccessToken,
		baseURL:     opts.URL(defaultBaseURL),
		httpc:       opts.Client(),
	}
}

// Name returns the broker tag.
func (c *Client) Name() domain.BrokerName { return domain.BrokerUpstox }

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
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
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
		if json.Unmarshal(respBody, &errResp) == nil {
			if errResp.Message != "" {
				msg = errResp.Message
			} else if len(errResp.Errors) > 0 {
				msg = errResp.Errors[0].Message
			}
		}
		return nil, broker.ClassifyStatus(resp.StatusCode, msg)
	}

	return respBody, nil
}

// Profile fetches the account identity.
func (c *Client) Profile(ctx context.Context) (*domain.Profile, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/user/profile", nil)
	if err != nil {
		return nil, err
	}
	var resp profileResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal profile: %v", err)
	}
	return &domain.Profile{Name: resp.Data.UserName, Email: resp.Data.Email, Raw: respBody}, nil
}

// Balance extracts the available equity margin from the funds response.
func (c *Client) Balance(ctx context.Context) (*domain.Balance, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/user/get-funds-and-margin", nil)
	if err != nil {
		return nil, err
	}
	var resp fundsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal funds: %v", err)
	}
	return &domain.Balance{
		Available: decimal.NewFromFloat(resp.Data.Equity.AvailableMargin),
		Raw:       respBody,
	}, nil
}

// Positions returns long-term positions normalized to the common shape.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/portfolio/long-term-positions", nil)
	if err != nil {
		return nil, err
	}
	var resp positionsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal positions: %v", err)
	}

	positions := make([]domain.Position, 0, len(resp.Data))
	for _, p := range resp.Data {
		positions = append(positions, domain.Position{
			Symbol:       p.TradingSymbol,
			Quantity:     decimal.NewFromInt(p.Quantity),
			AveragePrice: decimal.NewFromFloat(p.AveragePrice),
		})
	}
	return positions, nil
}

// PlaceOrder submits one order as a JSON POST to /order/place.
func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.Placement, error) {
	order, ok := req.(*OrderRequest)
	if !ok {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "upstox: unexpected order request type %T", req)
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/order/place", order.payload())
	if err != nil {
		return nil, err
	}

	var resp orderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal order response: %v", err)
	}
	return &broker.Placement{OrderID: resp.Data.OrderID, Raw: respBody}, nil
}

// OrderStatus scans the full order list for the given order id.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (json.RawMessage, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/order/retrieve-all", nil)
	if err != nil {
		return nil, err
	}

	var book struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &book); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal order list: %v", err)
	}
	for _, raw := range book.Data {
		var entry orderEntry
		if json.Unmarshal(raw, &entry) == nil && entry.OrderID == orderID {
			return raw, nil
		}
	}
	return nil, domain.NewBrokerError(domain.ErrorTypeBrokerRejection, "order %s not found", orderID)
}

// CancelOrder requests cancellation of an open order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/order/cancel", map[string]string{"order_id": orderID})
	return err
}
