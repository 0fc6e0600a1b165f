// Package zerodha implements the broker adapter for the Zerodha Kite
// Connect API: token header auth, form-urlencoded order placement, JSON
// responses.
package zerodha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"relay/internal/broker"
	"relay/internal/domain"
)

const defaultBaseURL = "https://api.kite.trade"

var _ broker.Adapter = (*Client)(nil)

// Client talks to the Kite Connect REST API for one account.
type Client struct {
	apiKey      string
	accessToken string
	baseURL     string
	httpc       *http.Client
}

// New builds a Kite client from decrypted credentials.
func New(creds broker.Credentials, opts broker.Options) *Client {
	return &Client{
		apiKey:      creds.APIKey,
		accessToken: creds.AccessToken,
		baseURL:     opts.URL(defaultBaseURL),
		httpc:       opts.Client(),
	}
}

// Name returns the broker tag.
func (c *Client) Name() domain.BrokerName { return domain.BrokerZerodha }

// doRequest issues one request with Kite auth headers. Form values go in
// the query for GET and the body for everything else.
func (c *Client) doRequest(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	endpoint := c.baseURL + path

	var body io.Reader
	if form != nil {
		if method == http.MethodGet {
			endpoint += "?" + form.Encode()
		} else {
			body = strings.NewReader(form.Encode())
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "create request: %v", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, c.accessToken))
	req.Header.Set("X-Kite-Version", "3")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, broker.NetworkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, broker.NetworkError(err)
	}

	if resp.StatusCode != http.StatusOK {
		var env envelope
		msg := string(respBody)
		if json.Unmarshal(respBody, &env) == nil && env.Message != "" {
			msg = env.Message
		}
		// Kite reports expired or invalid sessions as TokenException.
		if env.ErrorType == "TokenException" || env.ErrorType == "PermissionException" {
			return nil, domain.NewBrokerError(domain.ErrorTypeAuth, "broker rejected credentials: %s", msg)
		}
		return nil, broker.ClassifyStatus(resp.StatusCode, msg)
	}

	return respBody, nil
}

// Profile fetches the account identity; used for connectivity testing.
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

// Balance extracts available equity cash from the margins response.
func (c *Client) Balance(ctx context.Context) (*domain.Balance, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/user/margins", nil)
	if err != nil {
		return nil, err
	}
	var resp marginsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal margins: %v", err)
	}
	return &domain.Balance{
		Available: decimal.NewFromFloat(resp.Data.Equity.Available.Cash),
		Raw:       respBody,
	}, nil
}

// Positions returns net positions normalized to the common shape.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/portfolio/positions", nil)
	if err != nil {
		return nil, err
	}
	var resp positionsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal positions: %v", err)
	}

	positions := make([]domain.Position, 0, len(resp.Data.Net))
	for _, p := range resp.Data.Net {
		positions = append(positions, domain.Position{
			Symbol:       p.TradingSymbol,
			Quantity:     decimal.NewFromInt(p.Quantity),
			AveragePrice: decimal.NewFromFloat(p.AveragePrice),
		})
	}
	return positions, nil
}

// PlaceOrder submits a regular order as a form-urlencoded POST.
func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.Placement, error) {
	order, ok := req.(*OrderRequest)
	if !ok {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "zerodha: unexpected order request type %T", req)
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/orders/regular", order.form())
	if err != nil {
		return nil, err
	}

	var resp orderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal order response: %v", err)
	}
	return &broker.Placement{OrderID: resp.Data.OrderID, Raw: respBody}, nil
}

// OrderStatus scans the order book for the given order id.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (json.RawMessage, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return nil, err
	}

	var book struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &book); err != nil {
		return nil, domain.NewBrokerError(domain.ErrorTypeUnknown, "unmarshal order book: %v", err)
	}
	for _, raw := range book.Data {
		var entry orderEntry
		if json.Unmarshal(raw, &entry) == nil && entry.OrderID == orderID {
			return raw, nil
		}
	}
	return nil, domain.NewBrokerError(domain.ErrorTypeBrokerRejection, "order %s not found in order book", orderID)
}

// CancelOrder cancels a regular-variety order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/orders/regular/"+url.PathEscape(orderID), nil)
	return err
}
