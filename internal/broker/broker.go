// Package broker defines the uniform capability set over heterogeneous
// brokerage wire protocols and the registry that maps broker tags to
// adapter constructors and signal converters.
package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"relay/internal/domain"
)

// DefaultTimeout bounds every broker round trip. Calls are synchronous and
// terminal: no retry, no backoff, no cancellation once in flight.
const DefaultTimeout = 7 * time.Second

// Credentials are the decrypted values handed to the core per operation.
// Decryption happens entirely in the credential-management layer upstream.
type Credentials struct {
	APIKey      string
	APISecret   string
	AccessToken string
}

// Options tunes adapter construction. BaseURL overrides the broker's
// production endpoint, which is how tests point adapters at stub servers.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
}

// OrderRequest is a broker-specific order payload produced by a Converter.
// Each adapter defines its own concrete type; requests are ephemeral and
// never persisted.
type OrderRequest interface {
	Broker() domain.BrokerName
}

// Placement is the successful outcome of submitting an order to a broker.
type Placement struct {
	OrderID       string
	ExecutedPrice *decimal.Decimal
	Raw           json.RawMessage
}

// Adapter is the capability set every brokerage integration implements.
// All failures come back as *domain.BrokerError; adapters never panic and
// never retry.
type Adapter interface {
	Name() domain.BrokerName

	// Profile fetches account identity; used only for connectivity testing.
	Profile(ctx context.Context) (*domain.Profile, error)

	// Balance extracts available cash/margin from the broker's funds
	// response, whatever shape it nests it in.
	Balance(ctx context.Context) (*domain.Balance, error)

	// Positions returns open positions normalized to the common shape.
	Positions(ctx context.Context) ([]domain.Position, error)

	// PlaceOrder submits one order. The request must be the adapter's own
	// OrderRequest type, as produced by its Converter.
	PlaceOrder(ctx context.Context, req OrderRequest) (*Placement, error)

	// OrderStatus and CancelOrder are best-effort passthroughs with the
	// same error-normalization contract.
	OrderStatus(ctx context.Context, orderID string) (json.RawMessage, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Converter maps a normalized signal to a broker-specific order request.
// Converters are pure: no I/O, deterministic, failing only on signals
// missing fields the broker requires.
type Converter func(sig domain.TradeSignal) (OrderRequest, error)

// ClassifyStatus maps an HTTP response code to the error taxonomy:
// credential rejections are auth errors, rate limiting and server faults
// are transport-level, anything else the broker said no to is a rejection.
func ClassifyStatus(status int, message string) *domain.BrokerError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewBrokerError(domain.ErrorTypeAuth, "broker rejected credentials: %s", message)
	case status == http.StatusTooManyRequests || status >= 500:
		return domain.NewBrokerError(domain.ErrorTypeNetwork, "broker unavailable (HTTP %d): %s", status, message)
	default:
		return domain.NewBrokerError(domain.ErrorTypeBrokerRejection, "broker rejected order (HTTP %d): %s", status, message)
	}
}

// NetworkError wraps a transport failure (dial, TLS, timeout).
func NetworkError(err error) *domain.BrokerError {
	return domain.NewBrokerError(domain.ErrorTypeNetwork, "request failed: %v", err)
}

// HTTPClient returns opts.HTTPClient or a client with the default timeout.
func (o Options) Client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// URL returns opts.BaseURL or def when no override is configured.
func (o Options) URL(def string) string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	return def
}
