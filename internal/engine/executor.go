// Package engine routes normalized trade signals to broker adapters. It
// owns the registry wiring, the virtual-account routing decision, and the
// guarantee that order execution never returns an error or panics: every
// failure folds into the uniform OrderResult shape.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"relay/internal/broker"
	"relay/internal/broker/binance"
	"relay/internal/broker/fyers"
	"relay/internal/broker/upstox"
	"relay/internal/broker/virtual"
	"relay/internal/broker/zerodha"
	"relay/internal/domain"
)

func init() {
	broker.Register(zerodha.Registration())
	broker.Register(upstox.Registration())
	broker.Register(fyers.Registration())
	broker.Register(binance.Registration())
	broker.Register(virtual.Registration())
}

// Executor builds adapters for broker accounts and executes signals
// against them. One executor serves all accounts; adapters themselves are
// cheap per-call constructions.
type Executor struct {
	log       zerolog.Logger
	store     virtual.StateStore
	prices    virtual.PriceSource
	overrides map[domain.BrokerName]broker.Options
}

// New builds an executor. overrides points individual brokers at
// alternative base URLs, which is how integration tests substitute stub
// servers; pass nil for production endpoints.
func New(log zerolog.Logger, store virtual.StateStore, prices virtual.PriceSource, overrides map[domain.BrokerName]broker.Options) *Executor {
	return &Executor{
		log:       log.With().Str("component", "engine").Logger(),
		store:     store,
		prices:    prices,
		overrides: overrides,
	}
}

// CreateAdapter resolves the account's broker tag to a live adapter, or to
// the simulator for virtual accounts. No I/O happens here.
func (e *Executor) CreateAdapter(account domain.BrokerAccount) (broker.Adapter, error) {
	if account.IsVirtual || account.BrokerName == domain.BrokerVirtual {
		return virtual.New(account.ID, e.store, e.prices), nil
	}

	reg, err := broker.Lookup(account.BrokerName)
	if err != nil {
		return nil, err
	}
	if reg.New == nil {
		return nil, fmt.Errorf("%w: %s has no adapter constructor", domain.ErrUnsupportedBroker, account.BrokerName)
	}

	creds := broker.Credentials{
		APIKey:      account.APIKey,
		APISecret:   account.APISecret,
		AccessToken: account.AccessToken,
	}
	return reg.New(creds, e.overrides[account.BrokerName]), nil
}

// ExecuteOrder routes one signal: resolve the adapter, convert the signal
// to the broker's schema, place it, and normalize the outcome. It never
// returns an error and never lets a panic escape; callers can persist the
// result unconditionally.
func (e *Executor) ExecuteOrder(ctx context.Context, account domain.BrokerAccount, sig domain.TradeSignal) (result domain.OrderResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Interface("panic", r).
				Str("broker", string(account.BrokerName)).
				Msg("order execution panicked")
			result = domain.FailedResult(domain.NewBrokerError(domain.ErrorTypeUnknown, "internal error: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, broker.DefaultTimeout)
	defer cancel()

	adapter, err := e.CreateAdapter(account)
	if err != nil {
		return domain.FailedResult(err)
	}

	convert := virtual.ConvertSignal
	if !account.IsVirtual && account.BrokerName != domain.BrokerVirtual {
		reg, err := broker.Lookup(account.BrokerName)
		if err != nil {
			return domain.FailedResult(err)
		}
		convert = reg.Convert
	}

	req, err := convert(sig)
	if err != nil {
		return domain.FailedResult(err)
	}

	placement, err := adapter.PlaceOrder(ctx, req)
	if err != nil {
		e.log.Warn().
			Err(err).
			Str("broker", string(account.BrokerName)).
			Str("symbol", sig.Symbol).
			Msg("order placement failed")
		return domain.FailedResult(err)
	}

	e.log.Info().
		Str("broker", string(account.BrokerName)).
		Str("symbol", sig.Symbol).
		Str("order_id", placement.OrderID).
		Msg("order placed")

	return domain.OrderResult{
		Success:       true,
		OrderID:       placement.OrderID,
		ExecutedPrice: placement.ExecutedPrice,
		Raw:           placement.Raw,
	}
}

// SupportedBrokers returns the registry catalog.
func SupportedBrokers() []broker.Registration {
	return broker.Supported()
}

// ValidateBrokerCredentials checks credential shape against the catalog.
func ValidateBrokerCredentials(name domain.BrokerName, creds map[string]string) broker.Validity {
	return broker.ValidateCredentials(name, creds)
}
