// Package ingest consumes signal events from NATS JetStream. It is the
// second inbound path next to the HTTP webhook: dashboards and internal
// tools publish signals onto the stream instead of calling the endpoint.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"relay/internal/domain"
	"relay/internal/engine"
	"relay/internal/notify"
)

const (
	// StreamName is the JetStream stream name for relay signals.
	StreamName = "RELAY_SIGNALS"
	// SubjectPrefix is the NATS subject prefix for signal events.
	SubjectPrefix = "relay.signals."
	// SubjectWildcard subscribes to all signal subjects.
	SubjectWildcard = "relay.signals.>"
	// ConsumerName is the durable consumer name.
	ConsumerName = "relay-signal-consumer"
)

// Store is the persistence surface the consumer needs.
type Store interface {
	FindActiveWebhook(ctx context.Context, userID, strategyID string) (*domain.Webhook, error)
	MarkTriggered(ctx context.Context, webhookID string) error
	GetActiveAccount(ctx context.Context, userID string, isVirtual bool) (*domain.BrokerAccount, error)
	InsertOrder(ctx context.Context, order *domain.Order) error
	UpdateOrderExecution(ctx context.Context, orderID string, result domain.OrderResult) error
}

// Consumer subscribes to signal events via NATS JetStream and routes them
// through the same execution path as the HTTP webhook.
type Consumer struct {
	nc       *nats.Conn
	repo     Store
	exec     *engine.Executor
	notifier *notify.Notifier
	logger   zerolog.Logger
}

// NewConsumer creates a new NATS signal consumer.
func NewConsumer(nc *nats.Conn, repo Store, exec *engine.Executor, notifier *notify.Notifier) *Consumer {
	return &Consumer{
		nc:       nc,
		repo:     repo,
		exec:     exec,
		notifier: notifier,
		logger:   log.With().Str("component", "ingest").Logger(),
	}
}

// Start begins consuming signal events. Blocks until context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	js, err := jetstream.New(c.nc)
	if err != nil {
		return fmt.Errorf("create jetstream context: %w", err)
	}

	// Create or update the stream
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectWildcard},
		Storage:  jetstream.FileStorage,
		MaxBytes: 100 * 1024 * 1024, // 100MB
	})
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}

	// Create durable consumer
	cons, err := js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	c.logger.Info().Msg("started consuming signal events from NATS JetStream")

	// Consume messages
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		if err := c.handleMessage(ctx, msg); err != nil {
			c.logger.Error().Err(err).
				Str("subject", msg.Subject()).
				Msg("failed to handle signal message")
			// NAK for redelivery on DB errors
			msg.Nak()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	// Wait for context cancellation
	<-ctx.Done()
	cc.Stop()
	c.logger.Info().Msg("stopped consuming signal events")
	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg) error {
	var event SignalEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		c.logger.Warn().Err(err).
			Str("subject", msg.Subject()).
			Msg("failed to unmarshal signal event, rejecting")
		// Terminate - malformed messages should not be redelivered
		msg.Term()
		return nil
	}

	if err := event.Validate(); err != nil {
		c.logger.Warn().Err(err).
			Str("subject", msg.Subject()).
			Msg("invalid signal event, rejecting")
		msg.Term()
		return nil
	}

	sig, err := event.ToSignal()
	if err != nil {
		c.logger.Warn().Err(err).
			Str("user_id", event.UserID).
			Str("strategy_id", event.StrategyID).
			Msg("invalid signal payload, rejecting")
		msg.Term()
		return nil
	}

	webhook, err := c.repo.FindActiveWebhook(ctx, event.UserID, event.StrategyID)
	if err != nil {
		if errors.Is(err, domain.ErrWebhookNotFound) {
			c.logger.Warn().
				Str("user_id", event.UserID).
				Str("strategy_id", event.StrategyID).
				Msg("no active webhook for signal, rejecting")
			msg.Term()
			return nil
		}
		return fmt.Errorf("find webhook: %w", err)
	}

	if err := c.repo.MarkTriggered(ctx, webhook.ID); err != nil {
		c.logger.Warn().Err(err).Str("webhook_id", webhook.ID).Msg("failed to bump trigger stats")
	}

	account, err := c.repo.GetActiveAccount(ctx, event.UserID, webhook.IsVirtual)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			c.logger.Warn().
				Str("user_id", event.UserID).
				Msg("no active broker account for signal, rejecting")
			msg.Term()
			return nil
		}
		return fmt.Errorf("resolve account: %w", err)
	}

	order := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          account.UserID,
		BrokerAccountID: account.ID,
		StrategyID:      event.StrategyID,
		WebhookID:       webhook.ID,
		Symbol:          sig.Symbol,
		Action:          sig.Action,
		OrderType:       sig.OrderType,
		Quantity:        sig.Quantity,
		Price:           sig.Price,
		StopLoss:        sig.StopLoss,
		TakeProfit:      sig.TakeProfit,
		Status:          domain.OrderStatusPending,
		IsVirtual:       account.IsVirtual,
		CreatedAt:       time.Now().UTC(),
	}
	if err := c.repo.InsertOrder(ctx, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	result := c.exec.ExecuteOrder(ctx, *account, sig)

	if err := c.repo.UpdateOrderExecution(ctx, order.ID, result); err != nil {
		return fmt.Errorf("record execution outcome: %w", err)
	}

	order.Status = domain.OrderStatusRejected
	if result.Success {
		order.Status = domain.OrderStatusExecuted
		order.BrokerOrderID = result.OrderID
		order.ExecutedPrice = result.ExecutedPrice
	} else {
		order.ErrorMessage = result.Error
	}

	if c.notifier != nil {
		c.notifier.Notify(ctx, notify.OrderEvent(*order, webhook.StrategyName))
	}

	c.logger.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("status", string(order.Status)).
		Bool("virtual", order.IsVirtual).
		Msg("routed signal event")

	return nil
}

// ConnectNATS connects to NATS with retry logic.
func ConnectNATS(urls string, credsFile, creds string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("relay"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("reconnected to NATS")
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("disconnected from NATS")
			}
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	// Add credentials if configured
	if creds != "" {
		tmpFile, err := os.CreateTemp("", "nats-creds-*.creds")
		if err != nil {
			return nil, fmt.Errorf("create temp credentials file: %w", err)
		}
		if _, err := tmpFile.WriteString(creds); err != nil {
			tmpFile.Close()
			os.Remove(tmpFile.Name())
			return nil, fmt.Errorf("write credentials: %w", err)
		}
		tmpFile.Close()
		opts = append(opts, nats.UserCredentials(tmpFile.Name()))
	} else if credsFile != "" {
		opts = append(opts, nats.UserCredentials(credsFile))
	}

	// Retry connection
	var nc *nats.Conn
	var err error
	backoff := 100 * time.Millisecond
	maxBackoff := 30 * time.Second

	for attempt := 1; ; attempt++ {
		nc, err = nats.Connect(urls, opts...)
		if err == nil {
			log.Info().Str("url", nc.ConnectedUrl()).Int("attempt", attempt).Msg("connected to NATS")
			return nc, nil
		}

		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).
			Msg("failed to connect to NATS, retrying...")
		time.Sleep(backoff)

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
