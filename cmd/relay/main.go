package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"relay/internal/api"
	"relay/internal/broker"
	"relay/internal/broker/virtual"
	"relay/internal/config"
	"relay/internal/domain"
	"relay/internal/engine"
	"relay/internal/ingest"
	"relay/internal/notify"
	"relay/internal/store"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Msg("starting relay service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize database
	repo, err := store.NewRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer repo.Close()

	if err := repo.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	log.Info().Msg("connected to PostgreSQL")

	// Run migrations
	if err := store.RunMigrations(ctx, repo.Pool()); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("migrations complete")

	// Connect to NATS
	nc, err := ingest.ConnectNATS(cfg.NATSURLs, cfg.NATSCredsFile, cfg.NATSCreds)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer nc.Close()
	log.Info().Str("url", nc.ConnectedUrl()).Msg("connected to NATS")

	// Order execution engine over the durable virtual ledger
	vstore := store.NewVirtualStore(repo, cfg.VirtualInitialBalance)
	exec := engine.New(log.Logger, vstore, virtual.NewStaticPrices(), brokerOverrides(cfg))

	// Notification fan-out
	senders := []notify.Sender{notify.NewNATSSender(nc, "relay.orders")}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID))
		log.Info().Msg("telegram notifications enabled")
	}
	notifier := notify.New(log.Logger, senders...)

	// Start NATS signal consumer
	consumer := ingest.NewConsumer(nc, repo, exec, notifier)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("NATS consumer error")
		}
	}()

	// Start HTTP server
	srv := api.NewServer(repo, exec, vstore, notifier, nc, cfg.WebhookRatePerMinute)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: srv.Router(),
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info().Msg("shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("shutdown complete")
}

// brokerOverrides maps configured base-URL overrides onto adapter options.
func brokerOverrides(cfg *config.Config) map[domain.BrokerName]broker.Options {
	overrides := make(map[domain.BrokerName]broker.Options)
	if cfg.ZerodhaBaseURL != "" {
		overrides[domain.BrokerZerodha] = broker.Options{BaseURL: cfg.ZerodhaBaseURL}
	}
	if cfg.UpstoxBaseURL != "" {
		overrides[domain.BrokerUpstox] = broker.Options{BaseURL: cfg.UpstoxBaseURL}
	}
	if cfg.FyersBaseURL != "" {
		overrides[domain.BrokerFyers] = broker.Options{BaseURL: cfg.FyersBaseURL}
	}
	if cfg.BinanceBaseURL != "" {
		overrides[domain.BrokerBinance] = broker.Options{BaseURL: cfg.BinanceBaseURL}
	}
	return overrides
}
