// Package api is the HTTP surface of the relay: the TradingView webhook
// endpoints, the broker catalog, manual test orders and read-only order
// and virtual-account queries. Authentication and credential decryption
// happen upstream; handlers trust the user id the gateway injects.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"relay/internal/broker/virtual"
	"relay/internal/domain"
	"relay/internal/engine"
	"relay/internal/notify"
	"relay/internal/store"
)

// Store is the persistence surface the handlers depend on.
type Store interface {
	Ping(ctx context.Context) error
	FindActiveWebhook(ctx context.Context, userID, strategyID string) (*domain.Webhook, error)
	MarkTriggered(ctx context.Context, webhookID string) error
	GetActiveAccount(ctx context.Context, userID string, isVirtual bool) (*domain.BrokerAccount, error)
	GetBrokerAccount(ctx context.Context, accountID string) (*domain.BrokerAccount, error)
	InsertOrder(ctx context.Context, order *domain.Order) error
	UpdateOrderExecution(ctx context.Context, orderID string, result domain.OrderResult) error
	ListOrders(ctx context.Context, userID string, filter store.OrderFilter) (*store.OrderListResult, error)
}

// Server holds the HTTP server dependencies.
type Server struct {
	repo     Store
	exec     *engine.Executor
	vstore   virtual.StateStore
	notifier *notify.Notifier
	nc       *nats.Conn
	limiter  *userLimiter
}

// NewServer creates a new API server. ratePerMinute bounds webhook
// deliveries per user.
func NewServer(repo Store, exec *engine.Executor, vstore virtual.StateStore, notifier *notify.Notifier, nc *nats.Conn, ratePerMinute int) *Server {
	return &Server{
		repo:     repo,
		exec:     exec,
		vstore:   vstore,
		notifier: notifier,
		nc:       nc,
		limiter:  newUserLimiter(ratePerMinute),
	}
}

// Router returns the configured chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// TradingView webhook endpoints (rate limited per user)
	r.Route("/webhook/{userID}/{strategyID}", func(r chi.Router) {
		r.Use(s.rateLimitByUser)
		r.Post("/", s.handleWebhook)
		r.Get("/", s.handleWebhookStatus)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/brokers", s.handleListBrokers)
		r.Post("/brokers/{broker}/validate", s.handleValidateCredentials)

		r.Post("/orders/test", s.handleTestOrder)

		r.Get("/accounts/{accountID}/orders", s.handleListOrders)
		r.Get("/accounts/{accountID}/virtual", s.handleVirtualState)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
