package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"relay/internal/domain"
	"relay/internal/notify"
	"relay/internal/signal"
)

// WebhookResponse is the response body for webhook deliveries.
type WebhookResponse struct {
	Success       bool             `json:"success"`
	OrderID       string           `json:"order_id,omitempty"`
	BrokerOrderID string           `json:"broker_order_id,omitempty"`
	ExecutedPrice *decimal.Decimal `json:"executed_price,omitempty"`
	Error         string           `json:"error,omitempty"`
	ErrorType     domain.ErrorType `json:"error_type,omitempty"`
}

// handleWebhook is the relay path: a TradingView alert comes in, gets
// validated, matched to the user's webhook and active account, persisted
// as a pending order, executed, and the outcome recorded and notified.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	strategyID := chi.URLParam(r, "strategyID")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	sig, err := signal.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	webhook, err := s.repo.FindActiveWebhook(ctx, userID, strategyID)
	if err != nil {
		if errors.Is(err, domain.ErrWebhookNotFound) {
			writeError(w, http.StatusNotFound, "webhook not found or inactive")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve webhook")
		return
	}

	if err := s.repo.MarkTriggered(ctx, webhook.ID); err != nil {
		log.Warn().Err(err).Str("webhook_id", webhook.ID).Msg("failed to bump trigger stats")
	}

	account, err := s.repo.GetActiveAccount(ctx, userID, webhook.IsVirtual)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "no active broker account for this strategy")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve broker account")
		return
	}

	order, result := s.routeSignal(r, *account, sig, webhook.ID, strategyID, webhook.StrategyName)
	if order == nil {
		writeError(w, http.StatusInternalServerError, "failed to persist order")
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse(order, result))
}

// handleWebhookStatus reports the webhook's trigger stats, used by the
// dashboard's endpoint test button.
func (s *Server) handleWebhookStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	strategyID := chi.URLParam(r, "strategyID")

	webhook, err := s.repo.FindActiveWebhook(r.Context(), userID, strategyID)
	if err != nil {
		if errors.Is(err, domain.ErrWebhookNotFound) {
			writeError(w, http.StatusNotFound, "webhook not found or inactive")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve webhook")
		return
	}

	writeJSON(w, http.StatusOK, webhook)
}

// routeSignal persists a pending order, executes it, records the outcome
// and notifies the user. A nil order means persistence failed and nothing
// was executed.
func (s *Server) routeSignal(r *http.Request, account domain.BrokerAccount, sig domain.TradeSignal, webhookID, strategyID, strategyName string) (*domain.Order, domain.OrderResult) {
	ctx := r.Context()

	order := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          account.UserID,
		BrokerAccountID: account.ID,
		StrategyID:      strategyID,
		WebhookID:       webhookID,
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

	if err := s.repo.InsertOrder(ctx, order); err != nil {
		log.Error().Err(err).Str("user_id", account.UserID).Msg("failed to persist pending order")
		return nil, domain.OrderResult{}
	}

	result := s.exec.ExecuteOrder(ctx, account, sig)

	if err := s.repo.UpdateOrderExecution(ctx, order.ID, result); err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("failed to record execution outcome")
	}

	order.Status = domain.OrderStatusRejected
	if result.Success {
		order.Status = domain.OrderStatusExecuted
		order.BrokerOrderID = result.OrderID
		order.ExecutedPrice = result.ExecutedPrice
		now := time.Now().UTC()
		order.ExecutedAt = &now
	} else {
		order.ErrorMessage = result.Error
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, notify.OrderEvent(*order, strategyName))
	}

	return order, result
}

func webhookResponse(order *domain.Order, result domain.OrderResult) WebhookResponse {
	return WebhookResponse{
		Success:       result.Success,
		OrderID:       order.ID,
		BrokerOrderID: result.OrderID,
		ExecutedPrice: result.ExecutedPrice,
		Error:         result.Error,
		ErrorType:     result.ErrorType,
	}
}
