package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"relay/internal/domain"
	"relay/internal/engine"
	"relay/internal/signal"
	"relay/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Check database
	if err := s.repo.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "error",
			"error":  "database unreachable",
		})
		return
	}

	// Check NATS
	if s.nc != nil && !s.nc.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "error",
			"error":  "NATS disconnected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// BrokerInfo is one broker catalog entry.
type BrokerInfo struct {
	Name           domain.BrokerName `json:"name"`
	DisplayName    string            `json:"display_name"`
	Description    string            `json:"description"`
	AuthType       string            `json:"auth_type"`
	RequiredFields []string          `json:"required_fields"`
	Features       []string          `json:"features"`
}

func (s *Server) handleListBrokers(w http.ResponseWriter, r *http.Request) {
	regs := engine.SupportedBrokers()
	brokers := make([]BrokerInfo, 0, len(regs))
	for _, reg := range regs {
		brokers = append(brokers, BrokerInfo{
			Name:           reg.Name,
			DisplayName:    reg.DisplayName,
			Description:    reg.Description,
			AuthType:       reg.AuthType,
			RequiredFields: reg.RequiredFields,
			Features:       reg.Features,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"brokers": brokers})
}

func (s *Server) handleValidateCredentials(w http.ResponseWriter, r *http.Request) {
	name := domain.BrokerName(strings.ToUpper(chi.URLParam(r, "broker")))

	var creds map[string]string
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	writeJSON(w, http.StatusOK, engine.ValidateBrokerCredentials(name, creds))
}

// TestOrderRequest is the body for POST /api/v1/orders/test. The user id
// comes from the X-User-ID header the auth gateway injects.
type TestOrderRequest struct {
	BrokerAccountID string `json:"brokerAccountId"`
	signal.Payload
}

func (s *Server) handleTestOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req TestOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BrokerAccountID == "" {
		writeError(w, http.StatusBadRequest, "brokerAccountId is required")
		return
	}

	sig, err := req.Normalize()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := s.repo.GetBrokerAccount(ctx, req.BrokerAccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "broker account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve broker account")
		return
	}
	if account.UserID != userID {
		writeError(w, http.StatusForbidden, "broker account belongs to another user")
		return
	}
	if !account.IsActive {
		writeError(w, http.StatusConflict, "broker account is inactive")
		return
	}

	order, result := s.routeSignal(r, *account, sig, "", "", "")
	if order == nil {
		writeError(w, http.StatusInternalServerError, "failed to persist order")
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse(order, result))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")
	q := r.URL.Query()

	account, err := s.repo.GetBrokerAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "broker account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve broker account")
		return
	}

	filter := store.OrderFilter{
		AccountID: accountID,
		Symbol:    q.Get("symbol"),
		Status:    q.Get("status"),
		Cursor:    q.Get("cursor"),
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	if startStr := q.Get("start"); startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start time")
			return
		}
		filter.Start = &t
	}

	if endStr := q.Get("end"); endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end time")
			return
		}
		filter.End = &t
	}

	result, err := s.repo.ListOrders(ctx, account.UserID, filter)
	if err != nil {
		if strings.Contains(err.Error(), "invalid cursor") {
			writeError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// VirtualStateResponse is the simulator ledger snapshot for one account.
type VirtualStateResponse struct {
	AccountID string            `json:"account_id"`
	Balance   string            `json:"balance"`
	Positions []domain.Position `json:"positions"`
}

func (s *Server) handleVirtualState(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	state, err := s.vstore.State(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load virtual state")
		return
	}

	resp := VirtualStateResponse{
		AccountID: accountID,
		Balance:   state.Balance.String(),
		Positions: []domain.Position{},
	}
	for _, pos := range state.Positions {
		if pos.Quantity.IsZero() {
			continue
		}
		resp.Positions = append(resp.Positions, pos)
	}
	writeJSON(w, http.StatusOK, resp)
}
