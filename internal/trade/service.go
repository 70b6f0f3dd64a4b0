// Package trade provides the HTTP handlers over the execution engine:
// account creation, buy/sell execution, portfolio and order history
// queries, and price updates.
//
// Handlers stay thin: decode the request, call the engine, map the
// failure kind to a status code. The user id comes from the URL path
// as an already-authenticated input; authentication itself lives in
// front of this service.
package trade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/engine"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/ledger"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/model"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/store"
)

// Service wires the execution engine to HTTP.
type Service struct {
	engine *engine.Engine
	wsHub  *WSHub // optional hub for trade/price broadcasts
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(eng *engine.Engine, hub *WSHub) *Service {
	return &Service{engine: eng, wsHub: hub}
}

// --- Request/Response types ---

// CreateAccountRequest is the JSON body for POST /accounts.
type CreateAccountRequest struct {
	UserID string `json:"user_id"`
}

// OrderRequest is the JSON body for buy and sell endpoints.
type OrderRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// PriceUpdateRequest is the JSON body for POST /prices.
type PriceUpdateRequest struct {
	Updates []model.PriceUpdate `json:"updates"`
}

// PriceUpdateResponse reports how many position rows a price push
// touched.
type PriceUpdateResponse struct {
	Updated int `json:"updated"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Required  string `json:"required,omitempty"`
	Available string `json:"available,omitempty"`
}

// --- HTTP Handlers ---

// CreateAccount handles POST /api/v1/accounts
func (s *Service) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	acc, err := s.engine.CreateAccount(r.Context(), req.UserID)
	if errors.Is(err, store.ErrAccountExists) {
		writeError(w, "account already exists", http.StatusConflict)
		return
	}
	if err != nil {
		writeError(w, "failed to create account", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, acc)
}

// GetAccount handles GET /api/v1/accounts/{userID}
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	acc, err := s.engine.Account(r.Context(), userID)
	if err != nil {
		writeError(w, "account not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, acc)
}

// ExecuteBuy handles POST /api/v1/accounts/{userID}/buy
func (s *Service) ExecuteBuy(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" {
		writeError(w, "symbol is required", http.StatusBadRequest)
		return
	}

	result, err := s.engine.ExecuteBuy(r.Context(), userID, req.Symbol, req.Quantity, req.Price)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.broadcastTrade(result.Order)
	writeJSON(w, http.StatusOK, result)
}

// ExecuteSell handles POST /api/v1/accounts/{userID}/sell
func (s *Service) ExecuteSell(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" {
		writeError(w, "symbol is required", http.StatusBadRequest)
		return
	}

	result, err := s.engine.ExecuteSell(r.Context(), userID, req.Symbol, req.Quantity, req.Price)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.broadcastTrade(result.Order)
	writeJSON(w, http.StatusOK, result)
}

// GetPortfolio handles GET /api/v1/accounts/{userID}/portfolio
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	summary, err := s.engine.PortfolioSummary(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "account not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load portfolio", http.StatusInternalServerError)
		return
	}
	if summary.Positions == nil {
		summary.Positions = []model.Position{}
	}

	writeJSON(w, http.StatusOK, summary)
}

// ListOrders handles GET /api/v1/accounts/{userID}/orders
func (s *Service) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	orders, err := s.engine.Orders(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load orders", http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}

	writeJSON(w, http.StatusOK, orders)
}

// UpdatePrices handles POST /api/v1/prices
// Best effort: symbols nobody holds are no-ops.
func (s *Service) UpdatePrices(w http.ResponseWriter, r *http.Request) {
	var req PriceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	count, err := s.engine.UpdatePrices(r.Context(), req.Updates)
	if err != nil {
		writeError(w, "failed to update prices", http.StatusInternalServerError)
		return
	}

	for _, u := range req.Updates {
		s.broadcastPrice(u)
	}

	writeJSON(w, http.StatusOK, PriceUpdateResponse{Updated: count})
}

func (s *Service) broadcastTrade(o model.Order) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast(WSMessage{
		Type:     "trade_executed",
		Symbol:   o.Symbol,
		Side:     string(o.Side),
		Quantity: o.Quantity,
		Price:    o.Price.String(),
	})
}

// BroadcastPrices fans a batch of price ticks out to WebSocket
// clients. Satisfies the feed package's Broadcaster.
func (s *Service) BroadcastPrices(updates []model.PriceUpdate) {
	for _, u := range updates {
		s.broadcastPrice(u)
	}
}

func (s *Service) broadcastPrice(u model.PriceUpdate) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast(WSMessage{
		Type:   "price_tick",
		Symbol: u.Symbol,
		Price:  u.Price.String(),
	})
}

// writeEngineError maps an engine failure kind to its HTTP status.
// Input errors are 400, business-rule rejections 422, unknown account
// 404, lock timeout 429, infrastructure 500. Funds/shares rejections
// echo the amounts so callers can render a precise message.
func writeEngineError(w http.ResponseWriter, err error) {
	var funds *ledger.InsufficientFundsError
	var shares *ledger.InsufficientSharesError

	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity), errors.Is(err, ledger.ErrInvalidPrice):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &funds):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:     "insufficient funds",
			Required:  funds.Required.StringFixed(2),
			Available: funds.Available.StringFixed(2),
		})
	case errors.As(err, &shares):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:     err.Error(),
			Required:  decimal.NewFromInt(shares.Requested).String(),
			Available: decimal.NewFromInt(shares.Held).String(),
		})
	case errors.Is(err, ledger.ErrNoSuchPosition):
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, "account not found", http.StatusNotFound)
	case errors.Is(err, engine.ErrBusy):
		writeError(w, err.Error(), http.StatusTooManyRequests)
	default:
		slog.Error("trade execution failed", "err", err)
		writeError(w, "execution failed, retry", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, errorResponse{Error: message})
}
