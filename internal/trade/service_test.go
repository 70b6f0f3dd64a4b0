package trade_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/engine"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/model"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/store"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/trade"
)

type testEnv struct {
	router *chi.Mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := engine.DefaultConfig()
	cfg.LockTimeout = time.Second
	eng := engine.New(store.NewMemoryStore(), cfg)
	svc := trade.NewService(eng, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/accounts", svc.CreateAccount)
		r.Get("/accounts/{userID}", svc.GetAccount)
		r.Post("/accounts/{userID}/buy", svc.ExecuteBuy)
		r.Post("/accounts/{userID}/sell", svc.ExecuteSell)
		r.Get("/accounts/{userID}/portfolio", svc.GetPortfolio)
		r.Get("/accounts/{userID}/orders", svc.ListOrders)
		r.Post("/prices", svc.UpdatePrices)
	})
	return &testEnv{router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createAccount(t *testing.T, userID string) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/accounts", map[string]string{"user_id": userID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account: status %d, body %s", rec.Code, rec.Body)
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body)
	}
	return v
}

func TestCreateAccount(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/accounts", map[string]string{"user_id": "alice"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	acc := decode[model.Account](t, rec)
	if acc.UserID != "alice" {
		t.Errorf("user_id = %q, want alice", acc.UserID)
	}
	if acc.Cash.String() != "100000" {
		t.Errorf("cash = %s, want 100000", acc.Cash)
	}

	// Same user again conflicts.
	rec = env.do(t, http.MethodPost, "/api/v1/accounts", map[string]string{"user_id": "alice"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestCreateAccount_MissingUserID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/accounts", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/accounts/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestExecuteBuy(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/accounts/alice/buy",
		map[string]any{"symbol": "RELIANCE", "quantity": 10, "price": "850"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	result := decode[engine.BuyResult](t, rec)
	if result.Cash.String() != "91500" {
		t.Errorf("cash = %s, want 91500", result.Cash)
	}
	if result.Order.Side != model.SideBuy || result.Order.Quantity != 10 {
		t.Errorf("unexpected order: %+v", result.Order)
	}
	if result.Order.Status != model.StatusCompleted {
		t.Errorf("status = %q, want %q", result.Order.Status, model.StatusCompleted)
	}
}

func TestExecuteBuy_BadInputs(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "alice")

	cases := []struct {
		name string
		body map[string]any
	}{
		{"zero quantity", map[string]any{"symbol": "TCS", "quantity": 0, "price": "100"}},
		{"negative quantity", map[string]any{"symbol": "TCS", "quantity": -5, "price": "100"}},
		{"zero price", map[string]any{"symbol": "TCS", "quantity": 5, "price": "0"}},
		{"missing symbol", map[string]any{"quantity": 5, "price": "100"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/accounts/alice/buy", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body)
			}
		})
	}
}

func TestExecuteBuy_InsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/accounts/alice/buy",
		map[string]any{"symbol": "TCS", "quantity": 100, "price": "3950"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", rec.Code, rec.Body)
	}
	resp := decode[map[string]string](t, rec)
	if resp["error"] != "insufficient funds" {
		t.Errorf("error = %q", resp["error"])
	}
	if resp["required"] != "395000.00" || resp["available"] != "100000.00" {
		t.Errorf("detail = %s / %s, want 395000.00 / 100000.00",
			resp["required"], resp["available"])
	}
}

func TestExecuteBuy_UnknownAccount(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/accounts/ghost/buy",
		map[string]any{"symbol": "TCS", "quantity": 1, "price": "100"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestExecuteSell(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "alice")

	env.do(t, http.MethodPost, "/api/v1/accounts/alice/buy",
		map[string]any{"symbol": "INFY", "quantity": 10, "price": "1500"})

	rec := env.do(t, http.MethodPost, "/api/v1/accounts/alice/sell",
		map[string]any{"symbol": "INFY", "quantity": 10, "price": "1600"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	result := decode[engine.SellResult](t, rec)
	if result.RealizedPnL.String() != "1000" {
		t.Errorf("realized = %s, want 1000", result.RealizedPnL)
	}
	if result.Cash.String() != "101000" {
		t.Errorf("cash = %s, want 101000", result.Cash)
	}
}

func TestExecuteSell_InsufficientShares(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "alice")

	env.do(t, http.MethodPost, "/api/v1/accounts/alice/buy",
		map[string]any{"symbol": "SBIN", "quantity": 5, "price": "830"})

	rec := env.do(t, http.MethodPost, "/api/v1/accounts/alice/sell",
		map[string]any{"symbol": "SBIN", "quantity": 8, "price": "840"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", rec.Code, rec.Body)
	}
	resp := decode[map[string]string](t, rec)
	if resp["required"] != "8" || resp["available"] != "5" {
		t.Errorf("detail = %s / %s, want 8 / 5", resp["required"], resp["available"])
	}
}

func TestExecuteSell_NoPosition(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/accounts/alice/sell",
		map[string]any{"symbol": "WIPRO", "quantity": 1, "price": "520"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 (body %s)", rec.Code, rec.Body)
	}
}

func TestGetPortfolio(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "alice")

	env.do(t, http.MethodPost, "/api/v1/accounts/alice/buy",
		map[string]any{"symbol": "ITC", "quantity": 100, "price": "445"})

	rec := env.do(t, http.MethodGet, "/api/v1/accounts/alice/portfolio", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	summary := decode[model.PortfolioSummary](t, rec)
	if len(summary.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(summary.Positions))
	}
	if summary.Positions[0].MarketValue.String() != "44500" {
		t.Errorf("market value = %s, want 44500", summary.Positions[0].MarketValue)
	}
	if summary.Cash.String() != "55500" {
		t.Errorf("cash = %s, want 55500", summary.Cash)
	}
}

func TestGetPortfolio_Empty(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "alice")

	rec := env.do(t, http.MethodGet, "/api/v1/accounts/alice/portfolio", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// Empty portfolio serializes as [], not null.
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"positions":[]`)) {
		t.Errorf("expected empty positions array, body %s", rec.Body)
	}
}

func TestGetPortfolio_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/accounts/ghost/portfolio", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "alice")

	env.do(t, http.MethodPost, "/api/v1/accounts/alice/buy",
		map[string]any{"symbol": "TCS", "quantity": 2, "price": "3950"})
	env.do(t, http.MethodPost, "/api/v1/accounts/alice/buy",
		map[string]any{"symbol": "INFY", "quantity": 3, "price": "1520"})

	rec := env.do(t, http.MethodGet, "/api/v1/accounts/alice/orders", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	orders := decode[[]model.Order](t, rec)
	if len(orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(orders))
	}
	if orders[0].Symbol != "INFY" || orders[1].Symbol != "TCS" {
		t.Errorf("orders not newest first: %s, %s", orders[0].Symbol, orders[1].Symbol)
	}
}

func TestUpdatePrices(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "alice")

	env.do(t, http.MethodPost, "/api/v1/accounts/alice/buy",
		map[string]any{"symbol": "HDFCBANK", "quantity": 10, "price": "1680"})

	rec := env.do(t, http.MethodPost, "/api/v1/prices", map[string]any{
		"updates": []map[string]any{
			{"symbol": "HDFCBANK", "price": "1700"},
			{"symbol": "NOBODY", "price": "10"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	resp := decode[trade.PriceUpdateResponse](t, rec)
	if resp.Updated != 1 {
		t.Errorf("updated = %d, want 1", resp.Updated)
	}

	// The next portfolio read sees the new mark.
	rec = env.do(t, http.MethodGet, "/api/v1/accounts/alice/portfolio", nil)
	summary := decode[model.PortfolioSummary](t, rec)
	if summary.Positions[0].CurrentPrice.String() != "1700" {
		t.Errorf("current price = %s, want 1700", summary.Positions[0].CurrentPrice)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/alice/buy",
		bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
