// Package engine implements the execution coordinator: it converts one
// trade request into three linked state changes (cash balance,
// position, order journal) committed atomically, with trades for the
// same user serialized and trades for different users running in
// parallel.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/ledger"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/metrics"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/model"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/store"
)

// Config holds the engine's tunables.
type Config struct {
	// StartingCash is the cash balance of every newly created account.
	StartingCash decimal.Decimal

	// LockTimeout bounds the wait for a user's trade lock; past it the
	// trade fails with ErrBusy instead of queueing indefinitely.
	LockTimeout time.Duration
}

// DefaultConfig returns the stock configuration: 100000.00 starting
// cash and a 5s lock wait.
func DefaultConfig() Config {
	return Config{
		StartingCash: decimal.NewFromInt(100000),
		LockTimeout:  5 * time.Second,
	}
}

// Engine coordinates trade execution over a Store.
//
// Locking: each trade holds its user's lock across the entire
// read-validate-compute-commit sequence, and holds the price gate
// shared; UpdatePrices holds the gate exclusively. So same-user trades
// serialize, different users run in parallel, and price updates never
// interleave with an in-flight trade.
type Engine struct {
	store store.Store
	locks *userLocks
	gate  sync.RWMutex
	cfg   Config
}

// New creates an engine over the given store.
func New(st store.Store, cfg Config) *Engine {
	if cfg.StartingCash.LessThanOrEqual(decimal.Zero) {
		cfg.StartingCash = DefaultConfig().StartingCash
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultConfig().LockTimeout
	}
	return &Engine{
		store: st,
		locks: newUserLocks(),
		cfg:   cfg,
	}
}

// BuyResult is returned from a committed buy.
type BuyResult struct {
	Order           model.Order     `json:"order"`
	Cash            decimal.Decimal `json:"cash"`
	TotalInvestment decimal.Decimal `json:"total_investment"`
}

// SellResult is returned from a committed sell.
type SellResult struct {
	Order            model.Order     `json:"order"`
	Cash             decimal.Decimal `json:"cash"`
	TotalInvestment  decimal.Decimal `json:"total_investment"`
	TotalRealizedPnL decimal.Decimal `json:"total_realized_pnl"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`
}

// CreateAccount opens an account with the configured starting cash.
func (e *Engine) CreateAccount(ctx context.Context, userID string) (*model.Account, error) {
	acc := &model.Account{
		UserID:           userID,
		Cash:             model.RoundMoney(e.cfg.StartingCash),
		TotalInvestment:  decimal.Zero,
		TotalRealizedPnL: decimal.Zero,
		CreatedAt:        time.Now().UTC(),
	}
	if err := e.store.CreateAccount(ctx, acc); err != nil {
		return nil, err
	}
	slog.Info("account created", "user", userID, "cash", acc.Cash.String())
	return acc, nil
}

// Account returns a user's account.
func (e *Engine) Account(ctx context.Context, userID string) (*model.Account, error) {
	return e.store.GetAccount(ctx, userID)
}

// ExecuteBuy executes a buy of quantity shares of symbol at price.
//
// Input errors (quantity, price) are rejected before any lock is
// taken. The funds check runs under the user lock against current
// cash. On success all three ledger writes are committed atomically;
// on any commit failure nothing is visible and ErrExecutionFailed is
// returned.
func (e *Engine) ExecuteBuy(ctx context.Context, userID, symbol string, quantity int64, price decimal.Decimal) (*BuyResult, error) {
	start := time.Now()
	symbol = normalizeSymbol(symbol)

	if err := checkInputs(quantity, price); err != nil {
		metrics.TradeRejections.WithLabelValues("input").Inc()
		return nil, err
	}

	e.gate.RLock()
	defer e.gate.RUnlock()

	release, err := e.locks.acquire(ctx, userID, e.cfg.LockTimeout)
	if err != nil {
		if errors.Is(err, ErrBusy) {
			metrics.LockTimeouts.Inc()
		}
		return nil, err
	}
	defer release()

	acc, err := e.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := ledger.ValidateOrder(model.SideBuy, quantity, price, acc.Cash); err != nil {
		metrics.TradeRejections.WithLabelValues("funds").Inc()
		return nil, err
	}

	pos, err := e.store.GetPosition(ctx, userID, symbol)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("position read failed", "user", userID, "symbol", symbol, "err", err)
		return nil, ErrExecutionFailed
	}

	newPos := ledger.ApplyBuy(pos, userID, symbol, quantity, price)
	totalAmount := model.RoundMoney(price.Mul(decimal.NewFromInt(quantity)))
	newAcc := ledger.DebitBuy(*acc, totalAmount)

	order := model.Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		Symbol:      symbol,
		Side:        model.SideBuy,
		Quantity:    quantity,
		Price:       price,
		TotalAmount: totalAmount,
		Status:      model.StatusCompleted,
		ExecutedAt:  time.Now().UTC(),
	}

	err = e.store.CommitTrade(ctx, store.TradeCommit{
		Account:  newAcc,
		Symbol:   symbol,
		Position: &newPos,
		Order:    order,
	})
	if err != nil {
		slog.Error("buy commit failed", "user", userID, "symbol", symbol, "err", err)
		return nil, ErrExecutionFailed
	}

	metrics.TradesTotal.WithLabelValues(string(model.SideBuy)).Inc()
	metrics.TradeLatency.WithLabelValues(string(model.SideBuy)).Observe(time.Since(start).Seconds())

	slog.Info("buy executed",
		"order_id", order.ID,
		"user", userID,
		"symbol", symbol,
		"qty", quantity,
		"price", price.String(),
		"cash", newAcc.Cash.String(),
	)

	return &BuyResult{
		Order:           order,
		Cash:            newAcc.Cash,
		TotalInvestment: newAcc.TotalInvestment,
	}, nil
}

// ExecuteSell executes a sell of quantity shares of symbol at price.
//
// Share sufficiency cannot be precomputed statelessly like the buy
// cash check: it needs the position as of the lock, so it is checked
// here rather than in the validator.
func (e *Engine) ExecuteSell(ctx context.Context, userID, symbol string, quantity int64, price decimal.Decimal) (*SellResult, error) {
	start := time.Now()
	symbol = normalizeSymbol(symbol)

	if err := checkInputs(quantity, price); err != nil {
		metrics.TradeRejections.WithLabelValues("input").Inc()
		return nil, err
	}

	e.gate.RLock()
	defer e.gate.RUnlock()

	release, err := e.locks.acquire(ctx, userID, e.cfg.LockTimeout)
	if err != nil {
		if errors.Is(err, ErrBusy) {
			metrics.LockTimeouts.Inc()
		}
		return nil, err
	}
	defer release()

	acc, err := e.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	pos, err := e.store.GetPosition(ctx, userID, symbol)
	if errors.Is(err, store.ErrNotFound) {
		metrics.TradeRejections.WithLabelValues("no_position").Inc()
		return nil, ledger.ErrNoSuchPosition
	}
	if err != nil {
		slog.Error("position read failed", "user", userID, "symbol", symbol, "err", err)
		return nil, ErrExecutionFailed
	}

	outcome, err := ledger.ApplySell(pos, quantity, price)
	if err != nil {
		metrics.TradeRejections.WithLabelValues("shares").Inc()
		return nil, err
	}

	totalAmount := model.RoundMoney(price.Mul(decimal.NewFromInt(quantity)))
	newAcc := ledger.CreditSell(*acc, totalAmount, outcome.SoldCostBasis, outcome.RealizedPnL)

	realized := outcome.RealizedPnL
	order := model.Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		Symbol:      symbol,
		Side:        model.SideSell,
		Quantity:    quantity,
		Price:       price,
		TotalAmount: totalAmount,
		Status:      model.StatusCompleted,
		RealizedPnL: &realized,
		ExecutedAt:  time.Now().UTC(),
	}

	commit := store.TradeCommit{
		Account: newAcc,
		Symbol:  symbol,
		Order:   order,
	}
	if !outcome.Closed {
		remaining := outcome.Remaining
		commit.Position = &remaining
	}

	if err := e.store.CommitTrade(ctx, commit); err != nil {
		slog.Error("sell commit failed", "user", userID, "symbol", symbol, "err", err)
		return nil, ErrExecutionFailed
	}

	metrics.TradesTotal.WithLabelValues(string(model.SideSell)).Inc()
	metrics.TradeLatency.WithLabelValues(string(model.SideSell)).Observe(time.Since(start).Seconds())

	slog.Info("sell executed",
		"order_id", order.ID,
		"user", userID,
		"symbol", symbol,
		"qty", quantity,
		"price", price.String(),
		"realized_pnl", outcome.RealizedPnL.String(),
		"closed", outcome.Closed,
	)

	return &SellResult{
		Order:            order,
		Cash:             newAcc.Cash,
		TotalInvestment:  newAcc.TotalInvestment,
		TotalRealizedPnL: newAcc.TotalRealizedPnL,
		RealizedPnL:      outcome.RealizedPnL,
	}, nil
}

// PortfolioSummary aggregates a user's account and open positions from
// one consistent snapshot. Always succeeds for an existing user.
func (e *Engine) PortfolioSummary(ctx context.Context, userID string) (*model.PortfolioSummary, error) {
	acc, positions, err := e.store.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &model.PortfolioSummary{
		UserID:           userID,
		Cash:             acc.Cash,
		TotalRealizedPnL: acc.TotalRealizedPnL,
		PositionCount:    len(positions),
		Positions:        positions,
	}

	totalValue := decimal.Zero
	totalInvested := decimal.Zero
	for _, p := range positions {
		totalValue = totalValue.Add(p.MarketValue)
		totalInvested = totalInvested.Add(p.CostBasis)
	}

	summary.TotalCurrentValue = totalValue
	summary.TotalInvestment = totalInvested
	summary.TotalUnrealizedPnL = totalValue.Sub(totalInvested)
	summary.TotalPortfolioValue = acc.Cash.Add(totalValue)

	return summary, nil
}

// UpdatePrices sets the mark price on every position holding each
// symbol and returns the count of rows touched. Best effort: symbols
// nobody holds are no-ops. Serialized against in-flight trades.
func (e *Engine) UpdatePrices(ctx context.Context, updates []model.PriceUpdate) (int, error) {
	bySymbol := make(map[string]decimal.Decimal, len(updates))
	for _, u := range updates {
		if u.Price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		bySymbol[normalizeSymbol(u.Symbol)] = u.Price
	}
	if len(bySymbol) == 0 {
		return 0, nil
	}

	e.gate.Lock()
	defer e.gate.Unlock()

	count, err := e.store.UpdatePrices(ctx, bySymbol)
	if err != nil {
		return count, err
	}
	metrics.PriceUpdatesTotal.Add(float64(count))
	return count, nil
}

// Orders returns a user's order history, newest first.
func (e *Engine) Orders(ctx context.Context, userID string) ([]model.Order, error) {
	return e.store.GetOrdersByUser(ctx, userID)
}

func checkInputs(quantity int64, price decimal.Decimal) error {
	if quantity <= 0 {
		return ledger.ErrInvalidQuantity
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return ledger.ErrInvalidPrice
	}
	return nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
