// Package feed simulates a market-data source: it random-walks a set
// of symbol prices and pushes them through the engine's price-update
// path. It is a caller of the engine, not part of it; a real quote
// feed would plug in the same way.
package feed

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/model"
)

// maxStepPct bounds a single tick's move to ±1.5% of the last price.
const maxStepPct = 0.015

// Updater is the slice of the engine the feed needs.
type Updater interface {
	UpdatePrices(ctx context.Context, updates []model.PriceUpdate) (int, error)
}

// Broadcaster receives each tick for fan-out to WebSocket clients.
// May be nil.
type Broadcaster interface {
	BroadcastPrices(updates []model.PriceUpdate)
}

// Feed drives periodic price updates for a fixed symbol universe.
type Feed struct {
	updater  Updater
	caster   Broadcaster
	interval time.Duration
	prices   map[string]decimal.Decimal
	rng      *rand.Rand
}

// DefaultUniverse is the simulated symbol set with opening prices.
func DefaultUniverse() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"RELIANCE":   decimal.NewFromFloat(2850.00),
		"TCS":        decimal.NewFromFloat(3950.00),
		"INFY":       decimal.NewFromFloat(1520.00),
		"HDFCBANK":   decimal.NewFromFloat(1680.00),
		"ICICIBANK":  decimal.NewFromFloat(1150.00),
		"SBIN":       decimal.NewFromFloat(830.00),
		"BHARTIARTL": decimal.NewFromFloat(1490.00),
		"ITC":        decimal.NewFromFloat(445.00),
		"WIPRO":      decimal.NewFromFloat(520.00),
		"TATAMOTORS": decimal.NewFromFloat(990.00),
	}
}

// New creates a feed over the given symbol universe. caster may be nil.
func New(updater Updater, caster Broadcaster, universe map[string]decimal.Decimal, interval time.Duration) *Feed {
	prices := make(map[string]decimal.Decimal, len(universe))
	for sym, price := range universe {
		prices[sym] = price
	}
	return &Feed{
		updater:  updater,
		caster:   caster,
		interval: interval,
		prices:   prices,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Run ticks until ctx is cancelled. Must be called in a goroutine.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.tick(ctx)
		}
	}
}

func (f *Feed) tick(ctx context.Context) {
	updates := make([]model.PriceUpdate, 0, len(f.prices))
	for sym, price := range f.prices {
		next := f.step(price)
		f.prices[sym] = next
		updates = append(updates, model.PriceUpdate{Symbol: sym, Price: next})
	}

	count, err := f.updater.UpdatePrices(ctx, updates)
	if err != nil {
		slog.Error("price tick failed", "err", err)
		return
	}

	if f.caster != nil {
		f.caster.BroadcastPrices(updates)
	}

	slog.Debug("price tick", "symbols", len(updates), "positions_updated", count)
}

// step random-walks one price, keeping it positive and rounded to 2dp.
func (f *Feed) step(price decimal.Decimal) decimal.Decimal {
	pct := (f.rng.Float64()*2 - 1) * maxStepPct
	next := price.Mul(decimal.NewFromFloat(1 + pct)).Round(2)
	if next.LessThanOrEqual(decimal.Zero) {
		return price
	}
	return next
}
