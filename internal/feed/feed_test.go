package feed_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/feed"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/model"
)

type captureUpdater struct {
	mu      sync.Mutex
	batches [][]model.PriceUpdate
	done    chan struct{}
	want    int
}

func (c *captureUpdater) UpdatePrices(_ context.Context, updates []model.PriceUpdate) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, updates)
	if len(c.batches) == c.want {
		close(c.done)
	}
	return len(updates), nil
}

func TestFeed_TicksFullUniverse(t *testing.T) {
	upd := &captureUpdater{done: make(chan struct{}), want: 2}
	universe := map[string]decimal.Decimal{
		"TCS":  decimal.NewFromInt(3950),
		"INFY": decimal.NewFromInt(1520),
	}
	f := feed.New(upd, nil, universe, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	select {
	case <-upd.done:
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not tick")
	}
	cancel()

	upd.mu.Lock()
	defer upd.mu.Unlock()
	for _, batch := range upd.batches[:2] {
		if len(batch) != 2 {
			t.Fatalf("batch size = %d, want 2", len(batch))
		}
		for _, u := range batch {
			if u.Price.LessThanOrEqual(decimal.Zero) {
				t.Errorf("%s ticked to non-positive price %s", u.Symbol, u.Price)
			}
			// One tick moves at most 1.5%.
			start := universe[u.Symbol]
			low := start.Mul(decimal.NewFromFloat(0.96))
			high := start.Mul(decimal.NewFromFloat(1.04))
			if u.Price.LessThan(low) || u.Price.GreaterThan(high) {
				t.Errorf("%s moved too far in two ticks: %s", u.Symbol, u.Price)
			}
		}
	}
}
