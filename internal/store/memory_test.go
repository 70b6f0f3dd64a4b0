package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/model"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seedAccount(t *testing.T, ms *store.MemoryStore, userID string, cash float64) model.Account {
	t.Helper()
	acc := model.Account{
		UserID:           userID,
		Cash:             d(cash),
		TotalInvestment:  decimal.Zero,
		TotalRealizedPnL: decimal.Zero,
		CreatedAt:        time.Now().UTC(),
	}
	if err := ms.CreateAccount(context.Background(), &acc); err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	return acc
}

func buyCommit(acc model.Account, symbol string, qty int64, price float64) store.TradeCommit {
	total := d(price).Mul(decimal.NewFromInt(qty))
	acc.Cash = acc.Cash.Sub(total)
	acc.TotalInvestment = acc.TotalInvestment.Add(total)
	pos := model.Position{
		UserID:       acc.UserID,
		Symbol:       symbol,
		Quantity:     qty,
		AveragePrice: d(price),
		CurrentPrice: d(price),
		CostBasis:    total,
	}
	return store.TradeCommit{
		Account:  acc,
		Symbol:   symbol,
		Position: &pos,
		Order: model.Order{
			ID:          "order-" + symbol,
			UserID:      acc.UserID,
			Symbol:      symbol,
			Side:        model.SideBuy,
			Quantity:    qty,
			Price:       d(price),
			TotalAmount: total,
			Status:      model.StatusCompleted,
			ExecutedAt:  time.Now().UTC(),
		},
	}
}

func TestMemoryStore_Accounts(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	if _, err := ms.GetAccount(ctx, "user1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	seedAccount(t, ms, "user1", 100000)

	acc, err := ms.GetAccount(ctx, "user1")
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	if !acc.Cash.Equal(d(100000)) {
		t.Errorf("cash = %s, want 100000", acc.Cash)
	}

	// Duplicate create rejected.
	dup := model.Account{UserID: "user1", Cash: d(5)}
	if err := ms.CreateAccount(ctx, &dup); !errors.Is(err, store.ErrAccountExists) {
		t.Errorf("expected ErrAccountExists, got %v", err)
	}

	// The stored account is a copy: mutating the returned value must
	// not leak back in.
	acc.Cash = d(1)
	again, _ := ms.GetAccount(ctx, "user1")
	if !again.Cash.Equal(d(100000)) {
		t.Error("store leaked internal account state")
	}
}

func TestMemoryStore_CommitTrade_Upsert(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	acc := seedAccount(t, ms, "user1", 100000)

	if err := ms.CommitTrade(ctx, buyCommit(acc, "AAPL", 10, 850)); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	got, err := ms.GetAccount(ctx, "user1")
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	if !got.Cash.Equal(d(91500)) {
		t.Errorf("cash = %s, want 91500", got.Cash)
	}

	pos, err := ms.GetPosition(ctx, "user1", "AAPL")
	if err != nil {
		t.Fatalf("get position failed: %v", err)
	}
	if pos.Quantity != 10 {
		t.Errorf("quantity = %d, want 10", pos.Quantity)
	}

	orders, _ := ms.GetOrdersByUser(ctx, "user1")
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
}

func TestMemoryStore_CommitTrade_DeletePosition(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	acc := seedAccount(t, ms, "user1", 100000)

	if err := ms.CommitTrade(ctx, buyCommit(acc, "TCS", 3, 3950)); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// Nil position means the row is deleted.
	closing, _ := ms.GetAccount(ctx, "user1")
	err := ms.CommitTrade(ctx, store.TradeCommit{
		Account:  *closing,
		Symbol:   "TCS",
		Position: nil,
		Order: model.Order{
			ID: "order-close", UserID: "user1", Symbol: "TCS",
			Side: model.SideSell, Quantity: 3, Price: d(4000),
			TotalAmount: d(12000), Status: model.StatusCompleted,
			ExecutedAt: time.Now().UTC(),
		},
	})
	if err != nil {
		t.Fatalf("closing commit failed: %v", err)
	}

	if _, err := ms.GetPosition(ctx, "user1", "TCS"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("position should be gone, got %v", err)
	}
	positions, _ := ms.GetUserPositions(ctx, "user1")
	if len(positions) != 0 {
		t.Errorf("expected 0 positions, got %d", len(positions))
	}
}

func TestMemoryStore_CommitTrade_UnknownUser(t *testing.T) {
	ms := store.NewMemoryStore()

	acc := model.Account{UserID: "ghost", Cash: d(1)}
	err := ms.CommitTrade(context.Background(), store.TradeCommit{Account: acc, Symbol: "X"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdatePrices(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	acc1 := seedAccount(t, ms, "user1", 100000)
	acc2 := seedAccount(t, ms, "user2", 100000)
	if err := ms.CommitTrade(ctx, buyCommit(acc1, "INFY", 10, 1520)); err != nil {
		t.Fatal(err)
	}
	if err := ms.CommitTrade(ctx, buyCommit(acc2, "INFY", 5, 1520)); err != nil {
		t.Fatal(err)
	}
	if err := ms.CommitTrade(ctx, buyCommit(acc1, "ITC", 20, 445)); err != nil {
		t.Fatal(err)
	}

	// Both users' INFY rows update; the unknown symbol is a no-op.
	count, err := ms.UpdatePrices(ctx, map[string]decimal.Decimal{
		"INFY":    d(1550),
		"UNKNOWN": d(10),
	})
	if err != nil {
		t.Fatalf("update prices failed: %v", err)
	}
	if count != 2 {
		t.Errorf("updated = %d, want 2", count)
	}

	p1, _ := ms.GetPosition(ctx, "user1", "INFY")
	p2, _ := ms.GetPosition(ctx, "user2", "INFY")
	if !p1.CurrentPrice.Equal(d(1550)) || !p2.CurrentPrice.Equal(d(1550)) {
		t.Errorf("prices = %s/%s, want 1550", p1.CurrentPrice, p2.CurrentPrice)
	}

	itc, _ := ms.GetPosition(ctx, "user1", "ITC")
	if !itc.CurrentPrice.Equal(d(445)) {
		t.Errorf("unrelated symbol moved: %s", itc.CurrentPrice)
	}
}

func TestMemoryStore_Snapshot(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	acc := seedAccount(t, ms, "user1", 100000)

	if err := ms.CommitTrade(ctx, buyCommit(acc, "SBIN", 10, 830)); err != nil {
		t.Fatal(err)
	}

	got, positions, err := ms.Snapshot(ctx, "user1")
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if !got.Cash.Equal(d(91700)) {
		t.Errorf("cash = %s, want 91700", got.Cash)
	}
	if len(positions) != 1 || positions[0].Symbol != "SBIN" {
		t.Fatalf("unexpected positions: %+v", positions)
	}
	// Derived fields are populated on read.
	if !positions[0].MarketValue.Equal(d(8300)) {
		t.Errorf("market value = %s, want 8300", positions[0].MarketValue)
	}

	if _, _, err := ms.Snapshot(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_OrdersNewestFirst(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	acc := seedAccount(t, ms, "user1", 100000)

	for i, sym := range []string{"A", "B", "C"} {
		c := buyCommit(acc, sym, int64(i+1), 10)
		if err := ms.CommitTrade(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	orders, _ := ms.GetOrdersByUser(ctx, "user1")
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}
	if orders[0].Symbol != "C" || orders[2].Symbol != "A" {
		t.Errorf("orders not newest first: %s, %s, %s",
			orders[0].Symbol, orders[1].Symbol, orders[2].Symbol)
	}
}
