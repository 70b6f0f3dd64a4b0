package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis
// read-through cache for accounts and position lists. Writes go to the
// primary store and invalidate the cache; reads check Redis first then
// fall back to the primary.
//
// CommitTrade and Snapshot always hit the primary: trade execution and
// portfolio summaries must see committed state, not a cache.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write paths (write to primary, invalidate cache) ---

func (s *CachedStore) CreateAccount(ctx context.Context, acc *model.Account) error {
	if err := s.primary.CreateAccount(ctx, acc); err != nil {
		return err
	}
	s.cacheAccount(ctx, acc)
	return nil
}

func (s *CachedStore) CommitTrade(ctx context.Context, commit TradeCommit) error {
	if err := s.primary.CommitTrade(ctx, commit); err != nil {
		return err
	}
	// Invalidate; next read re-populates from the primary.
	s.rdb.Del(ctx, accountKey(commit.Account.UserID), positionsKey(commit.Account.UserID))
	return nil
}

func (s *CachedStore) UpdatePrices(ctx context.Context, updates map[string]decimal.Decimal) (int, error) {
	count, err := s.primary.UpdatePrices(ctx, updates)
	if err != nil {
		return count, err
	}

	// Mark prices changed for an unknown set of users; drop every
	// cached position list.
	iter := s.rdb.Scan(ctx, 0, positionsKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		s.rdb.Del(ctx, iter.Val())
	}
	return count, nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(userID)).Bytes()
	if err == nil {
		var acc model.Account
		if json.Unmarshal(data, &acc) == nil {
			return &acc, nil
		}
	}

	acc, err := s.primary.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cacheAccount(ctx, acc)
	return acc, nil
}

func (s *CachedStore) GetUserPositions(ctx context.Context, userID string) ([]model.Position, error) {
	data, err := s.rdb.Get(ctx, positionsKey(userID)).Bytes()
	if err == nil {
		var positions []model.Position
		if json.Unmarshal(data, &positions) == nil {
			return positions, nil
		}
	}

	positions, err := s.primary.GetUserPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(positions); err == nil {
		s.rdb.Set(ctx, positionsKey(userID), data, s.ttl)
	}
	return positions, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetPosition(ctx context.Context, userID, symbol string) (*model.Position, error) {
	return s.primary.GetPosition(ctx, userID, symbol)
}

func (s *CachedStore) Snapshot(ctx context.Context, userID string) (*model.Account, []model.Position, error) {
	return s.primary.Snapshot(ctx, userID)
}

func (s *CachedStore) GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	return s.primary.GetOrdersByUser(ctx, userID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheAccount(ctx context.Context, acc *model.Account) {
	if data, err := json.Marshal(acc); err == nil {
		s.rdb.Set(ctx, accountKey(acc.UserID), data, s.ttl)
	}
}

func accountKey(uid string) string   { return fmt.Sprintf("account:%s", uid) }
func positionsKey(uid string) string { return fmt.Sprintf("positions:%s", uid) }
