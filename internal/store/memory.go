package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]*model.Account
	positions map[string]map[string]*model.Position // userID → symbol → position
	orders    []model.Order
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]*model.Account),
		positions: make(map[string]map[string]*model.Position),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, acc *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acc.UserID]; ok {
		return ErrAccountExists
	}
	cp := *acc
	s.accounts[acc.UserID] = &cp
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, userID string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.accountLocked(userID)
}

// accountLocked returns a copy of the account; callers hold s.mu.
func (s *MemoryStore) accountLocked(userID string) (*model.Account, error) {
	acc, ok := s.accounts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, userID, symbol string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[userID][symbol]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *pos
	cp.Derive()
	return &cp, nil
}

func (s *MemoryStore) GetUserPositions(_ context.Context, userID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.userPositionsLocked(userID), nil
}

// userPositionsLocked copies a user's positions sorted by symbol;
// callers hold s.mu.
func (s *MemoryStore) userPositionsLocked(userID string) []model.Position {
	var out []model.Position
	for _, pos := range s.positions[userID] {
		cp := *pos
		cp.Derive()
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (s *MemoryStore) Snapshot(_ context.Context, userID string) (*model.Account, []model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, err := s.accountLocked(userID)
	if err != nil {
		return nil, nil, err
	}
	return acc, s.userPositionsLocked(userID), nil
}

// CommitTrade applies all three writes inside one critical section, so
// no reader ever observes a partially applied trade.
func (s *MemoryStore) CommitTrade(_ context.Context, commit TradeCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[commit.Account.UserID]; !ok {
		return ErrNotFound
	}

	acc := commit.Account
	s.accounts[acc.UserID] = &acc

	if commit.Position != nil {
		pos := *commit.Position
		if s.positions[acc.UserID] == nil {
			s.positions[acc.UserID] = make(map[string]*model.Position)
		}
		s.positions[acc.UserID][commit.Symbol] = &pos
	} else {
		delete(s.positions[acc.UserID], commit.Symbol)
	}

	s.orders = append(s.orders, commit.Order)
	return nil
}

func (s *MemoryStore) UpdatePrices(_ context.Context, updates map[string]decimal.Decimal) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, bySymbol := range s.positions {
		for symbol, pos := range bySymbol {
			if price, ok := updates[symbol]; ok {
				pos.CurrentPrice = price
				count++
			}
		}
	}
	return count, nil
}

func (s *MemoryStore) GetOrdersByUser(_ context.Context, userID string) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Order
	for i := len(s.orders) - 1; i >= 0; i-- {
		if s.orders[i].UserID == userID {
			out = append(out, s.orders[i])
		}
	}
	return out, nil
}
