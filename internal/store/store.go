// Package store defines the persistence interface for the trading
// engine. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/model"
)

var (
	// ErrNotFound is returned when an account or position does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrAccountExists is returned when creating an account for a user
	// that already has one.
	ErrAccountExists = errors.New("store: account already exists")
)

// TradeCommit is the atomic write unit of one executed trade: the new
// account state, the new position state (or its deletion), and the
// immutable order record. A Store applies all three or none.
type TradeCommit struct {
	Account model.Account

	// Symbol identifies the position row being written or deleted.
	Symbol string

	// Position is the new position value; nil means the (user, symbol)
	// row is deleted (the position was fully sold).
	Position *model.Position

	Order model.Order
}

// Store is the persistence interface. PostgreSQL is the source of
// truth; Redis provides a read-through cache layer.
type Store interface {
	// --- Accounts ---

	// CreateAccount persists a new account. ErrAccountExists if the
	// user already has one.
	CreateAccount(ctx context.Context, acc *model.Account) error

	// GetAccount retrieves a user's account. ErrNotFound if absent.
	GetAccount(ctx context.Context, userID string) (*model.Account, error)

	// --- Positions ---

	// GetPosition retrieves one (user, symbol) position. ErrNotFound
	// if the user holds no shares of the symbol.
	GetPosition(ctx context.Context, userID, symbol string) (*model.Position, error)

	// GetUserPositions returns all open positions for a user.
	GetUserPositions(ctx context.Context, userID string) ([]model.Position, error)

	// Snapshot returns the account and all positions for a user as one
	// consistent read.
	Snapshot(ctx context.Context, userID string) (*model.Account, []model.Position, error)

	// --- Trade commit ---

	// CommitTrade applies a trade's three linked writes atomically:
	// account update, position upsert or delete, order append. On
	// error, none of the writes are visible.
	CommitTrade(ctx context.Context, commit TradeCommit) error

	// --- Price marks ---

	// UpdatePrices sets the current mark price on every position
	// holding each symbol, across all users, and returns the number of
	// position rows touched. Symbols nobody holds are no-ops.
	UpdatePrices(ctx context.Context, updates map[string]decimal.Decimal) (int, error)

	// --- Immutable order journal ---

	// GetOrdersByUser returns a user's order history, newest first.
	GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error)
}
