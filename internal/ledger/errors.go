package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity is returned when an order's quantity is <= 0.
	ErrInvalidQuantity = errors.New("ledger: quantity must be positive")

	// ErrInvalidPrice is returned when an order's price is <= 0.
	ErrInvalidPrice = errors.New("ledger: price must be positive")

	// ErrNoSuchPosition is returned when selling a symbol the user holds
	// no position in. The engine is long-only; a sell never opens a
	// short.
	ErrNoSuchPosition = errors.New("ledger: no open position for symbol")
)

// InsufficientFundsError reports a buy whose total cost exceeds the
// account's cash, with the amounts the caller needs for a precise
// message.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("ledger: insufficient funds: required %s, available %s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

// InsufficientSharesError reports a sell for more shares than the
// position holds.
type InsufficientSharesError struct {
	Requested int64
	Held      int64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("ledger: insufficient shares: requested %d, held %d",
		e.Requested, e.Held)
}
