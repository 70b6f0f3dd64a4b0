// Package ledger implements the pure portfolio arithmetic of the
// trading engine: order validation, weighted-average cost basis on
// buys, proportional cost-basis reduction and realized P&L on sells,
// and the account cash/investment bookkeeping.
//
// Everything here is side-effect free. Functions take current state as
// arguments and return new values; persistence and locking belong to
// the engine and store layers. All monetary values use
// shopspring/decimal, never float64 for money.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/model"
)

// ValidateOrder checks a proposed order against static constraints.
// For buys it also checks cash sufficiency, since the required amount
// is computable without reading the position. Sell-side share
// sufficiency is checked by ApplySell, which needs the locked position.
func ValidateOrder(side model.TradeSide, quantity int64, price, cash decimal.Decimal) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidPrice
	}
	if side == model.SideBuy {
		required := price.Mul(decimal.NewFromInt(quantity))
		if required.GreaterThan(cash) {
			return &InsufficientFundsError{
				Required:  model.RoundMoney(required),
				Available: cash,
			}
		}
	}
	return nil
}

// ApplyBuy folds a buy of quantity shares at price into pos and returns
// the new position value. pos == nil opens a fresh position.
//
// The average price is a true weighted average re-derived from total
// cost and total shares on every buy, not a chained moving average, so
// rounding error never compounds across buys:
//
//	newCostBasis = costBasis + quantity*price
//	newAvgPrice  = newCostBasis / newQuantity
//
// The trade price becomes the position's mark price.
func ApplyBuy(pos *model.Position, userID, symbol string, quantity int64, price decimal.Decimal) model.Position {
	tradeCost := model.RoundMoney(price.Mul(decimal.NewFromInt(quantity)))

	next := model.Position{
		UserID:       userID,
		Symbol:       symbol,
		Quantity:     quantity,
		CostBasis:    tradeCost,
		CurrentPrice: price,
	}
	if pos != nil {
		next.Quantity = pos.Quantity + quantity
		next.CostBasis = model.RoundMoney(pos.CostBasis.Add(tradeCost))
	}
	next.AveragePrice = next.CostBasis.Div(decimal.NewFromInt(next.Quantity))
	next.Derive()
	return next
}

// SellOutcome is the result of applying a sell to a position.
type SellOutcome struct {
	// Remaining is the position after the sell; meaningless when
	// Closed is true (the row is deleted, not zeroed).
	Remaining model.Position

	// Closed reports that the sell consumed the entire position.
	Closed bool

	// SoldCostBasis is the cost basis released by the sell:
	// averagePrice * quantity.
	SoldCostBasis decimal.Decimal

	// RealizedPnL is proceeds minus SoldCostBasis.
	RealizedPnL decimal.Decimal
}

// ApplySell reduces pos by quantity shares sold at price.
//
// Under the average-cost method a partial sell leaves the average
// price unchanged: quantity and cost basis shrink proportionally, so
// the average of the remaining shares is identical to before. Only a
// buy ever moves the average.
func ApplySell(pos *model.Position, quantity int64, price decimal.Decimal) (SellOutcome, error) {
	if pos == nil {
		return SellOutcome{}, ErrNoSuchPosition
	}
	if quantity > pos.Quantity {
		return SellOutcome{}, &InsufficientSharesError{Requested: quantity, Held: pos.Quantity}
	}

	proceeds := model.RoundMoney(price.Mul(decimal.NewFromInt(quantity)))
	soldCost := model.RoundMoney(pos.AveragePrice.Mul(decimal.NewFromInt(quantity)))

	remainingQty := pos.Quantity - quantity
	if remainingQty == 0 {
		// Release the full stored cost basis so no division residue
		// is left behind in totalInvestment.
		soldCost = pos.CostBasis
	}

	out := SellOutcome{
		SoldCostBasis: soldCost,
		RealizedPnL:   proceeds.Sub(soldCost),
	}

	if remainingQty == 0 {
		out.Closed = true
		return out, nil
	}

	out.Remaining = model.Position{
		UserID:       pos.UserID,
		Symbol:       pos.Symbol,
		Quantity:     remainingQty,
		AveragePrice: pos.AveragePrice,
		CurrentPrice: price,
		CostBasis:    model.RoundMoney(pos.CostBasis.Sub(soldCost)),
	}
	out.Remaining.Derive()
	return out, nil
}

// DebitBuy returns the account after paying for a buy: cash down by the
// trade amount, investment up by the same amount. Money moves between
// cash and cost basis; nothing is created or destroyed.
func DebitBuy(acc model.Account, totalAmount decimal.Decimal) model.Account {
	acc.Cash = model.RoundMoney(acc.Cash.Sub(totalAmount))
	acc.TotalInvestment = model.RoundMoney(acc.TotalInvestment.Add(totalAmount))
	return acc
}

// CreditSell returns the account after a sell: cash up by the proceeds,
// investment down by the released cost basis, realized P&L accumulated.
func CreditSell(acc model.Account, totalAmount, soldCostBasis, realizedPnL decimal.Decimal) model.Account {
	acc.Cash = model.RoundMoney(acc.Cash.Add(totalAmount))
	acc.TotalInvestment = model.RoundMoney(acc.TotalInvestment.Sub(soldCostBasis))
	acc.TotalRealizedPnL = model.RoundMoney(acc.TotalRealizedPnL.Add(realizedPnL))
	return acc
}
