package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of
// truth. All monetary values are stored as NUMERIC for exact decimal
// precision. A trade's three writes run in one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables if they do not exist. The orders
// table is append-only: no update or delete statement in this package
// ever touches it.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			user_id            TEXT PRIMARY KEY,
			cash               NUMERIC NOT NULL CHECK (cash >= 0),
			total_investment   NUMERIC NOT NULL DEFAULT 0,
			total_realized_pnl NUMERIC NOT NULL DEFAULT 0,
			created_at         TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS positions (
			user_id       TEXT NOT NULL REFERENCES accounts(user_id),
			symbol        TEXT NOT NULL,
			quantity      BIGINT NOT NULL CHECK (quantity > 0),
			average_price NUMERIC NOT NULL,
			current_price NUMERIC NOT NULL,
			cost_basis    NUMERIC NOT NULL,
			PRIMARY KEY (user_id, symbol)
		);
		CREATE TABLE IF NOT EXISTS orders (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			symbol       TEXT NOT NULL,
			side         TEXT NOT NULL,
			quantity     BIGINT NOT NULL,
			price        NUMERIC NOT NULL,
			total_amount NUMERIC NOT NULL,
			status       TEXT NOT NULL,
			realized_pnl NUMERIC,
			executed_at  TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS orders_user_executed_idx
			ON orders (user_id, executed_at DESC);
	`)
	return err
}

func (s *PostgresStore) CreateAccount(ctx context.Context, acc *model.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (user_id, cash, total_investment, total_realized_pnl, created_at)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5)`,
		acc.UserID,
		acc.Cash.String(), acc.TotalInvestment.String(), acc.TotalRealizedPnL.String(),
		acc.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return ErrAccountExists
	}
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	return getAccount(ctx, s.pool, userID)
}

// querier covers both pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getAccount(ctx context.Context, q querier, userID string) (*model.Account, error) {
	var acc model.Account
	var cash, invested, realized string

	err := q.QueryRow(ctx,
		`SELECT user_id, cash::TEXT, total_investment::TEXT, total_realized_pnl::TEXT, created_at
		 FROM accounts WHERE user_id = $1`, userID).
		Scan(&acc.UserID, &cash, &invested, &realized, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", userID, err)
	}

	acc.Cash, _ = decimal.NewFromString(cash)
	acc.TotalInvestment, _ = decimal.NewFromString(invested)
	acc.TotalRealizedPnL, _ = decimal.NewFromString(realized)

	return &acc, nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, userID, symbol string) (*model.Position, error) {
	var p model.Position
	var avg, current, cost string

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, symbol, quantity,
		        average_price::TEXT, current_price::TEXT, cost_basis::TEXT
		 FROM positions WHERE user_id = $1 AND symbol = $2`, userID, symbol).
		Scan(&p.UserID, &p.Symbol, &p.Quantity, &avg, &current, &cost)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s/%s: %w", userID, symbol, err)
	}

	p.AveragePrice, _ = decimal.NewFromString(avg)
	p.CurrentPrice, _ = decimal.NewFromString(current)
	p.CostBasis, _ = decimal.NewFromString(cost)
	p.Derive()

	return &p, nil
}

func (s *PostgresStore) GetUserPositions(ctx context.Context, userID string) ([]model.Position, error) {
	return getUserPositions(ctx, s.pool, userID)
}

func getUserPositions(ctx context.Context, q querier, userID string) ([]model.Position, error) {
	rows, err := q.Query(ctx,
		`SELECT user_id, symbol, quantity,
		        average_price::TEXT, current_price::TEXT, cost_basis::TEXT
		 FROM positions WHERE user_id = $1 ORDER BY symbol`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var p model.Position
		var avg, current, cost string
		if err := rows.Scan(&p.UserID, &p.Symbol, &p.Quantity, &avg, &current, &cost); err != nil {
			return nil, err
		}
		p.AveragePrice, _ = decimal.NewFromString(avg)
		p.CurrentPrice, _ = decimal.NewFromString(current)
		p.CostBasis, _ = decimal.NewFromString(cost)
		p.Derive()
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Snapshot reads the account and positions inside one repeatable-read
// transaction so the summary never mixes states before and after a
// concurrent trade.
func (s *PostgresStore) Snapshot(ctx context.Context, userID string) (*model.Account, []model.Position, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	acc, err := getAccount(ctx, tx, userID)
	if err != nil {
		return nil, nil, err
	}
	positions, err := getUserPositions(ctx, tx, userID)
	if err != nil {
		return nil, nil, err
	}
	return acc, positions, tx.Commit(ctx)
}

// CommitTrade runs account update, position upsert/delete, and order
// append in one transaction: all three writes or none.
func (s *PostgresStore) CommitTrade(ctx context.Context, commit TradeCommit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin trade commit: %w", err)
	}
	defer tx.Rollback(ctx)

	acc := commit.Account
	tag, err := tx.Exec(ctx,
		`UPDATE accounts
		 SET cash = $2::NUMERIC, total_investment = $3::NUMERIC, total_realized_pnl = $4::NUMERIC
		 WHERE user_id = $1`,
		acc.UserID, acc.Cash.String(), acc.TotalInvestment.String(), acc.TotalRealizedPnL.String(),
	)
	if err != nil {
		return fmt.Errorf("update account %s: %w", acc.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if p := commit.Position; p != nil {
		_, err = tx.Exec(ctx,
			`INSERT INTO positions (user_id, symbol, quantity, average_price, current_price, cost_basis)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC)
			 ON CONFLICT (user_id, symbol) DO UPDATE
			 SET quantity = EXCLUDED.quantity,
			     average_price = EXCLUDED.average_price,
			     current_price = EXCLUDED.current_price,
			     cost_basis = EXCLUDED.cost_basis`,
			p.UserID, p.Symbol, p.Quantity,
			p.AveragePrice.String(), p.CurrentPrice.String(), p.CostBasis.String(),
		)
		if err != nil {
			return fmt.Errorf("upsert position %s/%s: %w", p.UserID, p.Symbol, err)
		}
	} else {
		_, err = tx.Exec(ctx,
			`DELETE FROM positions WHERE user_id = $1 AND symbol = $2`,
			acc.UserID, commit.Symbol,
		)
		if err != nil {
			return fmt.Errorf("delete position %s/%s: %w", acc.UserID, commit.Symbol, err)
		}
	}

	o := commit.Order
	var realized *string
	if o.RealizedPnL != nil {
		v := o.RealizedPnL.String()
		realized = &v
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, user_id, symbol, side, quantity, price, total_amount, status, realized_pnl, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8, $9::NUMERIC, $10)`,
		o.ID, o.UserID, o.Symbol, string(o.Side), o.Quantity,
		o.Price.String(), o.TotalAmount.String(), string(o.Status),
		realized, o.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) UpdatePrices(ctx context.Context, updates map[string]decimal.Decimal) (int, error) {
	count := 0
	for symbol, price := range updates {
		tag, err := s.pool.Exec(ctx,
			`UPDATE positions SET current_price = $2::NUMERIC WHERE symbol = $1`,
			symbol, price.String(),
		)
		if err != nil {
			return count, fmt.Errorf("update price %s: %w", symbol, err)
		}
		count += int(tag.RowsAffected())
	}
	return count, nil
}

func (s *PostgresStore) GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, symbol, side, quantity,
		        price::TEXT, total_amount::TEXT, status, realized_pnl::TEXT, executed_at
		 FROM orders WHERE user_id = $1 ORDER BY executed_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var side, status string
		var price, total string
		var realized *string

		if err := rows.Scan(&o.ID, &o.UserID, &o.Symbol, &side, &o.Quantity,
			&price, &total, &status, &realized, &o.ExecutedAt); err != nil {
			return nil, err
		}

		o.Side = model.TradeSide(side)
		o.Status = model.OrderStatus(status)
		o.Price, _ = decimal.NewFromString(price)
		o.TotalAmount, _ = decimal.NewFromString(total)
		if realized != nil {
			pnl, _ := decimal.NewFromString(*realized)
			o.RealizedPnL = &pnl
		}

		orders = append(orders, o)
	}
	return orders, rows.Err()
}
