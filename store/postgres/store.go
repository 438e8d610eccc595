package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/id"
	ledgerstore "github.com/xraph/tokenledger/store"
)

// compile-time interface checks
var (
	_ ledgerstore.Store         = (*Store)(nil)
	_ ledgerstore.Transactional = (*Store)(nil)
)

// DriverName is the database/sql driver used by Open.
const DriverName = "postgres"

// Store implements store.Store on PostgreSQL using sqlx over lib/pq.
type Store struct {
	db *sqlx.DB
	accounts
}

// New wraps an existing connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:       db,
		accounts: accounts{q: db},
	}
}

// Open connects to dsn (a postgres:// URL or key=value string).
// It does not verify the connection; call Ping for that.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("tokenledger/postgres: open: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying pool for direct access.
func (s *Store) DB() *sqlx.DB { return s.db }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn inside a database transaction. Rows returned by
// tx.GetOrCreateAccount are locked FOR UPDATE until commit or rollback.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx account.Store) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tokenledger/postgres: begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, accounts{q: tx, forUpdate: true}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", tokenledger.ErrTransactionFailed, classify(err))
	}
	return nil
}

// ==================== Account Store ====================

const accountColumns = `id, handle, balance, created_at, updated_at`

type accountModel struct {
	ID        string    `db:"id"`
	Handle    string    `db:"handle"`
	Balance   int64     `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("tokenledger/postgres: account %s: %w", m.Handle, err)
	}
	a := &account.Account{
		ID:      accountID,
		Handle:  m.Handle,
		Balance: m.Balance,
	}
	a.CreatedAt = m.CreatedAt.UTC()
	a.UpdatedAt = m.UpdatedAt.UTC()
	return a, nil
}

// accounts runs account queries against either the pool or a transaction.
type accounts struct {
	q         sqlx.ExtContext
	forUpdate bool
}

func (a accounts) GetAccount(ctx context.Context, handle string) (*account.Account, error) {
	var m accountModel
	err := sqlx.GetContext(ctx, a.q, &m,
		`SELECT `+accountColumns+` FROM tokenledger_accounts WHERE handle = $1`, handle)
	if err != nil {
		if isNoRows(err) {
			return nil, tokenledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("tokenledger/postgres: get account: %w", classify(err))
	}
	return fromAccountModel(&m)
}

func (a accounts) GetOrCreateAccount(ctx context.Context, handle string) (*account.Account, bool, error) {
	ts := now()
	res, err := a.q.ExecContext(ctx,
		`INSERT INTO tokenledger_accounts (`+accountColumns+`)
VALUES ($1, $2, 0, $3, $3)
ON CONFLICT (handle) DO NOTHING`,
		id.NewAccountID().String(), handle, ts)
	if err != nil {
		return nil, false, fmt.Errorf("tokenledger/postgres: create account: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("tokenledger/postgres: create account: %w", err)
	}

	query := `SELECT ` + accountColumns + ` FROM tokenledger_accounts WHERE handle = $1`
	if a.forUpdate {
		query += ` FOR UPDATE`
	}

	var m accountModel
	if err := sqlx.GetContext(ctx, a.q, &m, query, handle); err != nil {
		return nil, false, fmt.Errorf("tokenledger/postgres: load account: %w", classify(err))
	}
	acct, err := fromAccountModel(&m)
	if err != nil {
		return nil, false, err
	}
	return acct, n == 1, nil
}

// ApplyDelta increments the balance in one statement. The conflict update
// only fires while the result stays inside BIGINT; otherwise no row comes
// back and ErrBalanceOverflow is returned.
func (a accounts) ApplyDelta(ctx context.Context, handle string, delta int64) (*account.Account, error) {
	ts := now()
	op, bound := ledgerstore.DeltaBound(delta)
	var m accountModel
	err := sqlx.GetContext(ctx, a.q, &m,
		`INSERT INTO tokenledger_accounts (`+accountColumns+`)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (handle) DO UPDATE
SET balance = tokenledger_accounts.balance + EXCLUDED.balance,
    updated_at = EXCLUDED.updated_at
WHERE tokenledger_accounts.balance `+op+` $5
RETURNING `+accountColumns,
		id.NewAccountID().String(), handle, delta, ts, bound)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", tokenledger.ErrBalanceOverflow, handle)
		}
		return nil, fmt.Errorf("tokenledger/postgres: apply delta: %w", classify(err))
	}
	return fromAccountModel(&m)
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// classify tags serialization failures and deadlocks as retryable and a
// BIGINT out-of-range as a balance overflow.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %v", tokenledger.ErrTransactionFailed, err)
		case "22003":
			return fmt.Errorf("%w: %v", tokenledger.ErrBalanceOverflow, err)
		}
	}
	return err
}
