package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

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
const DriverName = "sqlite"

// Store implements store.Store on SQLite using sqlx over modernc.org/sqlite.
//
// The pool is limited to one connection, which serializes writers and keeps
// a ":memory:" database alive for the lifetime of the store.
type Store struct {
	db *sqlx.DB
	accounts
}

// New wraps an existing handle. The caller is responsible for limiting it
// to a single open connection.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:       db,
		accounts: accounts{q: db},
	}
}

// Open opens the database at dsn, e.g. "tokenledger.db" or
// "file:tokenledger.db?_pragma=busy_timeout(5000)".
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("tokenledger/sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	return New(db), nil
}

// DB returns the underlying handle for direct access.
func (s *Store) DB() *sqlx.DB { return s.db }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn inside a transaction. fn must only use tx; calling the
// Store directly from fn blocks on the single connection.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx account.Store) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tokenledger/sqlite: begin: %w", classify(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, accounts{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", tokenledger.ErrTransactionFailed, err)
	}
	return nil
}

// ==================== Account Store ====================

const accountColumns = `id, handle, balance, created_at, updated_at`

// Timestamps are stored as RFC 3339 text.
type accountModel struct {
	ID        string `db:"id"`
	Handle    string `db:"handle"`
	Balance   int64  `db:"balance"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("tokenledger/sqlite: account %s: %w", m.Handle, err)
	}
	created, err := time.Parse(time.RFC3339Nano, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("tokenledger/sqlite: account %s created_at: %w", m.Handle, err)
	}
	updated, err := time.Parse(time.RFC3339Nano, m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("tokenledger/sqlite: account %s updated_at: %w", m.Handle, err)
	}

	a := &account.Account{
		ID:      accountID,
		Handle:  m.Handle,
		Balance: m.Balance,
	}
	a.CreatedAt = created.UTC()
	a.UpdatedAt = updated.UTC()
	return a, nil
}

type accounts struct {
	q sqlx.ExtContext
}

func (a accounts) GetAccount(ctx context.Context, handle string) (*account.Account, error) {
	var m accountModel
	err := sqlx.GetContext(ctx, a.q, &m,
		`SELECT `+accountColumns+` FROM tokenledger_accounts WHERE handle = ?`, handle)
	if err != nil {
		if isNoRows(err) {
			return nil, tokenledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("tokenledger/sqlite: get account: %w", classify(err))
	}
	return fromAccountModel(&m)
}

func (a accounts) GetOrCreateAccount(ctx context.Context, handle string) (*account.Account, bool, error) {
	ts := now()
	res, err := a.q.ExecContext(ctx,
		`INSERT INTO tokenledger_accounts (`+accountColumns+`)
VALUES (?, ?, 0, ?, ?)
ON CONFLICT (handle) DO NOTHING`,
		id.NewAccountID().String(), handle, ts, ts)
	if err != nil {
		return nil, false, fmt.Errorf("tokenledger/sqlite: create account: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("tokenledger/sqlite: create account: %w", err)
	}

	acct, err := a.GetAccount(ctx, handle)
	if err != nil {
		return nil, false, err
	}
	return acct, n == 1, nil
}

// ApplyDelta increments the balance in one statement. SQLite silently
// switches to REAL arithmetic past the int64 range, so the update is
// guarded and a skipped update reports ErrBalanceOverflow.
func (a accounts) ApplyDelta(ctx context.Context, handle string, delta int64) (*account.Account, error) {
	ts := now()
	op, bound := ledgerstore.DeltaBound(delta)
	var m accountModel
	err := sqlx.GetContext(ctx, a.q, &m,
		`INSERT INTO tokenledger_accounts (`+accountColumns+`)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (handle) DO UPDATE
SET balance = tokenledger_accounts.balance + excluded.balance,
    updated_at = excluded.updated_at
WHERE tokenledger_accounts.balance `+op+` ?
RETURNING `+accountColumns,
		id.NewAccountID().String(), handle, delta, ts, ts, bound)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", tokenledger.ErrBalanceOverflow, handle)
		}
		return nil, fmt.Errorf("tokenledger/sqlite: apply delta: %w", classify(err))
	}
	return fromAccountModel(&m)
}

// ==================== Helpers ====================

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// classify tags lock contention (SQLITE_BUSY, SQLITE_LOCKED) as retryable.
func classify(err error) error {
	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", tokenledger.ErrTransactionFailed, err)
		}
	}
	return err
}
