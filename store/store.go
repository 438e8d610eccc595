// Package store defines the persistence contract for the token ledger.
//
// Backends live in sub-packages: memory, postgres, sqlite and mongo.
package store

import (
	"context"
	"math"

	"github.com/xraph/tokenledger/account"
)

// Store is the unified storage interface for the ledger.
type Store interface {
	// Account methods
	GetAccount(ctx context.Context, handle string) (*account.Account, error)
	GetOrCreateAccount(ctx context.Context, handle string) (*account.Account, bool, error)
	ApplyDelta(ctx context.Context, handle string, delta int64) (*account.Account, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Transactional is implemented by stores that can run several account
// operations as one unit. Inside fn, GetOrCreateAccount locks the row it
// returns until the transaction ends, so a balance read there stays valid
// for the rest of fn. A nil return from fn commits; any error rolls back
// and is returned unchanged.
type Transactional interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx account.Store) error) error
}

var _ account.Store = (Store)(nil)

// DeltaBound returns the comparison ("<=" or ">=") and the bound a stored
// balance must satisfy before delta can be added without leaving the int64
// range. SQL backends put it in the WHERE clause of the increment.
func DeltaBound(delta int64) (op string, bound int64) {
	if delta >= 0 {
		return "<=", math.MaxInt64 - delta
	}
	return ">=", math.MinInt64 - delta
}
