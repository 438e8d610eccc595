package account

import "context"

// Store persists accounts keyed by handle.
type Store interface {
	// GetAccount returns the account for handle or a not-found error.
	GetAccount(ctx context.Context, handle string) (*Account, error)

	// GetOrCreateAccount returns the account for handle, inserting a
	// zero-balance row first when none exists. created reports whether
	// this call inserted it. Concurrent callers converge on one row.
	GetOrCreateAccount(ctx context.Context, handle string) (acct *Account, created bool, err error)

	// ApplyDelta adds delta to the balance of handle as a single atomic
	// increment, creating the account first when needed. It does not
	// check the sign of the result.
	ApplyDelta(ctx context.Context, handle string, delta int64) (*Account, error)
}
