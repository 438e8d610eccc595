package account

import (
	"math"

	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/types"
)

// Account is one participant's token balance.
// Accounts are created lazily on first reference and never deleted.
type Account struct {
	types.Entity
	ID      id.AccountID `json:"id"`
	Handle  string       `json:"handle"`
	Balance int64        `json:"balance"`
}

// New returns a zero-balance account for handle with a fresh ID.
func New(handle string) *Account {
	return &Account{
		Entity: types.NewEntity(),
		ID:     id.NewAccountID(),
		Handle: handle,
	}
}

// AddBalance returns balance+delta and false when the sum leaves the int64
// range.
func AddBalance(balance, delta int64) (int64, bool) {
	if delta > 0 && balance > math.MaxInt64-delta {
		return balance, false
	}
	if delta < 0 && balance < math.MinInt64-delta {
		return balance, false
	}
	return balance + delta, true
}
