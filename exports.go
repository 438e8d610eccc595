package tokenledger

import (
	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/types"
)

// Re-export common types for convenience so users don't have to import
// the account and types packages.

// Account is re-exported from the account package.
type Account = account.Account

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-exported helpers.
var (
	NewEntity          = types.NewEntity
	ParseAmount        = types.ParseAmount
	ValidHandle        = account.ValidHandle
	HandleFromUsername = account.HandleFromUsername
)
