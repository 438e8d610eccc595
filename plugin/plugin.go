// Package plugin provides an extensible plugin system for the token ledger.
// Plugins can hook into lifecycle and balance events to extend functionality.
package plugin

import (
	"context"

	"github.com/xraph/tokenledger/account"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountCreated is called when an account row is inserted.
type OnAccountCreated interface {
	Plugin
	OnAccountCreated(ctx context.Context, acct *account.Account) error
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnTokensMinted is called after an organizer credits tokens.
type OnTokensMinted interface {
	Plugin
	OnTokensMinted(ctx context.Context, op *account.Operation) error
}

// OnTokensBurned is called after an organizer debits tokens.
type OnTokensBurned interface {
	Plugin
	OnTokensBurned(ctx context.Context, op *account.Operation) error
}

// OnTokensTransferred is called after a participant-to-participant transfer.
type OnTokensTransferred interface {
	Plugin
	OnTokensTransferred(ctx context.Context, op *account.Operation) error
}

// OnBalanceAdjusted is called after a raw delta is applied outside a command.
type OnBalanceAdjusted interface {
	Plugin
	OnBalanceAdjusted(ctx context.Context, op *account.Operation) error
}

// ──────────────────────────────────────────────────
// Rejection hooks
// ──────────────────────────────────────────────────

// OnPermissionDenied is called when a non-organizer attempts a privileged action.
type OnPermissionDenied interface {
	Plugin
	OnPermissionDenied(ctx context.Context, actor string, kind account.OperationKind) error
}

// OnInsufficientBalance is called when a debit is rejected for lack of funds.
type OnInsufficientBalance interface {
	Plugin
	OnInsufficientBalance(ctx context.Context, kind account.OperationKind, handle string, balance, requested int64) error
}

// OnOperationFailed is called when a mutation fails in the store.
type OnOperationFailed interface {
	Plugin
	OnOperationFailed(ctx context.Context, kind account.OperationKind, err error) error
}
