package tokenledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/plugin"
	"github.com/xraph/tokenledger/store"
)

// Operation is re-exported from the account package.
type Operation = account.Operation

// Ledger is the token balance engine. It resolves accounts, applies
// balance changes and enforces the organizer allow-list for mint and burn.
type Ledger struct {
	store      store.Store
	plugins    *plugin.Registry
	logger     *slog.Logger
	organizers *Organizers

	// Configuration
	atomicTransfers bool

	stopOnce sync.Once
	stopErr  error
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:           s,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		organizers:      NewOrganizers(DefaultOrganizers...),
		atomicTransfers: true,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithOrganizers replaces the default organizer allow-list.
func WithOrganizers(handles ...string) Option {
	return func(l *Ledger) {
		l.organizers = NewOrganizers(handles...)
	}
}

// WithAtomicTransfers toggles transactional transfers and burns on stores
// that implement store.Transactional. Enabled by default.
func WithAtomicTransfers(enabled bool) Option {
	return func(l *Ledger) {
		l.atomicTransfers = enabled
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	_, atomic := l.transactional()
	l.logger.Info("ledger started",
		"organizers", l.organizers.Len(),
		"atomic_transfers", atomic,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store. It is safe to call more
// than once.
func (l *Ledger) Stop() error {
	l.stopOnce.Do(func() {
		l.plugins.EmitShutdown(context.Background())
		l.stopErr = l.store.Close()
	})
	return l.stopErr
}

// Ping checks store connectivity.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Organizers returns the organizer allow-list.
func (l *Ledger) Organizers() *Organizers { return l.organizers }

// IsOrganizer reports whether handle may mint and burn.
func (l *Ledger) IsOrganizer(handle string) bool {
	return l.organizers.Contains(handle)
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// Resolve returns the account for handle, creating it with a zero balance
// on first reference.
func (l *Ledger) Resolve(ctx context.Context, handle string) (*account.Account, error) {
	if err := validateHandle("handle", handle); err != nil {
		return nil, err
	}

	acct, created, err := l.store.GetOrCreateAccount(ctx, handle)
	if err != nil {
		return nil, err
	}
	if created {
		l.logger.Debug("account created", "handle", handle, "account_id", acct.ID.String())
		l.plugins.EmitAccountCreated(ctx, acct)
	}
	return acct, nil
}

// Balance returns the balance of handle. Unknown handles read as zero and
// are not created.
func (l *Ledger) Balance(ctx context.Context, handle string) (int64, error) {
	acct, err := l.store.GetAccount(ctx, handle)
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return acct.Balance, nil
}

// ApplyDelta adds delta to the balance of handle, creating the account if
// needed. The result is allowed to go negative but never past the int64
// range; such a delta returns ErrBalanceOverflow and changes nothing.
func (l *Ledger) ApplyDelta(ctx context.Context, handle string, delta int64) error {
	if _, err := l.Resolve(ctx, handle); err != nil {
		return err
	}

	var acct *account.Account
	err := l.mutate(ctx, func(ctx context.Context, s account.Store) error {
		var err error
		acct, err = credit(ctx, s, handle, delta)
		return err
	})
	if err != nil {
		return l.rejected(ctx, account.OperationAdjust, err)
	}

	op := account.NewOperation(account.OperationAdjust, "", delta)
	op.To = handle
	op.ToBalance = acct.Balance
	l.plugins.EmitBalanceAdjusted(ctx, op)
	return nil
}

// ──────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────

// Transfer moves amount tokens from one participant to another.
//
// The sender is resolved first. If the sender holds less than amount an
// *InsufficientBalanceError is returned and neither balance changes.
// Transferring to oneself is allowed and leaves the balance unchanged.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount int64) (*Operation, error) {
	if err := validateHandle("from", from); err != nil {
		return nil, err
	}
	if !account.ValidHandle(to) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHandle, to)
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := l.Resolve(ctx, from); err != nil {
		return nil, err
	}

	// Transactions take row locks in a fixed order so opposing transfers
	// cannot deadlock. Without a transaction the sender is checked before
	// the recipient is created.
	order := []string{from, to}
	_, atomic := l.transactional()
	if atomic && to < from {
		order = []string{to, from}
	}

	op := account.NewOperation(account.OperationTransfer, from, amount)
	op.From, op.To = from, to

	var created []*account.Account
	err := l.mutate(ctx, func(ctx context.Context, s account.Store) error {
		created = created[:0]
		for _, h := range order {
			acct, isNew, err := s.GetOrCreateAccount(ctx, h)
			if err != nil {
				return err
			}
			if isNew {
				created = append(created, acct)
			}
			if h == from && acct.Balance < amount {
				return &InsufficientBalanceError{Handle: from, Balance: acct.Balance, Requested: amount}
			}
			if h == to && from != to {
				if err := checkOverflow(acct, amount); err != nil {
					return err
				}
			}
			if from == to {
				break
			}
		}

		debited, err := s.ApplyDelta(ctx, from, -amount)
		if err != nil {
			return err
		}
		credited, err := s.ApplyDelta(ctx, to, amount)
		if err != nil {
			return err
		}
		op.FromBalance = debited.Balance
		op.ToBalance = credited.Balance
		if from == to {
			op.FromBalance = credited.Balance
		}
		return nil
	})
	if err != nil {
		return nil, l.rejected(ctx, account.OperationTransfer, err)
	}

	for _, a := range created {
		l.plugins.EmitAccountCreated(ctx, a)
	}

	l.logger.Info("tokens transferred",
		"operation_id", op.ID.String(),
		"from", from,
		"to", to,
		"amount", amount,
	)
	l.plugins.EmitTokensTransferred(ctx, op)
	return op, nil
}

// Mint credits amount tokens to target on behalf of an organizer.
func (l *Ledger) Mint(ctx context.Context, caller, target string, amount int64) (*Operation, error) {
	if err := l.Authorize(ctx, caller, account.OperationMint); err != nil {
		return nil, err
	}
	if !account.ValidHandle(target) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHandle, target)
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := l.Resolve(ctx, target); err != nil {
		return nil, err
	}
	var acct *account.Account
	err := l.mutate(ctx, func(ctx context.Context, s account.Store) error {
		var err error
		acct, err = credit(ctx, s, target, amount)
		return err
	})
	if err != nil {
		return nil, l.rejected(ctx, account.OperationMint, err)
	}

	op := account.NewOperation(account.OperationMint, caller, amount)
	op.To = target
	op.ToBalance = acct.Balance

	l.logger.Info("tokens minted",
		"operation_id", op.ID.String(),
		"organizer", caller,
		"to", target,
		"amount", amount,
	)
	l.plugins.EmitTokensMinted(ctx, op)
	return op, nil
}

// Burn debits amount tokens from target on behalf of an organizer. A debit
// larger than the balance returns an *InsufficientBalanceError carrying the
// current balance.
func (l *Ledger) Burn(ctx context.Context, caller, target string, amount int64) (*Operation, error) {
	if err := l.Authorize(ctx, caller, account.OperationBurn); err != nil {
		return nil, err
	}
	if !account.ValidHandle(target) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHandle, target)
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := l.Resolve(ctx, target); err != nil {
		return nil, err
	}

	op := account.NewOperation(account.OperationBurn, caller, amount)
	op.From = target

	err := l.mutate(ctx, func(ctx context.Context, s account.Store) error {
		acct, _, err := s.GetOrCreateAccount(ctx, target)
		if err != nil {
			return err
		}
		if acct.Balance < amount {
			return &InsufficientBalanceError{Handle: target, Balance: acct.Balance, Requested: amount}
		}
		debited, err := s.ApplyDelta(ctx, target, -amount)
		if err != nil {
			return err
		}
		op.FromBalance = debited.Balance
		return nil
	})
	if err != nil {
		return nil, l.rejected(ctx, account.OperationBurn, err)
	}

	l.logger.Info("tokens burned",
		"operation_id", op.ID.String(),
		"organizer", caller,
		"from", target,
		"amount", amount,
	)
	l.plugins.EmitTokensBurned(ctx, op)
	return op, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// Authorize returns ErrForbidden unless caller is an organizer. Denials are
// logged and reported to plugins.
func (l *Ledger) Authorize(ctx context.Context, caller string, kind account.OperationKind) error {
	if l.organizers.Contains(caller) {
		return nil
	}
	l.logger.Warn("permission denied", "caller", caller, "operation", string(kind))
	l.plugins.EmitPermissionDenied(ctx, caller, kind)
	return ErrForbidden
}

// transactional returns the store as store.Transactional when atomic mode
// is enabled and supported.
func (l *Ledger) transactional() (store.Transactional, bool) {
	if !l.atomicTransfers {
		return nil, false
	}
	tx, ok := l.store.(store.Transactional)
	return tx, ok
}

// mutate runs fn inside a transaction when possible, otherwise directly
// against the store.
func (l *Ledger) mutate(ctx context.Context, fn func(ctx context.Context, s account.Store) error) error {
	if tx, ok := l.transactional(); ok {
		return tx.InTx(ctx, fn)
	}
	return fn(ctx, l.store)
}

// rejected reports an insufficient balance to plugins, logs an overflow
// and passes any other error on to failed.
func (l *Ledger) rejected(ctx context.Context, kind account.OperationKind, err error) error {
	var ibe *InsufficientBalanceError
	if errors.As(err, &ibe) {
		l.plugins.EmitInsufficientBalance(ctx, kind, ibe.Handle, ibe.Balance, ibe.Requested)
		return err
	}
	if errors.Is(err, ErrBalanceOverflow) {
		l.logger.Warn("balance overflow rejected", "operation", string(kind), "error", err)
		return err
	}
	return l.failed(ctx, kind, err)
}

// credit applies delta to handle after checking that the new balance fits
// in an int64. Stores enforce the same bound for writes that race the check.
func credit(ctx context.Context, s account.Store, handle string, delta int64) (*account.Account, error) {
	acct, _, err := s.GetOrCreateAccount(ctx, handle)
	if err != nil {
		return nil, err
	}
	if err := checkOverflow(acct, delta); err != nil {
		return nil, err
	}
	return s.ApplyDelta(ctx, handle, delta)
}

func checkOverflow(acct *account.Account, delta int64) error {
	if _, ok := account.AddBalance(acct.Balance, delta); !ok {
		return fmt.Errorf("%w: %s holds %d, delta %d", ErrBalanceOverflow, acct.Handle, acct.Balance, delta)
	}
	return nil
}

func (l *Ledger) failed(ctx context.Context, kind account.OperationKind, err error) error {
	l.logger.Error("operation failed",
		"operation", string(kind),
		"error", err,
		"retryable", IsRetryable(err),
	)
	l.plugins.EmitOperationFailed(ctx, kind, err)
	return err
}

func validateHandle(field, handle string) error {
	if !account.ValidHandle(handle) {
		return ValidationError{Field: field, Message: fmt.Sprintf("%q is not a valid handle", handle)}
	}
	return nil
}
