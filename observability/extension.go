// Package observability provides a metrics extension for the ledger that
// records balance event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnAccountCreated      = (*MetricsExtension)(nil)
	_ plugin.OnTokensMinted        = (*MetricsExtension)(nil)
	_ plugin.OnTokensBurned        = (*MetricsExtension)(nil)
	_ plugin.OnTokensTransferred   = (*MetricsExtension)(nil)
	_ plugin.OnBalanceAdjusted     = (*MetricsExtension)(nil)
	_ plugin.OnPermissionDenied    = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientBalance = (*MetricsExtension)(nil)
	_ plugin.OnOperationFailed     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger-wide event metrics.
// Register it as a ledger plugin to track token flow automatically.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountsCreated Counter

	// Token metrics
	TokensMinted      Counter
	TokensBurned      Counter
	TokensTransferred Counter
	MintAmount        Histogram
	BurnAmount        Histogram
	TransferAmount    Histogram
	Adjustments       Counter

	// Rejection metrics
	PermissionDenied    Counter
	InsufficientBalance Counter

	// Error metrics
	StoreErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		AccountsCreated: factory.Counter("tokenledger.accounts.created"),

		TokensMinted:      factory.Counter("tokenledger.tokens.minted"),
		TokensBurned:      factory.Counter("tokenledger.tokens.burned"),
		TokensTransferred: factory.Counter("tokenledger.tokens.transferred"),
		MintAmount:        factory.Histogram("tokenledger.mint.amount"),
		BurnAmount:        factory.Histogram("tokenledger.burn.amount"),
		TransferAmount:    factory.Histogram("tokenledger.transfer.amount"),
		Adjustments:       factory.Counter("tokenledger.balance.adjustments"),

		PermissionDenied:    factory.Counter("tokenledger.permission.denied"),
		InsufficientBalance: factory.Counter("tokenledger.balance.insufficient"),

		StoreErrors: factory.Counter("tokenledger.store.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (m *MetricsExtension) OnAccountCreated(_ context.Context, _ *account.Account) error {
	m.AccountsCreated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Token hooks
// ──────────────────────────────────────────────────

// OnTokensMinted implements plugin.OnTokensMinted.
func (m *MetricsExtension) OnTokensMinted(_ context.Context, op *account.Operation) error {
	m.TokensMinted.Add(float64(op.Amount))
	m.MintAmount.Observe(float64(op.Amount))
	return nil
}

// OnTokensBurned implements plugin.OnTokensBurned.
func (m *MetricsExtension) OnTokensBurned(_ context.Context, op *account.Operation) error {
	m.TokensBurned.Add(float64(op.Amount))
	m.BurnAmount.Observe(float64(op.Amount))
	return nil
}

// OnTokensTransferred implements plugin.OnTokensTransferred.
func (m *MetricsExtension) OnTokensTransferred(_ context.Context, op *account.Operation) error {
	m.TokensTransferred.Add(float64(op.Amount))
	m.TransferAmount.Observe(float64(op.Amount))
	return nil
}

// OnBalanceAdjusted implements plugin.OnBalanceAdjusted.
func (m *MetricsExtension) OnBalanceAdjusted(_ context.Context, _ *account.Operation) error {
	m.Adjustments.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Rejection hooks
// ──────────────────────────────────────────────────

// OnPermissionDenied implements plugin.OnPermissionDenied.
func (m *MetricsExtension) OnPermissionDenied(_ context.Context, _ string, _ account.OperationKind) error {
	m.PermissionDenied.Inc()
	return nil
}

// OnInsufficientBalance implements plugin.OnInsufficientBalance.
func (m *MetricsExtension) OnInsufficientBalance(_ context.Context, _ account.OperationKind, _ string, _, _ int64) error {
	m.InsufficientBalance.Inc()
	return nil
}

// OnOperationFailed implements plugin.OnOperationFailed.
func (m *MetricsExtension) OnOperationFailed(_ context.Context, _ account.OperationKind, _ error) error {
	m.StoreErrors.Inc()
	return nil
}
