package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/tokenledger/account"
)

// DefaultHookTimeout bounds a single plugin call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onAccountCreated      []OnAccountCreated
	onTokensMinted        []OnTokensMinted
	onTokensBurned        []OnTokensBurned
	onTokensTransferred   []OnTokensTransferred
	onBalanceAdjusted     []OnBalanceAdjusted
	onPermissionDenied    []OnPermissionDenied
	onInsufficientBalance []OnInsufficientBalance
	onOperationFailed     []OnOperationFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAccountCreated); ok {
		r.onAccountCreated = append(r.onAccountCreated, v)
	}
	if v, ok := p.(OnTokensMinted); ok {
		r.onTokensMinted = append(r.onTokensMinted, v)
	}
	if v, ok := p.(OnTokensBurned); ok {
		r.onTokensBurned = append(r.onTokensBurned, v)
	}
	if v, ok := p.(OnTokensTransferred); ok {
		r.onTokensTransferred = append(r.onTokensTransferred, v)
	}
	if v, ok := p.(OnBalanceAdjusted); ok {
		r.onBalanceAdjusted = append(r.onBalanceAdjusted, v)
	}
	if v, ok := p.(OnPermissionDenied); ok {
		r.onPermissionDenied = append(r.onPermissionDenied, v)
	}
	if v, ok := p.(OnInsufficientBalance); ok {
		r.onInsufficientBalance = append(r.onInsufficientBalance, v)
	}
	if v, ok := p.(OnOperationFailed); ok {
		r.onOperationFailed = append(r.onOperationFailed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

// implementedInterfaces returns the hook names implemented by the plugin.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnAccountCreated)(nil)).Elem(), "OnAccountCreated")
	checkInterface(reflect.TypeOf((*OnTokensMinted)(nil)).Elem(), "OnTokensMinted")
	checkInterface(reflect.TypeOf((*OnTokensBurned)(nil)).Elem(), "OnTokensBurned")
	checkInterface(reflect.TypeOf((*OnTokensTransferred)(nil)).Elem(), "OnTokensTransferred")
	checkInterface(reflect.TypeOf((*OnBalanceAdjusted)(nil)).Elem(), "OnBalanceAdjusted")
	checkInterface(reflect.TypeOf((*OnPermissionDenied)(nil)).Elem(), "OnPermissionDenied")
	checkInterface(reflect.TypeOf((*OnInsufficientBalance)(nil)).Elem(), "OnInsufficientBalance")
	checkInterface(reflect.TypeOf((*OnOperationFailed)(nil)).Elem(), "OnOperationFailed")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, ledger)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitAccountCreated emits an account created event.
func (r *Registry) EmitAccountCreated(ctx context.Context, acct *account.Account) {
	r.mu.RLock()
	plugins := r.onAccountCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnAccountCreated", func() error {
			return p.OnAccountCreated(ctx, acct)
		})
	}
}

// EmitTokensMinted emits a mint event.
func (r *Registry) EmitTokensMinted(ctx context.Context, op *account.Operation) {
	r.mu.RLock()
	plugins := r.onTokensMinted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnTokensMinted", func() error {
			return p.OnTokensMinted(ctx, op)
		})
	}
}

// EmitTokensBurned emits a burn event.
func (r *Registry) EmitTokensBurned(ctx context.Context, op *account.Operation) {
	r.mu.RLock()
	plugins := r.onTokensBurned
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnTokensBurned", func() error {
			return p.OnTokensBurned(ctx, op)
		})
	}
}

// EmitTokensTransferred emits a transfer event.
func (r *Registry) EmitTokensTransferred(ctx context.Context, op *account.Operation) {
	r.mu.RLock()
	plugins := r.onTokensTransferred
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnTokensTransferred", func() error {
			return p.OnTokensTransferred(ctx, op)
		})
	}
}

// EmitBalanceAdjusted emits a raw adjustment event.
func (r *Registry) EmitBalanceAdjusted(ctx context.Context, op *account.Operation) {
	r.mu.RLock()
	plugins := r.onBalanceAdjusted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnBalanceAdjusted", func() error {
			return p.OnBalanceAdjusted(ctx, op)
		})
	}
}

// EmitPermissionDenied emits a permission denied event.
func (r *Registry) EmitPermissionDenied(ctx context.Context, actor string, kind account.OperationKind) {
	r.mu.RLock()
	plugins := r.onPermissionDenied
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnPermissionDenied", func() error {
			return p.OnPermissionDenied(ctx, actor, kind)
		})
	}
}

// EmitInsufficientBalance emits an insufficient balance event.
func (r *Registry) EmitInsufficientBalance(ctx context.Context, kind account.OperationKind, handle string, balance, requested int64) {
	r.mu.RLock()
	plugins := r.onInsufficientBalance
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInsufficientBalance", func() error {
			return p.OnInsufficientBalance(ctx, kind, handle, balance, requested)
		})
	}
}

// EmitOperationFailed emits a store failure event.
func (r *Registry) EmitOperationFailed(ctx context.Context, kind account.OperationKind, opErr error) {
	r.mu.RLock()
	plugins := r.onOperationFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnOperationFailed", func() error {
			return p.OnOperationFailed(ctx, kind, opErr)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block a balance operation.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
