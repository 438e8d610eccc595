package extension

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/store/memory"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{DisableMigrate: true})

	assert.True(t, cfg.DisableMigrate)
	assert.Equal(t, tokenledger.DefaultOrganizers, cfg.Organizers)
	assert.Equal(t, 5*time.Second, cfg.HookTimeout)
}

func TestMergeConfigurations(t *testing.T) {
	yamlCfg := Config{Organizers: []string{"@alice"}}
	programmatic := Config{
		Organizers:             []string{"@bob"},
		DisableAtomicTransfers: true,
		HookTimeout:            time.Second,
	}

	cfg := mergeConfigurations(yamlCfg, programmatic)

	assert.Equal(t, []string{"@alice"}, cfg.Organizers)
	assert.True(t, cfg.DisableAtomicTransfers)
	assert.False(t, cfg.DisableMigrate)
	assert.Equal(t, time.Second, cfg.HookTimeout)
}

func TestBuildLedgerOpts(t *testing.T) {
	ctx := context.Background()
	e := New(
		WithOrganizers("@alice"),
		WithDisableAtomicTransfers(),
		WithHookTimeout(time.Second),
	)
	e.config = mergeWithDefaults(e.config)

	l := tokenledger.New(memory.New(), e.buildLedgerOpts()...)
	require.NoError(t, l.Start(ctx))
	t.Cleanup(func() { _ = l.Stop() })

	assert.NoError(t, l.Authorize(ctx, "@alice", account.OperationMint))
	assert.ErrorIs(t, l.Authorize(ctx, "@roman_odobesku", account.OperationMint), tokenledger.ErrForbidden)
}

func TestStartBeforeRegister(t *testing.T) {
	e := New()
	assert.Nil(t, e.Engine())
	assert.Error(t, e.Start(context.Background()))
}

func TestHealth(t *testing.T) {
	ctx := context.Background()

	assert.ErrorIs(t, New().Health(ctx), tokenledger.ErrStoreNotReady)

	s := memory.New()
	e := New(WithStore(s))
	require.NoError(t, e.Health(ctx))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, e.Health(ctx), tokenledger.ErrStoreClosed)
}
