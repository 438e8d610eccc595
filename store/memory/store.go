package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/store"
)

var (
	_ store.Store         = (*Store)(nil)
	_ store.Transactional = (*Store)(nil)
)

// Store is an in-process store for tests and single-binary demos.
// Nothing survives a restart.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*account.Account
	closed   bool
}

func New() *Store {
	return &Store{
		accounts: make(map[string]*account.Account),
	}
}

// Account Store implementation
func (s *Store) GetAccount(_ context.Context, handle string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[handle]; ok {
		return clone(a), nil
	}
	return nil, tokenledger.ErrAccountNotFound
}

func (s *Store) GetOrCreateAccount(_ context.Context, handle string) (*account.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, created := s.getOrCreate(handle)
	return clone(a), created, nil
}

func (s *Store) ApplyDelta(_ context.Context, handle string, delta int64) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.applyDelta(handle, delta)
	if err != nil {
		return nil, err
	}
	return clone(a), nil
}

// InTx runs fn with the store locked for writing. Changes made through tx
// are undone when fn returns an error.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx account.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txStore{s: s, undo: make(map[string]*account.Account)}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Count returns the number of stored accounts.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return tokenledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// callers hold s.mu for writing.
func (s *Store) getOrCreate(handle string) (*account.Account, bool) {
	if a, ok := s.accounts[handle]; ok {
		return a, false
	}
	a := account.New(handle)
	s.accounts[handle] = a
	return a, true
}

func (s *Store) applyDelta(handle string, delta int64) (*account.Account, error) {
	a, _ := s.getOrCreate(handle)
	balance, ok := account.AddBalance(a.Balance, delta)
	if !ok {
		return nil, fmt.Errorf("%w: %s", tokenledger.ErrBalanceOverflow, handle)
	}
	a.Balance = balance
	a.Touch()
	return a, nil
}

// ──────────────────────────────────────────────────
// Transaction view
// ──────────────────────────────────────────────────

type txStore struct {
	s *Store
	// undo holds the pre-transaction copy of every touched handle;
	// a nil entry means the account did not exist.
	undo map[string]*account.Account
}

func (t *txStore) remember(handle string) {
	if _, seen := t.undo[handle]; seen {
		return
	}
	if a, ok := t.s.accounts[handle]; ok {
		t.undo[handle] = clone(a)
		return
	}
	t.undo[handle] = nil
}

func (t *txStore) rollback() {
	for handle, prev := range t.undo {
		if prev == nil {
			delete(t.s.accounts, handle)
			continue
		}
		t.s.accounts[handle] = prev
	}
}

func (t *txStore) GetAccount(_ context.Context, handle string) (*account.Account, error) {
	if a, ok := t.s.accounts[handle]; ok {
		return clone(a), nil
	}
	return nil, tokenledger.ErrAccountNotFound
}

func (t *txStore) GetOrCreateAccount(_ context.Context, handle string) (*account.Account, bool, error) {
	t.remember(handle)
	a, created := t.s.getOrCreate(handle)
	return clone(a), created, nil
}

func (t *txStore) ApplyDelta(_ context.Context, handle string, delta int64) (*account.Account, error) {
	t.remember(handle)
	a, err := t.s.applyDelta(handle, delta)
	if err != nil {
		return nil, err
	}
	return clone(a), nil
}

func clone(a *account.Account) *account.Account {
	c := *a
	return &c
}
