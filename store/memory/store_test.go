package memory

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/account"
)

func TestGetAccountUnknown(t *testing.T) {
	s := New()
	_, err := s.GetAccount(context.Background(), "@ghost")
	if !errors.Is(err, tokenledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("lookup created an account")
	}
}

func TestGetOrCreateIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, created, err := s.GetOrCreateAccount(ctx, "@alice")
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("first call should create")
	}

	second, created, err := s.GetOrCreateAccount(ctx, "@alice")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second call should not create")
	}
	if first.ID.String() != second.ID.String() {
		t.Errorf("ids differ: %s vs %s", first.ID, second.ID)
	}
}

func TestApplyDelta(t *testing.T) {
	ctx := context.Background()
	s := New()

	tests := []struct {
		delta int64
		want  int64
	}{
		{100, 100},
		{-30, 70},
		{-100, -30},
		{0, -30},
	}
	for _, tt := range tests {
		a, err := s.ApplyDelta(ctx, "@alice", tt.delta)
		if err != nil {
			t.Fatal(err)
		}
		if a.Balance != tt.want {
			t.Errorf("after %+d: balance = %d, want %d", tt.delta, a.Balance, tt.want)
		}
	}
}

func TestApplyDeltaOverflow(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.ApplyDelta(ctx, "@alice", math.MaxInt64); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApplyDelta(ctx, "@alice", 1); !errors.Is(err, tokenledger.ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow, got %v", err)
	}

	err := s.InTx(ctx, func(ctx context.Context, tx account.Store) error {
		_, err := tx.ApplyDelta(ctx, "@alice", math.MaxInt64)
		return err
	})
	if !errors.Is(err, tokenledger.ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow in tx, got %v", err)
	}

	a, err := s.GetAccount(ctx, "@alice")
	if err != nil {
		t.Fatal(err)
	}
	if a.Balance != math.MaxInt64 {
		t.Errorf("balance = %d, want %d", a.Balance, int64(math.MaxInt64))
	}
}

func TestApplyDeltaConcurrent(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.ApplyDelta(ctx, "@alice", 1)
		}()
	}
	wg.Wait()

	a, err := s.GetAccount(ctx, "@alice")
	if err != nil {
		t.Fatal(err)
	}
	if a.Balance != 100 {
		t.Errorf("balance = %d, want 100", a.Balance)
	}
}

func TestReturnedAccountIsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, _, _ := s.GetOrCreateAccount(ctx, "@alice")
	a.Balance = 999

	got, _ := s.GetAccount(ctx, "@alice")
	if got.Balance != 0 {
		t.Errorf("store state mutated through returned pointer: %d", got.Balance)
	}
}

func TestInTxRollback(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.ApplyDelta(ctx, "@alice", 50)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx account.Store) error {
		if _, err := tx.ApplyDelta(ctx, "@alice", -20); err != nil {
			return err
		}
		if _, err := tx.ApplyDelta(ctx, "@bob", 20); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	a, _ := s.GetAccount(ctx, "@alice")
	if a.Balance != 50 {
		t.Errorf("alice = %d, want 50", a.Balance)
	}
	if _, err := s.GetAccount(ctx, "@bob"); !errors.Is(err, tokenledger.ErrAccountNotFound) {
		t.Errorf("bob should not exist after rollback, got %v", err)
	}
}

func TestInTxCommit(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.ApplyDelta(ctx, "@alice", 50)

	err := s.InTx(ctx, func(ctx context.Context, tx account.Store) error {
		if _, err := tx.ApplyDelta(ctx, "@alice", -20); err != nil {
			return err
		}
		_, err := tx.ApplyDelta(ctx, "@bob", 20)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	a, _ := s.GetAccount(ctx, "@alice")
	b, _ := s.GetAccount(ctx, "@bob")
	if a.Balance != 30 || b.Balance != 20 {
		t.Errorf("alice=%d bob=%d, want 30/20", a.Balance, b.Balance)
	}
}

func TestPingAfterClose(t *testing.T) {
	s := New()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()
	if err := s.Ping(context.Background()); !errors.Is(err, tokenledger.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}
