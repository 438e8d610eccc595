package postgres

import (
	"context"
	"errors"
	"math"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/id"
)

var columns = []string{"id", "handle", "balance", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, DriverName)), mock
}

func TestGetAccount(t *testing.T) {
	s, mock := newMockStore(t)
	acctID := id.NewAccountID()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, handle, balance, created_at, updated_at FROM tokenledger_accounts WHERE handle = $1`)).
		WithArgs("@alice").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(acctID.String(), "@alice", int64(70), ts, ts))

	a, err := s.GetAccount(context.Background(), "@alice")
	require.NoError(t, err)
	assert.Equal(t, acctID.String(), a.ID.String())
	assert.Equal(t, "@alice", a.Handle)
	assert.Equal(t, int64(70), a.Balance)
	assert.True(t, a.CreatedAt.Equal(ts))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccountNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM tokenledger_accounts WHERE handle = \$1`).
		WithArgs("@ghost").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := s.GetAccount(context.Background(), "@ghost")
	require.ErrorIs(t, err, tokenledger.ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateAccount(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		created  bool
	}{
		{"Inserted", 1, true},
		{"Existing", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			ts := time.Now().UTC()

			mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tokenledger_accounts`)+`.*ON CONFLICT \(handle\) DO NOTHING`).
				WithArgs(sqlmock.AnyArg(), "@bob", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectQuery(`SELECT .* WHERE handle = \$1$`).
				WithArgs("@bob").
				WillReturnRows(sqlmock.NewRows(columns).AddRow(id.NewAccountID().String(), "@bob", int64(0), ts, ts))

			a, created, err := s.GetOrCreateAccount(context.Background(), "@bob")
			require.NoError(t, err)
			assert.Equal(t, tt.created, created)
			assert.Equal(t, int64(0), a.Balance)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestApplyDeltaSingleStatement(t *testing.T) {
	s, mock := newMockStore(t)
	ts := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO tokenledger_accounts .*ON CONFLICT \(handle\) DO UPDATE\s+SET balance = tokenledger_accounts.balance \+ EXCLUDED.balance`).
		WithArgs(sqlmock.AnyArg(), "@alice", int64(-30), sqlmock.AnyArg(), int64(math.MinInt64+30)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(id.NewAccountID().String(), "@alice", int64(40), ts, ts))

	a, err := s.ApplyDelta(context.Background(), "@alice", -30)
	require.NoError(t, err)
	assert.Equal(t, int64(40), a.Balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDeltaOverflow(t *testing.T) {
	s, mock := newMockStore(t)

	// The guarded conflict update skips the row, so RETURNING is empty.
	mock.ExpectQuery(`DO UPDATE[\s\S]*WHERE tokenledger_accounts.balance <= \$5`).
		WithArgs(sqlmock.AnyArg(), "@alice", int64(10), sqlmock.AnyArg(), int64(math.MaxInt64-10)).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := s.ApplyDelta(context.Background(), "@alice", 10)
	require.ErrorIs(t, err, tokenledger.ErrBalanceOverflow)
	assert.True(t, tokenledger.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutOfRangeIsOverflow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO tokenledger_accounts`).
		WillReturnError(&pq.Error{Code: "22003", Message: "bigint out of range"})

	_, err := s.ApplyDelta(context.Background(), "@alice", 1)
	require.ErrorIs(t, err, tokenledger.ErrBalanceOverflow)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxLocksAndCommits(t *testing.T) {
	s, mock := newMockStore(t)
	ts := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO tokenledger_accounts`).
		WithArgs(sqlmock.AnyArg(), "@alice", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* WHERE handle = \$1 FOR UPDATE`).
		WithArgs("@alice").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(id.NewAccountID().String(), "@alice", int64(100), ts, ts))
	mock.ExpectQuery(`INSERT INTO tokenledger_accounts .*DO UPDATE`).
		WithArgs(sqlmock.AnyArg(), "@alice", int64(-10), sqlmock.AnyArg(), int64(math.MinInt64+10)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(id.NewAccountID().String(), "@alice", int64(90), ts, ts))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(ctx context.Context, tx account.Store) error {
		a, _, err := tx.GetOrCreateAccount(ctx, "@alice")
		if err != nil {
			return err
		}
		if a.Balance < 10 {
			return tokenledger.ErrInsufficientBalance
		}
		_, err = tx.ApplyDelta(ctx, "@alice", -10)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(context.Context, account.Store) error {
		return tokenledger.ErrInsufficientBalance
	})
	require.ErrorIs(t, err, tokenledger.ErrInsufficientBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeadlockIsRetryable(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO tokenledger_accounts`).
		WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})

	_, err := s.ApplyDelta(context.Background(), "@alice", 1)
	require.Error(t, err)
	assert.True(t, tokenledger.IsRetryable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOtherErrorsPassThrough(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(`SELECT`).WillReturnError(boom)

	_, err := s.GetAccount(context.Background(), "@alice")
	require.ErrorIs(t, err, boom)
	assert.False(t, tokenledger.IsRetryable(err))
}

// TestIntegration runs against a real server when TEST_POSTGRES_DSN is set.
func TestIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(dsn)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx), "second migrate must be a no-op")

	handle := "@it_" + id.NewOperationID().String()[3:15]
	_, created, err := s.GetOrCreateAccount(ctx, handle)
	require.NoError(t, err)
	assert.True(t, created)

	a, err := s.ApplyDelta(ctx, handle, 25)
	require.NoError(t, err)
	assert.Equal(t, int64(25), a.Balance)

	err = s.InTx(ctx, func(ctx context.Context, tx account.Store) error {
		if _, err := tx.ApplyDelta(ctx, handle, -5); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	a, err = s.GetAccount(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, int64(25), a.Balance)
}
