package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/id"
	ledgerstore "github.com/xraph/tokenledger/store"
)

// Collection name constants.
const (
	colAccounts = "tokenledger_accounts"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store on MongoDB.
//
// Each balance change is a single $inc upsert. Multi-document transactions
// need a replica set, so this store does not implement
// store.Transactional and transfers run as two sequential updates.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a store on database name using an already connected client.
func New(client *mongo.Client, name string) *Store {
	return &Store{
		client: client,
		db:     client.Database(name),
	}
}

// Open connects to uri and uses database name.
func Open(uri, name string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("tokenledger/mongo: connect: %w", err)
	}
	return New(client, name), nil
}

// Client returns the underlying client for direct access.
func (s *Store) Client() *mongo.Client { return s.client }

// Migrate creates indexes for all ledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: tokenledger/mongo: %s indexes: %v", tokenledger.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, handle string) (*account.Account, error) {
	var m accountModel
	err := s.db.Collection(colAccounts).
		FindOne(ctx, bson.M{"handle": handle}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tokenledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("tokenledger/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) GetOrCreateAccount(ctx context.Context, handle string) (*account.Account, bool, error) {
	ts := now()
	res, err := s.db.Collection(colAccounts).UpdateOne(ctx,
		bson.M{"handle": handle},
		bson.M{"$setOnInsert": bson.M{
			"_id":        id.NewAccountID().String(),
			"handle":     handle,
			"balance":    int64(0),
			"created_at": ts,
			"updated_at": ts,
		}},
		options.UpdateOne().SetUpsert(true),
	)
	// A concurrent upsert of the same handle loses on the unique index;
	// the row exists either way.
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("tokenledger/mongo: create account: %w", err)
	}
	created := err == nil && res.UpsertedCount == 1

	acct, err := s.GetAccount(ctx, handle)
	if err != nil {
		return nil, false, err
	}
	return acct, created, nil
}

// ApplyDelta increments the balance with a single $inc upsert. The filter
// only matches while the result stays inside int64, so an existing document
// that would overflow makes the upsert fall through to a duplicate insert.
func (s *Store) ApplyDelta(ctx context.Context, handle string, delta int64) (*account.Account, error) {
	acct, err := s.applyDelta(ctx, handle, delta)
	if !mongo.IsDuplicateKeyError(err) {
		return acct, err
	}

	// Either the guard rejected the document or an insert race was lost.
	cur, err := s.GetAccount(ctx, handle)
	if err != nil {
		return nil, err
	}
	if _, ok := account.AddBalance(cur.Balance, delta); !ok {
		return nil, fmt.Errorf("%w: %s", tokenledger.ErrBalanceOverflow, handle)
	}
	acct, err = s.applyDelta(ctx, handle, delta)
	if mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("%w: %s", tokenledger.ErrBalanceOverflow, handle)
	}
	return acct, err
}

func (s *Store) applyDelta(ctx context.Context, handle string, delta int64) (*account.Account, error) {
	ts := now()
	var m accountModel
	op, bound := ledgerstore.DeltaBound(delta)
	cmp := "$lte"
	if op == ">=" {
		cmp = "$gte"
	}
	err := s.db.Collection(colAccounts).FindOneAndUpdate(ctx,
		bson.M{"handle": handle, "balance": bson.M{cmp: bound}},
		bson.M{
			"$inc": bson.M{"balance": delta},
			"$set": bson.M{"updated_at": ts},
			"$setOnInsert": bson.M{
				"_id":        id.NewAccountID().String(),
				"created_at": ts,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("tokenledger/mongo: apply delta: %w", err)
	}
	return fromAccountModel(&m)
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all ledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{
				Keys:    bson.D{{Key: "handle", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
