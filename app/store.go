package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/store/memory"
	"github.com/xraph/tokenledger/store/mongo"
	"github.com/xraph/tokenledger/store/postgres"
	"github.com/xraph/tokenledger/store/sqlite"
)

// OpenStore opens the backend selected by cfg.Store.
func OpenStore(cfg Config) (store.Store, error) {
	switch cfg.Store {
	case StorePostgres:
		s, err := postgres.Open(cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		configurePool(s.DB(), cfg)
		return s, nil

	case StoreSQLite:
		// sqlite.Open pins the pool to one connection; leave it alone.
		return sqlite.Open(cfg.SQLitePath)

	case StoreMongo:
		return mongo.Open(cfg.MongoURI, cfg.MongoDatabase)

	case StoreMemory:
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("tokenledger: unknown store %q", cfg.Store)
	}
}

func configurePool(db *sqlx.DB, cfg Config) {
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
}
