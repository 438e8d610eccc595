package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/xraph/tokenledger"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "tokenledger_schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations.
//
// The migration driver runs on a dedicated connection so closing it does
// not close the store's pool.
func (s *Store) Migrate(ctx context.Context) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("tokenledger/postgres: open migrations: %w", err)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("tokenledger/postgres: acquire migration connection: %w", err)
	}

	drv, err := migratepg.WithConnection(ctx, conn, &migratepg.Config{
		MigrationsTable: MigrationsTable,
	})
	if err != nil {
		_ = src.Close()
		_ = conn.Close()
		return fmt.Errorf("%w: postgres driver: %v", tokenledger.ErrMigrationFailed, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		_ = src.Close()
		_ = drv.Close()
		return fmt.Errorf("%w: %v", tokenledger.ErrMigrationFailed, err)
	}
	defer m.Close() //nolint:errcheck // closes only the source and the dedicated connection

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: %v", tokenledger.ErrMigrationFailed, err)
	}
	return nil
}
