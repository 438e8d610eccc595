package sqlite

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/xraph/tokenledger"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "tokenledger_schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations.
func (s *Store) Migrate(_ context.Context) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("tokenledger/sqlite: open migrations: %w", err)
	}
	// The sqlite migration driver owns no connection of its own and its
	// Close would close s.db, so only the source is closed here.
	defer src.Close() //nolint:errcheck // embedded source

	drv, err := migratesqlite.WithInstance(s.db.DB, &migratesqlite.Config{
		MigrationsTable: MigrationsTable,
	})
	if err != nil {
		return fmt.Errorf("%w: sqlite driver: %v", tokenledger.ErrMigrationFailed, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("%w: %v", tokenledger.ErrMigrationFailed, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: %v", tokenledger.ErrMigrationFailed, err)
	}
	return nil
}
