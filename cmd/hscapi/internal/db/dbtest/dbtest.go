// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/db/bunx"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/migrations"
)

// New returns a fresh in-memory database with every migration applied.
// The database is closed when the test ends.
func New(t testing.TB) *bun.DB {
	t.Helper()

	db, err := bunx.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	Migrate(t, db)
	return db
}

// Migrate applies every registered migration to db.
func Migrate(t testing.TB, db *bun.DB) {
	t.Helper()

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)
}
