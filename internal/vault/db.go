package vault

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/mindvault/internal/vault/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// initDatabase opens the sqlite metadata index and applies pending
// migrations from the embedded FS.
func initDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return db, nil
}
