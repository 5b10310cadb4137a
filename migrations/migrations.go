// Package migrations embeds the event-store schema migrations. Version 1
// creates the events, pattern-list and last-location tables; later
// versions rebuild the events table in place so existing rows survive.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS holds the embedded SQL migrations, one file per schema version.
//
//go:embed *.sql
var FS embed.FS

// Run brings the database up to the current schema version.
func Run(db *sql.DB) error {
	goose.SetBaseFS(FS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
