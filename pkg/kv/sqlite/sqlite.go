// Package sqlite provides a SQLite-backed kv.Driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/streamrelay/streamrelay/pkg/kv/sqldriver"
)

// Driver implements kv.Driver using SQLite.
type Driver struct {
	*sqldriver.Driver
}

// NewDriver opens the database at dbPath, which can be a file path or
// ":memory:".
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// alive for the life of the driver.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	drv, err := sqldriver.New(ctx, db, sqldriver.Dialect{
		Name:        "sqlite",
		Placeholder: sqldriver.QuestionPlaceholder,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{Driver: drv}, nil
}
