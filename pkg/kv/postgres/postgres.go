// Package postgres provides a PostgreSQL-backed kv.Driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"

	"github.com/streamrelay/streamrelay/pkg/kv/sqldriver"
)

// Driver implements kv.Driver using PostgreSQL.
type Driver struct {
	*sqldriver.Driver
}

// NewDriver connects to PostgreSQL. The connStr is a connection string, e.g.
// "host=localhost port=5432 user=streamrelay dbname=streamrelay sslmode=disable"
// or a URI like "postgres://streamrelay@localhost:5432/streamrelay?sslmode=disable".
func NewDriver(ctx context.Context, connStr string) (*Driver, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	drv, err := sqldriver.New(ctx, db, sqldriver.Dialect{
		Name:        "postgres",
		Placeholder: sqldriver.DollarPlaceholder,
		LockClause:  " FOR UPDATE",
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{Driver: drv}, nil
}
