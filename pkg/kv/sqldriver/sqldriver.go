// Package sqldriver implements kv.Driver on database/sql. The sqlite and
// postgres packages supply the connection and a Dialect.
package sqldriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/streamrelay/streamrelay/pkg/kv"
)

// Dialect captures the differences between SQL backends.
type Dialect struct {
	// Name is used in error messages.
	Name string

	// Placeholder returns the bind parameter for the 1-based position n.
	Placeholder func(n int) string

	// LockClause is appended to the read inside Set and Decr transactions,
	// e.g. " FOR UPDATE". Empty for backends that lock the whole database.
	LockClause string
}

// QuestionPlaceholder renders "?" bind parameters.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder renders "$n" bind parameters.
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

const schema = `CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at BIGINT
)`

// Driver implements kv.Driver on a *sql.DB.
type Driver struct {
	DB      *sql.DB
	dialect Dialect

	getQuery    string
	upsertQuery string
	seedQuery   string
	now         func() time.Time
}

var _ kv.Driver = (*Driver)(nil)

// New creates the kv_entries table if needed and returns a Driver.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Driver, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create %s schema: %w", dialect.Name, err)
	}

	p := dialect.Placeholder
	return &Driver{
		DB:       db,
		dialect:  dialect,
		getQuery: "SELECT value, expires_at FROM kv_entries WHERE key = " + p(1),
		upsertQuery: fmt.Sprintf(
			"INSERT INTO kv_entries (key, value, expires_at) VALUES (%s, %s, %s) "+
				"ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at",
			p(1), p(2), p(3),
		),
		seedQuery: "INSERT INTO kv_entries (key, value, expires_at) VALUES (" + p(1) + ", '0', NULL) " +
			"ON CONFLICT (key) DO NOTHING",
		now: time.Now,
	}, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// load reads the live row for key. Expired rows read as missing.
func (d *Driver) load(ctx context.Context, q querier, key string, lock bool) (string, sql.NullInt64, bool, error) {
	query := d.getQuery
	if lock {
		query += d.dialect.LockClause
	}

	var (
		value     string
		expiresAt sql.NullInt64
	)
	err := q.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sql.NullInt64{}, false, nil
	}
	if err != nil {
		return "", sql.NullInt64{}, false, fmt.Errorf("%s get: %w", d.dialect.Name, err)
	}
	if expiresAt.Valid && d.now().UnixMilli() >= expiresAt.Int64 {
		return "", sql.NullInt64{}, false, nil
	}
	return value, expiresAt, true, nil
}

// Get returns the value stored at key.
func (d *Driver) Get(ctx context.Context, key string) (string, error) {
	value, _, found, err := d.load(ctx, d.DB, key, false)
	if err != nil {
		return "", err
	}
	if !found {
		return "", kv.NotFoundError{Key: key}
	}
	return value, nil
}

// Set stores value at key inside a transaction.
func (d *Driver) Set(ctx context.Context, key, value string, opts kv.SetOptions) (bool, error) {
	if err := opts.Validate(); err != nil {
		return false, err
	}

	written := false
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		_, _, exists, err := d.load(ctx, tx, key, true)
		if err != nil {
			return err
		}
		if (opts.NX && exists) || (opts.XX && !exists) {
			return nil
		}

		var expiresAt sql.NullInt64
		if at := opts.ExpiresAt(d.now()); !at.IsZero() {
			expiresAt = sql.NullInt64{Int64: at.UnixMilli(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, d.upsertQuery, key, value, expiresAt); err != nil {
			return fmt.Errorf("%s set: %w", d.dialect.Name, err)
		}
		written = true
		return nil
	})
	return written, err
}

// Decr decrements the integer stored at key inside a transaction. A missing
// key is first seeded with a zero row so the locking read always has a row to
// lock; concurrent decrements of a new key then queue behind one another.
func (d *Driver) Decr(ctx context.Context, key string) (int64, error) {
	var next int64
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, d.seedQuery, key); err != nil {
			return fmt.Errorf("%s decr: %w", d.dialect.Name, err)
		}

		value, expiresAt, exists, err := d.load(ctx, tx, key, true)
		if err != nil {
			return err
		}

		current := int64(0)
		if exists {
			n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil || n == math.MinInt64 {
				return kv.ErrNotInteger
			}
			current = n
		}

		next = current - 1
		if _, err := tx.ExecContext(ctx, d.upsertQuery, key, strconv.FormatInt(next, 10), expiresAt); err != nil {
			return fmt.Errorf("%s decr: %w", d.dialect.Name, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (d *Driver) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s begin: %w", d.dialect.Name, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s commit: %w", d.dialect.Name, err)
	}
	return nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.DB.Close()
}
