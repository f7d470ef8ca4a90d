// Package store opens the relational store and hides the differences
// between the two supported SQL dialects: PostgreSQL through pgx, used in
// production, and SQLite through modernc.org/sqlite, used for development
// and tests.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/booklend/internal/dbx"
	"github.com/dmitrijs2005/booklend/internal/server/migrations"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// DialectFromDSN picks PostgreSQL for postgres:// URLs and keyword DSNs,
// SQLite for everything else (file:..., :memory:, plain paths).
func DialectFromDSN(dsn string) Dialect {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return Postgres
	case strings.Contains(lower, "host=") && strings.Contains(lower, "dbname="):
		return Postgres
	default:
		return SQLite
	}
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// GooseDialect is the goose dialect name for the dialect.
func (d Dialect) GooseDialect() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite3"
}

// Migrations returns the embedded migrations for the dialect.
func (d Dialect) Migrations() fs.FS {
	if d == Postgres {
		return migrations.Postgres
	}
	return migrations.SQLite
}

// Builder returns a goqu query builder producing SQL for the dialect.
func (d Dialect) Builder() goqu.DialectWrapper {
	return goqu.Dialect(string(d))
}

// SupportsReturning reports whether INSERT ... RETURNING is used for ids.
func (d Dialect) SupportsReturning() bool {
	return d == Postgres
}

// Open opens and pings the store behind dsn.
//
// SQLite is limited to a single open connection: the store then has exactly
// one writer, and an in-memory database is shared by every caller.
func Open(ctx context.Context, dsn string) (*sql.DB, Dialect, error) {
	d := DialectFromDSN(dsn)

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, d, fmt.Errorf("db open error: %w", err)
	}

	if d == SQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, d, fmt.Errorf("db ping error: %w", err)
	}

	return db, d, nil
}

// InsertID executes an insert and returns the id of the new row, using
// RETURNING where the dialect has it and LastInsertId otherwise.
func InsertID(ctx context.Context, db dbx.DBTX, d Dialect, ds *goqu.InsertDataset) (int64, error) {
	if d.SupportsReturning() {
		query, args, err := ds.Returning("id").ToSQL()
		if err != nil {
			return 0, fmt.Errorf("build query: %w", err)
		}
		var id int64
		if err := db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
