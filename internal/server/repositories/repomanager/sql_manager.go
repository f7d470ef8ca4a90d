// Package repomanager provides a RepositoryManager that vends repositories
// bound to a DBTX (a pool or an open transaction) for one SQL dialect, and
// applies its schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/booklend/internal/dbx"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/books"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/borrows"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/users"
	"github.com/dmitrijs2005/booklend/internal/server/store"
)

type SQLRepositoryManager struct {
	dialect store.Dialect
}

func (m *SQLRepositoryManager) Dialect() store.Dialect {
	return m.dialect
}

func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Books(db dbx.DBTX) books.Repository {
	return books.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Borrows(db dbx.DBTX) borrows.Repository {
	return borrows.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewSQLRepository(db, m.dialect)
}

// migrate is a seam for testing store.Migrate.
var migrate = store.Migrate

// RunMigrations applies the embedded migrations of the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, m.dialect)
}

func NewSQLRepositoryManager(dialect store.Dialect) RepositoryManager {
	return &SQLRepositoryManager{dialect: dialect}
}
