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

type RepositoryManager interface {
	Dialect() store.Dialect
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Books(db dbx.DBTX) books.Repository
	Borrows(db dbx.DBTX) borrows.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}
