// Package seed prepares a fresh library: an administrator account and a few
// starter books.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/dbx"
	"github.com/dmitrijs2005/booklend/internal/logging"
	"github.com/dmitrijs2005/booklend/internal/server/models"
	"github.com/dmitrijs2005/booklend/internal/server/policy"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/booklend/internal/server/services"
)

const (
	AdminUserName   = "admin"
	AdminEmail      = "admin@example.com"
	DefaultPassword = "admin123"
)

// StarterBooks are added when the catalog is empty.
var StarterBooks = []services.BookInput{
	{Title: "The Hobbit", Author: "J.R.R. Tolkien", Genre: "Fantasy", TotalCopies: 3},
	{Title: "Atomic Habits", Author: "James Clear", Genre: "Self-help", TotalCopies: 2},
	{Title: "Clean Code", Author: "Robert C. Martin", Genre: "Programming", TotalCopies: 1},
}

// Result tells what a run changed.
type Result struct {
	AdminCreated bool
	BooksAdded   int
}

type Seeder struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	users       *services.UserService
	catalog     *services.CatalogService
	logger      logging.Logger
}

func NewSeeder(db dbx.DBTX, m repomanager.RepositoryManager, us *services.UserService, cs *services.CatalogService, l logging.Logger) *Seeder {
	return &Seeder{db: db, repomanager: m, users: us, catalog: cs, logger: l}
}

// Run is idempotent: an existing admin account keeps its password and a
// non-empty catalog is left alone. An empty password means DefaultPassword.
func (s *Seeder) Run(ctx context.Context, password string) (*Result, error) {
	if password == "" {
		password = DefaultPassword
	}
	res := &Result{}

	admin, err := s.repomanager.Users(s.db).GetByUserName(ctx, AdminUserName)
	switch {
	case errors.Is(err, common.ErrNotFound):
		admin, err = s.users.CreateAccount(ctx, services.RegisterInput{
			UserName: AdminUserName,
			Email:    AdminEmail,
			Password: password,
		}, models.RoleAdmin)
		if err != nil {
			return nil, fmt.Errorf("error creating admin: %w", err)
		}
		res.AdminCreated = true
	case err != nil:
		return nil, fmt.Errorf("error loading admin: %w", err)
	}

	identity := policy.ForUser(admin)
	if !identity.IsAdmin() {
		return nil, fmt.Errorf("account %q exists without admin role: %w", AdminUserName, common.ErrAdminRequired)
	}

	n, err := s.catalog.CountBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("error counting books: %w", err)
	}
	if n == 0 {
		for _, in := range StarterBooks {
			if _, err := s.catalog.AddBook(ctx, identity, in); err != nil {
				return nil, fmt.Errorf("error adding %q: %w", in.Title, err)
			}
			res.BooksAdded++
		}
	}

	s.logger.Info(ctx, "seed finished", "admin_created", res.AdminCreated, "books_added", res.BooksAdded)
	return res, nil
}
