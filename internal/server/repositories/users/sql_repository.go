// Package users provides the SQL-backed repository for library accounts.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/dbx"
	"github.com/dmitrijs2005/booklend/internal/server/models"
	"github.com/dmitrijs2005/booklend/internal/server/store"
)

const table = "users"

var columns = []any{"id", "username", "email", "password_hash", "role", "created_at"}

// SQLRepository implements Repository over dbx.DBTX (satisfied by *sql.DB or
// *sql.Tx) for either supported dialect.
type SQLRepository struct {
	db      dbx.DBTX
	dialect store.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect store.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// Create inserts the user and fills in its ID. A taken username or email
// yields common.ErrConflict.
func (r *SQLRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	ds := r.dialect.Builder().Insert(table).Prepared(true).Rows(goqu.Record{
		"username":      user.UserName,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"role":          string(user.Role),
		"created_at":    user.CreatedAt,
	})

	id, err := store.InsertID(ctx, r.db, r.dialect, ds)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.ID = id
	return user, nil
}

// GetByUserName returns common.ErrNotFound when no account has that name.
func (r *SQLRepository) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	return r.getOne(ctx, goqu.C("username").Eq(userName))
}

// GetByID returns common.ErrNotFound when no account has that id.
func (r *SQLRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, goqu.C("id").Eq(id))
}

func (r *SQLRepository) ExistsByUserNameOrEmail(ctx context.Context, userName, email string) (bool, error) {
	query, args, err := r.dialect.Builder().From(table).Prepared(true).
		Select(goqu.COUNT("*")).
		Where(goqu.Or(goqu.C("username").Eq(userName), goqu.C("email").Eq(email))).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) getOne(ctx context.Context, where goqu.Expression) (*models.User, error) {
	query, args, err := r.dialect.Builder().From(table).Prepared(true).
		Select(columns...).Where(where).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	user := &models.User{}
	var role string
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&user.ID, &user.UserName, &user.Email, &user.PasswordHash, &role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.Role = models.Role(role)

	return user, nil
}
