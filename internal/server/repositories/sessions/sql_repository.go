// Package sessions provides the SQL-backed repository for login sessions.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/dbx"
	"github.com/dmitrijs2005/booklend/internal/server/models"
	"github.com/dmitrijs2005/booklend/internal/server/store"
)

const table = "sessions"

type SQLRepository struct {
	db      dbx.DBTX
	dialect store.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect store.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// Create stores a session token for userID valid until expiresAt.
func (r *SQLRepository) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) (*models.Session, error) {
	s := &models.Session{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}

	ds := r.dialect.Builder().Insert(table).Prepared(true).Rows(goqu.Record{
		"user_id":    s.UserID,
		"token":      s.Token,
		"expires_at": s.ExpiresAt,
		"created_at": s.CreatedAt,
	})

	id, err := store.InsertID(ctx, r.db, r.dialect, ds)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	s.ID = id
	return s, nil
}

// Find returns the session for token, or common.ErrNotFound. Expiry is
// left to the caller.
func (r *SQLRepository) Find(ctx context.Context, token string) (*models.Session, error) {
	query, args, err := r.dialect.Builder().From(table).Prepared(true).
		Select("id", "user_id", "token", "expires_at", "created_at").
		Where(goqu.C("token").Eq(token)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	s := &models.Session{}
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&s.ID, &s.UserID, &s.Token, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// Delete removes a session by its token. Deleting an unknown token is not an
// error.
func (r *SQLRepository) Delete(ctx context.Context, token string) error {
	query, args, err := r.dialect.Builder().Delete(table).Prepared(true).
		Where(goqu.C("token").Eq(token)).ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteExpired removes every session that expired before now.
func (r *SQLRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query, args, err := r.dialect.Builder().Delete(table).Prepared(true).
		Where(goqu.C("expires_at").Lt(now)).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
