// Package books provides the SQL-backed repository for catalog titles.
package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/dbx"
	"github.com/dmitrijs2005/booklend/internal/server/models"
	"github.com/dmitrijs2005/booklend/internal/server/store"
)

const table = "books"

var columns = []any{"id", "title", "author", "genre", "total_copies", "cover_key"}

type SQLRepository struct {
	db      dbx.DBTX
	dialect store.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect store.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Create(ctx context.Context, book *models.Book) (*models.Book, error) {
	ds := r.dialect.Builder().Insert(table).Prepared(true).Rows(goqu.Record{
		"title":        book.Title,
		"author":       book.Author,
		"genre":        book.Genre,
		"total_copies": book.TotalCopies,
		"cover_key":    book.CoverKey,
	})

	id, err := store.InsertID(ctx, r.db, r.dialect, ds)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	book.ID = id
	return book, nil
}

// Get returns common.ErrNotFound for an unknown id.
func (r *SQLRepository) Get(ctx context.Context, id int64) (*models.Book, error) {
	query, args, err := r.dialect.Builder().From(table).Prepared(true).
		Select(columns...).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	book, err := scanBook(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return book, nil
}

// Update rewrites the descriptive fields and copy count. The cover key is
// managed separately by SetCoverKey.
func (r *SQLRepository) Update(ctx context.Context, book *models.Book) error {
	return r.exec(ctx, r.dialect.Builder().Update(table).Prepared(true).
		Set(goqu.Record{
			"title":        book.Title,
			"author":       book.Author,
			"genre":        book.Genre,
			"total_copies": book.TotalCopies,
		}).
		Where(goqu.C("id").Eq(book.ID)))
}

func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := r.dialect.Builder().Delete(table).Prepared(true).
		Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return r.expectOne(r.db.ExecContext(ctx, query, args...))
}

// List returns the matching titles ordered by title, then id.
func (r *SQLRepository) List(ctx context.Context, filter Filter) ([]*models.Book, error) {
	ds := r.dialect.Builder().From(table).Prepared(true).
		Select(columns...).
		Order(goqu.C("title").Asc(), goqu.C("id").Asc())

	if g := strings.TrimSpace(filter.Genre); g != "" {
		ds = ds.Where(goqu.Func("LOWER", goqu.C("genre")).Eq(strings.ToLower(g)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		ds = ds.Where(goqu.Or(
			goqu.Func("LOWER", goqu.C("title")).Like(pattern),
			goqu.Func("LOWER", goqu.C("author")).Like(pattern),
		))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) Count(ctx context.Context) (int, error) {
	query, args, err := r.dialect.Builder().From(table).Prepared(true).
		Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Lock takes the write lock on the book row for the rest of the enclosing
// transaction by issuing a no-op update: a row lock on PostgreSQL, the
// database write lock on SQLite. Every borrow of the same book is thereby
// serialized. Returns common.ErrNotFound for an unknown id.
func (r *SQLRepository) Lock(ctx context.Context, id int64) error {
	return r.exec(ctx, r.dialect.Builder().Update(table).Prepared(true).
		Set(goqu.Record{"id": goqu.C("id")}).
		Where(goqu.C("id").Eq(id)))
}

func (r *SQLRepository) SetCoverKey(ctx context.Context, id int64, key string) error {
	return r.exec(ctx, r.dialect.Builder().Update(table).Prepared(true).
		Set(goqu.Record{"cover_key": key}).
		Where(goqu.C("id").Eq(id)))
}

func (r *SQLRepository) exec(ctx context.Context, ds *goqu.UpdateDataset) error {
	query, args, err := ds.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return r.expectOne(r.db.ExecContext(ctx, query, args...))
}

func (r *SQLRepository) expectOne(res sql.Result, err error) error {
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return common.ErrBookInUse
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(s scanner) (*models.Book, error) {
	book := &models.Book{}
	if err := s.Scan(&book.ID, &book.Title, &book.Author, &book.Genre, &book.TotalCopies, &book.CoverKey); err != nil {
		return nil, err
	}
	return book, nil
}
