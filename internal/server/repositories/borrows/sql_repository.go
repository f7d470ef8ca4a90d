// Package borrows provides the SQL-backed repository for loan records.
package borrows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/dbx"
	"github.com/dmitrijs2005/booklend/internal/server/models"
	"github.com/dmitrijs2005/booklend/internal/server/store"
)

const table = "borrows"

var columns = []any{"id", "user_id", "book_id", "borrow_date", "return_date", "returned"}

type SQLRepository struct {
	db      dbx.DBTX
	dialect store.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect store.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// Create inserts an active borrow. A second active borrow of the same book by
// the same user violates the partial unique index and yields
// common.ErrDuplicateActiveLoan.
func (r *SQLRepository) Create(ctx context.Context, borrow *models.Borrow) (*models.Borrow, error) {
	ds := r.dialect.Builder().Insert(table).Prepared(true).Rows(goqu.Record{
		"user_id":     borrow.UserID,
		"book_id":     borrow.BookID,
		"borrow_date": borrow.BorrowDate,
		"returned":    false,
	})

	id, err := store.InsertID(ctx, r.db, r.dialect, ds)
	if err != nil {
		switch {
		case dbx.IsUniqueViolation(err):
			return nil, common.ErrDuplicateActiveLoan
		case dbx.IsForeignKeyViolation(err):
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	borrow.ID = id
	borrow.Returned = false
	borrow.ReturnDate = nil
	return borrow, nil
}

func (r *SQLRepository) Get(ctx context.Context, id int64) (*models.Borrow, error) {
	return r.getOne(ctx, goqu.C("id").Eq(id))
}

// FindActive returns the user's active borrow of the book, or
// common.ErrNotFound.
func (r *SQLRepository) FindActive(ctx context.Context, userID, bookID int64) (*models.Borrow, error) {
	return r.getOne(ctx, goqu.And(
		goqu.C("user_id").Eq(userID),
		goqu.C("book_id").Eq(bookID),
		returnedIs(goqu.C("returned"), false),
	))
}

// MarkReturned closes an active borrow. If the borrow is already returned
// the row is left untouched and common.ErrAlreadyReturned is returned.
func (r *SQLRepository) MarkReturned(ctx context.Context, id int64, at time.Time) error {
	query, args, err := r.dialect.Builder().Update(table).Prepared(true).
		Set(goqu.Record{"returned": true, "return_date": at}).
		Where(goqu.C("id").Eq(id), returnedIs(goqu.C("returned"), false)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrAlreadyReturned
	}
	return nil
}

func (r *SQLRepository) CountActiveByBook(ctx context.Context, bookID int64) (int, error) {
	query, args, err := r.dialect.Builder().From(table).Prepared(true).
		Select(goqu.COUNT("*")).
		Where(goqu.C("book_id").Eq(bookID), returnedIs(goqu.C("returned"), false)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// CountActive returns active borrow counts keyed by book id, for every
// book. Books with no active borrow are absent from the map.
func (r *SQLRepository) CountActive(ctx context.Context) (map[int64]int, error) {
	counts := make(map[int64]int)

	query, args, err := r.dialect.Builder().From(table).Prepared(true).
		Select(goqu.C("book_id"), goqu.COUNT("*")).
		Where(returnedIs(goqu.C("returned"), false)).
		GroupBy(goqu.C("book_id")).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bookID int64
			n      int
		)
		if err := rows.Scan(&bookID, &n); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		counts[bookID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return counts, nil
}

// ListActiveByUser returns the user's active borrows, oldest first, with the
// book title and author joined in.
func (r *SQLRepository) ListActiveByUser(ctx context.Context, userID int64) ([]*models.Loan, error) {
	query, args, err := r.dialect.Builder().From(goqu.T(table).As("br")).Prepared(true).
		Join(goqu.T("books").As("bk"), goqu.On(goqu.I("br.book_id").Eq(goqu.I("bk.id")))).
		Select(
			goqu.I("br.id"), goqu.I("br.user_id"), goqu.I("br.book_id"),
			goqu.I("br.borrow_date"), goqu.I("br.return_date"), goqu.I("br.returned"),
			goqu.I("bk.title"), goqu.I("bk.author"),
		).
		Where(goqu.I("br.user_id").Eq(userID), returnedIs(goqu.I("br.returned"), false)).
		Order(goqu.I("br.borrow_date").Asc(), goqu.I("br.id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		loan := &models.Loan{}
		var returnDate sql.NullTime
		if err := rows.Scan(&loan.ID, &loan.UserID, &loan.BookID, &loan.BorrowDate, &returnDate,
			&loan.Returned, &loan.BookTitle, &loan.BookAuthor); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if returnDate.Valid {
			loan.ReturnDate = &returnDate.Time
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return loans, nil
}

// DeleteReturnedByBook removes the returned borrow history of a book.
func (r *SQLRepository) DeleteReturnedByBook(ctx context.Context, bookID int64) (int64, error) {
	query, args, err := r.dialect.Builder().Delete(table).Prepared(true).
		Where(goqu.C("book_id").Eq(bookID), returnedIs(goqu.C("returned"), true)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

// returnedIs compares the returned flag through a bound parameter, which both
// dialects accept for a boolean column.
func returnedIs(col exp.Expression, v bool) exp.Expression {
	return goqu.L("? = ?", col, v)
}

func (r *SQLRepository) getOne(ctx context.Context, where goqu.Expression) (*models.Borrow, error) {
	query, args, err := r.dialect.Builder().From(table).Prepared(true).
		Select(columns...).Where(where).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	borrow := &models.Borrow{}
	var returnDate sql.NullTime
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&borrow.ID, &borrow.UserID, &borrow.BookID, &borrow.BorrowDate, &returnDate, &borrow.Returned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if returnDate.Valid {
		borrow.ReturnDate = &returnDate.Time
	}
	return borrow, nil
}
