package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/dbx"
	"github.com/dmitrijs2005/booklend/internal/logging"
	"github.com/dmitrijs2005/booklend/internal/server/availability"
	"github.com/dmitrijs2005/booklend/internal/server/config"
	"github.com/dmitrijs2005/booklend/internal/server/models"
	"github.com/dmitrijs2005/booklend/internal/server/policy"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/borrows"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/repomanager"
)

// LendingService moves a (user, book) pair through None -> Active -> Returned.
type LendingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	tx          txRunner
	now         func() time.Time
}

func NewLendingService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *LendingService {
	return &LendingService{
		db:          db,
		repomanager: m,
		logger:      logger,
		tx:          newTxRunner(db, cfg),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Borrow lends one copy of the book to the acting user.
//
// The book row is locked first, so concurrent borrows of the same book
// run one after another and each sees the borrows committed before it.
// Fails with common.ErrNotFound, common.ErrNoCopiesAvailable or
// common.ErrDuplicateActiveLoan; nothing is written in those cases.
func (s *LendingService) Borrow(ctx context.Context, identity policy.Identity, bookID int64) (*models.Loan, error) {
	if err := policy.Check(identity, policy.Borrow); err != nil {
		return nil, err
	}

	var loan *models.Loan
	err := s.tx.run(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		books := s.repomanager.Books(tx)
		borrows := s.repomanager.Borrows(tx)

		if err := books.Lock(ctx, bookID); err != nil {
			return err
		}
		book, err := books.Get(ctx, bookID)
		if err != nil {
			return err
		}

		active, err := borrows.CountActiveByBook(ctx, bookID)
		if err != nil {
			return err
		}
		if !availability.CanBorrow(book, active) {
			return common.ErrNoCopiesAvailable
		}

		if _, err := borrows.FindActive(ctx, identity.UserID, bookID); err == nil {
			return common.ErrDuplicateActiveLoan
		} else if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		b, err := borrows.Create(ctx, &models.Borrow{
			UserID:     identity.UserID,
			BookID:     bookID,
			BorrowDate: s.now(),
		})
		if err != nil {
			return err
		}

		loan = &models.Loan{Borrow: *b, BookTitle: book.Title, BookAuthor: book.Author}
		return nil
	})
	if err != nil {
		return nil, s.wrap(ctx, "borrow", err, "book_id", bookID, "user_id", identity.UserID)
	}

	s.logger.Info(ctx, "book borrowed", "borrow_id", loan.ID, "book_id", bookID, "user_id", identity.UserID)
	return loan, nil
}

// Return closes the acting user's borrow. Only the borrower may return it.
// A second return is reported as common.ErrAlreadyReturned and changes
// nothing.
func (s *LendingService) Return(ctx context.Context, identity policy.Identity, borrowID int64) (*models.Borrow, error) {
	if err := policy.Check(identity, policy.Return); err != nil {
		return nil, err
	}

	var borrow *models.Borrow
	err := s.tx.run(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		borrows := s.repomanager.Borrows(tx)

		b, err := borrows.Get(ctx, borrowID)
		if err != nil {
			return err
		}
		if b.UserID != identity.UserID {
			return common.ErrForbidden
		}
		if b.Returned {
			return common.ErrAlreadyReturned
		}

		at := s.now()
		if err := borrows.MarkReturned(ctx, b.ID, at); err != nil {
			return err
		}
		b.Returned = true
		b.ReturnDate = &at
		borrow = b
		return nil
	})
	if err != nil {
		return nil, s.wrap(ctx, "return", err, "borrow_id", borrowID, "user_id", identity.UserID)
	}

	s.logger.Info(ctx, "book returned", "borrow_id", borrow.ID, "book_id", borrow.BookID, "user_id", identity.UserID)
	return borrow, nil
}

// ActiveLoans lists the acting user's unreturned borrows.
func (s *LendingService) ActiveLoans(ctx context.Context, identity policy.Identity) ([]*models.Loan, error) {
	if err := policy.Check(identity, policy.ViewOwnLoans); err != nil {
		return nil, err
	}
	loans, err := s.repomanager.Borrows(s.db).ListActiveByUser(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("error listing loans: %w", err)
	}
	return loans, nil
}

// hasActiveLoan reports whether userID currently holds a copy of bookID.
func hasActiveLoan(ctx context.Context, repo borrows.Repository, userID, bookID int64) (bool, error) {
	_, err := repo.FindActive(ctx, userID, bookID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// wrap passes domain errors through unchanged and logs the rest.
func (s *LendingService) wrap(ctx context.Context, op string, err error, args ...any) error {
	if isDomainError(err) {
		return err
	}
	s.logger.Error(ctx, op+" failed", append(args, "error", err)...)
	return fmt.Errorf("error performing %s: %w", op, err)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		common.ErrNotFound,
		common.ErrNoCopiesAvailable,
		common.ErrDuplicateActiveLoan,
		common.ErrAlreadyReturned,
		common.ErrForbidden,
		common.ErrBookInUse,
		common.ErrValidation,
		common.ErrTxConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
