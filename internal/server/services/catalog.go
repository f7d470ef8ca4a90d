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
	"github.com/dmitrijs2005/booklend/internal/server/covers"
	"github.com/dmitrijs2005/booklend/internal/server/models"
	"github.com/dmitrijs2005/booklend/internal/server/policy"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/books"
	"github.com/dmitrijs2005/booklend/internal/server/repositories/repomanager"
)

// BookView is a book with its availability at the time it was read.
type BookView struct {
	models.Book
	ActiveBorrows   int
	AvailableCopies int
}

// BookDetail is the single-book page for the acting identity.
type BookDetail struct {
	BookView
	UserBorrowed bool
	CoverURL     string
}

type CatalogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	tx          txRunner
	covers      covers.Store
	now         func() time.Time
}

// NewCatalogService wires the catalog. coverStore may be nil, which disables
// cover URLs.
func NewCatalogService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger, coverStore covers.Store) *CatalogService {
	return &CatalogService{
		db:          db,
		repomanager: m,
		logger:      logger,
		tx:          newTxRunner(db, cfg),
		covers:      coverStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *CatalogService) CoversEnabled() bool {
	return s.covers != nil
}

func newView(book *models.Book, active int) *BookView {
	return &BookView{
		Book:            *book,
		ActiveBorrows:   active,
		AvailableCopies: availability.AvailableCopies(book, active),
	}
}

// ListCatalog returns the books matching filter ordered by title, each with
// its current availability.
func (s *CatalogService) ListCatalog(ctx context.Context, identity policy.Identity, filter books.Filter) ([]*BookView, error) {
	if err := policy.Check(identity, policy.ViewCatalog); err != nil {
		return nil, err
	}
	return s.listViews(ctx, filter)
}

// Inventory is the administrator's unfiltered listing.
func (s *CatalogService) Inventory(ctx context.Context, identity policy.Identity) ([]*BookView, error) {
	if err := policy.Check(identity, policy.ManageInventory); err != nil {
		return nil, err
	}
	return s.listViews(ctx, books.Filter{})
}

func (s *CatalogService) listViews(ctx context.Context, filter books.Filter) ([]*BookView, error) {
	var views []*BookView
	err := s.tx.run(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		list, err := s.repomanager.Books(tx).List(ctx, filter)
		if err != nil {
			return err
		}

		counts, err := s.repomanager.Borrows(tx).CountActive(ctx)
		if err != nil {
			return err
		}

		views = make([]*BookView, 0, len(list))
		for _, b := range list {
			views = append(views, newView(b, counts[b.ID]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error listing books: %w", err)
	}
	return views, nil
}

// BookDetail returns the book with availability, whether the acting user
// holds a copy (always false when anonymous) and, if stored, a cover URL.
func (s *CatalogService) BookDetail(ctx context.Context, identity policy.Identity, id int64) (*BookDetail, error) {
	if err := policy.Check(identity, policy.ViewBook); err != nil {
		return nil, err
	}

	var detail *BookDetail
	err := s.tx.run(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		book, err := s.repomanager.Books(tx).Get(ctx, id)
		if err != nil {
			return err
		}

		borrows := s.repomanager.Borrows(tx)
		active, err := borrows.CountActiveByBook(ctx, id)
		if err != nil {
			return err
		}
		detail = &BookDetail{BookView: *newView(book, active)}

		if !identity.Authenticated() {
			return nil
		}
		detail.UserBorrowed, err = hasActiveLoan(ctx, borrows, identity.UserID, id)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error loading book: %w", err)
	}

	if detail.CoverKey != "" && s.covers != nil {
		url, err := s.covers.PresignGet(ctx, detail.CoverKey)
		if err != nil {
			s.logger.Warn(ctx, "cover url unavailable", "book_id", id, "error", err)
		} else {
			detail.CoverURL = url
		}
	}

	return detail, nil
}

// AddBook validates the form and adds a title to the catalog.
func (s *CatalogService) AddBook(ctx context.Context, identity policy.Identity, in BookInput) (*models.Book, error) {
	if err := policy.Check(identity, policy.ManageInventory); err != nil {
		return nil, err
	}
	in.normalize()
	if err := validateBook(in); err != nil {
		return nil, err
	}

	book, err := s.repomanager.Books(s.db).Create(ctx, &models.Book{
		Title:       in.Title,
		Author:      in.Author,
		Genre:       in.Genre,
		TotalCopies: in.TotalCopies,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating book: %w", err)
	}

	s.logger.Info(ctx, "book added", "book_id", book.ID, "admin_id", identity.UserID)
	return book, nil
}

// EditBook validates the form and rewrites the book. Lowering the copy count
// below the number of active borrows is allowed; availability then reads 0
// until enough copies come back.
func (s *CatalogService) EditBook(ctx context.Context, identity policy.Identity, id int64, in BookInput) (*models.Book, error) {
	if err := policy.Check(identity, policy.ManageInventory); err != nil {
		return nil, err
	}
	in.normalize()
	if err := validateBook(in); err != nil {
		return nil, err
	}

	var book *models.Book
	err := s.tx.run(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Books(tx)

		b, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		b.Title, b.Author, b.Genre, b.TotalCopies = in.Title, in.Author, in.Genre, in.TotalCopies
		if err := repo.Update(ctx, b); err != nil {
			return err
		}
		book = b
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("error updating book: %w", err)
	}

	s.logger.Info(ctx, "book updated", "book_id", id, "admin_id", identity.UserID)
	return book, nil
}

// DeleteBook removes a book that has no active borrows, together with its
// returned borrow history, in one transaction.
func (s *CatalogService) DeleteBook(ctx context.Context, identity policy.Identity, id int64) error {
	if err := policy.Check(identity, policy.ManageInventory); err != nil {
		return err
	}

	var purged int64
	err := s.tx.run(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		books := s.repomanager.Books(tx)
		borrows := s.repomanager.Borrows(tx)

		if err := books.Lock(ctx, id); err != nil {
			return err
		}
		active, err := borrows.CountActiveByBook(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return common.ErrBookInUse
		}

		if purged, err = borrows.DeleteReturnedByBook(ctx, id); err != nil {
			return err
		}
		return books.Delete(ctx, id)
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		return fmt.Errorf("error deleting book: %w", err)
	}

	s.logger.Info(ctx, "book deleted", "book_id", id, "history_rows", purged, "admin_id", identity.UserID)
	return nil
}

// RequestCoverUpload allocates a new cover key for the book and returns a
// presigned PUT URL the browser uploads the image to.
func (s *CatalogService) RequestCoverUpload(ctx context.Context, identity policy.Identity, id int64) (string, error) {
	if err := policy.Check(identity, policy.ManageInventory); err != nil {
		return "", err
	}
	if s.covers == nil {
		return "", common.ErrCoversDisabled
	}

	key := covers.NewKey(s.now())
	if err := s.repomanager.Books(s.db).SetCoverKey(ctx, id, key); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("error storing cover key: %w", err)
	}

	url, err := s.covers.PresignPut(ctx, key)
	if err != nil {
		return "", fmt.Errorf("error presigning upload: %w", err)
	}

	s.logger.Info(ctx, "cover upload requested", "book_id", id, "key", key)
	return url, nil
}

// CountBooks is used by seeding to decide whether the catalog is empty.
func (s *CatalogService) CountBooks(ctx context.Context) (int, error) {
	return s.repomanager.Books(s.db).Count(ctx)
}
