package books

import (
	"context"

	"github.com/dmitrijs2005/booklend/internal/server/models"
)

// Filter narrows a catalog listing. Empty fields match everything.
type Filter struct {
	// Genre matches exactly, ignoring case.
	Genre string
	// Query matches title or author as a case-insensitive substring.
	Query string
}

type Repository interface {
	Create(ctx context.Context, book *models.Book) (*models.Book, error)
	Get(ctx context.Context, id int64) (*models.Book, error)
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter Filter) ([]*models.Book, error)
	Count(ctx context.Context) (int, error)
	Lock(ctx context.Context, id int64) error
	SetCoverKey(ctx context.Context, id int64, key string) error
}
