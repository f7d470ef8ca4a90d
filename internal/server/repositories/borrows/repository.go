package borrows

import (
	"context"
	"time"

	"github.com/dmitrijs2005/booklend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, borrow *models.Borrow) (*models.Borrow, error)
	Get(ctx context.Context, id int64) (*models.Borrow, error)
	MarkReturned(ctx context.Context, id int64, at time.Time) error
	FindActive(ctx context.Context, userID, bookID int64) (*models.Borrow, error)
	CountActiveByBook(ctx context.Context, bookID int64) (int, error)
	CountActive(ctx context.Context) (map[int64]int, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]*models.Loan, error)
	DeleteReturnedByBook(ctx context.Context, bookID int64) (int64, error)
}
