package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/booklend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID int64, token string, expiresAt time.Time) (*models.Session, error)
	Find(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
