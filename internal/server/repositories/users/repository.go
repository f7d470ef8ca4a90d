package users

import (
	"context"

	"github.com/dmitrijs2005/booklend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	ExistsByUserNameOrEmail(ctx context.Context, userName, email string) (bool, error)
}
