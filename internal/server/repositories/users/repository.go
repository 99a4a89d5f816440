package users

import (
	"context"

	"github.com/dmitrijs2005/linkup/internal/server/models"
)

// Repository is the credential store. Lookups are unfiltered: callers apply
// the verification gate themselves.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByLoginName(ctx context.Context, loginName string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	MarkVerified(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
}
