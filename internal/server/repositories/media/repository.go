package media

import (
	"context"

	"github.com/dmitrijs2005/linkup/internal/server/models"
)

// Repository stores metadata of uploaded files. The bytes themselves live in
// object storage.
type Repository interface {
	Create(ctx context.Context, m *models.Media) (*models.Media, error)
	GetByID(ctx context.Context, userID, id string) (*models.Media, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Media, error)
}
