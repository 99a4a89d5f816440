package otps

import (
	"context"
	"time"

	"github.com/dmitrijs2005/linkup/internal/server/models"
)

// Repository persists one-time passcodes.
type Repository interface {
	// Create stores code for userID, expiring ttl after the database clock.
	Create(ctx context.Context, userID, code string, ttl time.Duration) (*models.OtpRecord, error)
	// FindLatestValid returns the most recently created unexpired, unverified
	// record matching userID and code.
	FindLatestValid(ctx context.Context, userID, code string) (*models.OtpRecord, error)
	// MarkVerified consumes the record. It returns common.ErrorNotFound when
	// the record does not exist or was already consumed.
	MarkVerified(ctx context.Context, id string) error
}
