package otps

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/linkup/internal/common"
	"github.com/dmitrijs2005/linkup/internal/dbx"
	"github.com/dmitrijs2005/linkup/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID, code string, ttl time.Duration) (*models.OtpRecord, error) {
	query :=
		`INSERT INTO otp_verifications (user_id, otp, expires_at)
		 VALUES ($1, $2, NOW() + make_interval(secs => $3))
		 RETURNING id, created_at, expires_at`

	rec := &models.OtpRecord{UserID: userID, Code: code}
	err := r.db.QueryRowContext(ctx, query, userID, code, ttl.Seconds()).
		Scan(&rec.ID, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	return rec, nil
}

func (r *PostgresRepository) FindLatestValid(ctx context.Context, userID, code string) (*models.OtpRecord, error) {
	query :=
		`SELECT id, user_id, otp, created_at, expires_at, is_verified
		 FROM otp_verifications
		 WHERE user_id = $1 AND otp = $2 AND expires_at > NOW() AND is_verified = FALSE
		 ORDER BY created_at DESC
		 LIMIT 1`

	rec := &models.OtpRecord{}
	err := r.db.QueryRowContext(ctx, query, userID, code).
		Scan(&rec.ID, &rec.UserID, &rec.Code, &rec.CreatedAt, &rec.ExpiresAt, &rec.IsVerified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	return rec, nil
}

// MarkVerified only updates a still unverified row, so two concurrent
// consumers of the same record cannot both succeed.
func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	query := `UPDATE otp_verifications SET is_verified = TRUE WHERE id = $1 AND is_verified = FALSE`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
