package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/linkup/internal/common"
	"github.com/dmitrijs2005/linkup/internal/dbx"
	"github.com/dmitrijs2005/linkup/internal/server/models"
)

// PostgresRepository implements media storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a media record and fills in its id and creation time.
func (r *PostgresRepository) Create(ctx context.Context, m *models.Media) (*models.Media, error) {
	query := `
		INSERT INTO media (user_id, storage_key, url, original_name, content_type, size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		m.UserID, m.StorageKey, m.URL, m.OriginalName, m.ContentType, m.Size).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return m, nil
}

// GetByID returns the media record id owned by userID.
func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*models.Media, error) {
	query := `
		SELECT id, user_id, storage_key, url, original_name, content_type, size, created_at
		FROM media WHERE id = $1 AND user_id = $2
	`
	item := &models.Media{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&item.ID, &item.UserID, &item.StorageKey, &item.URL, &item.OriginalName, &item.ContentType, &item.Size, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select media: %w", dbx.Classify(err))
	}
	return item, nil
}

// ListByUser returns all uploads of userID, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Media, error) {
	query := `
		SELECT id, user_id, storage_key, url, original_name, content_type, size, created_at
		FROM media WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select media: %w", dbx.Classify(err))
	}
	defer rows.Close()

	result := make([]*models.Media, 0)
	for rows.Next() {
		var item models.Media
		if err := rows.Scan(&item.ID, &item.UserID, &item.StorageKey, &item.URL, &item.OriginalName,
			&item.ContentType, &item.Size, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
