package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/linkup/internal/common"
	"github.com/dmitrijs2005/linkup/internal/dbx"
	"github.com/dmitrijs2005/linkup/internal/server/config"
	"github.com/dmitrijs2005/linkup/internal/server/models"
	"github.com/dmitrijs2005/linkup/internal/server/repositories/repomanager"
)

// ProfileService reads and edits the profile part of a user row.
type ProfileService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	queryTimeout time.Duration
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *ProfileService {
	return &ProfileService{db: db, repomanager: m, queryTimeout: cfg.QueryTimeout}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	user, err := s.repomanager.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load profile: %w", dbx.Classify(err))
	}
	return user, nil
}

// Update applies the supplied fields. An update with no fields is rejected
// with common.ErrNoProfileData.
func (s *ProfileService) Update(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error) {
	if upd.Empty() {
		return nil, common.ErrNoProfileData
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	user, err := s.repomanager.Users(s.db).UpdateProfile(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrNoProfileData) {
			return nil, err
		}
		return nil, fmt.Errorf("update profile: %w", dbx.Classify(err))
	}
	return user, nil
}
