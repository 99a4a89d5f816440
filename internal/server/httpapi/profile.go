package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/linkup/internal/server/models"
)

type profileView struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	DateOfBirth     string    `json:"date_of_birth"`
	IsVerified      bool      `json:"is_verified"`
	Bio             *string   `json:"bio"`
	MobileNumber    *string   `json:"mobile_number"`
	Gender          *string   `json:"gender"`
	CoverImage      *string   `json:"cover_image"`
	ProfileImageURL *string   `json:"profile_image_url"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newProfileView(u *models.User) profileView {
	return profileView{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		DateOfBirth:     u.DateOfBirth.Format(time.DateOnly),
		IsVerified:      u.IsVerified,
		Bio:             u.Bio,
		MobileNumber:    u.MobileNumber,
		Gender:          u.Gender,
		CoverImage:      u.CoverImage,
		ProfileImageURL: u.ProfileImageURL,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request, user *models.User) {
	profile, err := s.profiles.Get(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, newProfileView(profile), "Profile retrieved successfully")
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req profileUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.profiles.Update(r.Context(), user.ID, models.ProfileUpdate{
		Bio:             req.Bio,
		MobileNumber:    req.MobileNumber,
		Gender:          req.Gender,
		CoverImage:      req.CoverImage,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "Profile updated", "user_id", user.ID)
	writeSuccess(w, newProfileView(profile), "Profile updated successfully")
}
