package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/linkup/internal/server/services"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.normalize()

	dob, err := req.validate()
	if err != nil {
		s.logger.Warn(r.Context(), "Validation failed", "path", r.URL.Path)
		s.writeError(w, r, err)
		return
	}

	res, err := s.auth.Register(r.Context(), services.RegisterInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DateOfBirth: dob,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"userId": res.UserID, "email": res.Email}, "Registered")
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, err := s.auth.Login(r.Context(), req.LoginName, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"token": token}, "Login successful")
}

func (s *Server) confirmRegistration(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, err := s.auth.ConfirmRegistration(r.Context(), req.Email, req.Otp)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"token": token}, "Account verified")
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.auth.InitiateForgotPassword(r.Context(), req.LoginName); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSuccess(w, nil, "OTP sent")
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.auth.ChangePassword(r.Context(), req.LoginName, req.Otp, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSuccess(w, nil, "Password changed successfully")
}

func (s *Server) generateUsername(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	name, err := s.auth.GenerateUsername(r.Context(), req.Username, req.FirstName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"username": name}, "Username generated")
}

type validateUsernameResponse struct {
	Available   bool     `json:"available"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (s *Server) validateUsername(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	ok, suggestions, err := s.auth.ValidateUsername(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msg := "Username is available"
	if !ok {
		msg = "Username is taken"
	}
	writeSuccess(w, validateUsernameResponse{Available: ok, Suggestions: suggestions}, msg)
}
