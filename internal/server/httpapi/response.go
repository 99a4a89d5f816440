package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/linkup/internal/common"
)

const (
	msgValidation = "Validation Error"
	msgInternal   = "Internal Server Error"
)

type successEnvelope struct {
	ResponseCode    int    `json:"ResponseCode"`
	ResponseMessage string `json:"ResponseMessage"`
	Data            any    `json:"Data"`
}

type errorEnvelope struct {
	ResponseCode    int    `json:"ResponseCode"`
	ResponseMessage string `json:"ResponseMessage"`
	Error           any    `json:"Error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, successEnvelope{
		ResponseCode:    http.StatusOK,
		ResponseMessage: message,
		Data:            data,
	})
}

func writeFailure(w http.ResponseWriter, status int, message string, detail any) {
	writeJSON(w, status, errorEnvelope{
		ResponseCode:    status,
		ResponseMessage: message,
		Error:           detail,
	})
}

// duplicateMessages is what a unique violation looks like to the client.
var duplicateMessages = map[string]string{
	"username": "Username must be unique",
	"email":    "Email must be unique",
}

// writeError maps domain errors to fixed statuses. Anything unrecognised is
// logged and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *common.ValidationError
		dup  *common.DuplicateKeyError
	)

	switch {
	case errors.As(err, &verr):
		writeFailure(w, http.StatusBadRequest, msgValidation, verr.Fields)
	case errors.As(err, &dup):
		detail := make(map[string]string, len(dup.Fields))
		for _, f := range dup.Fields {
			msg, ok := duplicateMessages[f]
			if !ok {
				msg = f + " already exists"
			}
			detail["[body."+f+"]"] = msg
		}
		writeFailure(w, http.StatusBadRequest, msgValidation, detail)
	case errors.Is(err, common.ErrInvalidCredentials):
		writeFailure(w, http.StatusUnauthorized, "Invalid email or password", nil)
	case errors.Is(err, common.ErrInvalidOtp):
		writeFailure(w, http.StatusBadRequest, "Invalid or expired OTP", nil)
	case errors.Is(err, common.ErrSamePassword):
		writeFailure(w, http.StatusBadRequest, "New password must be different from the current password", nil)
	case errors.Is(err, common.ErrNoProfileData):
		writeFailure(w, http.StatusBadRequest, "No profile data provided for update", nil)
	case errors.Is(err, common.ErrInvalidFile):
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, common.ErrorNotFound):
		writeFailure(w, http.StatusNotFound, "Not Found", nil)
	case errors.Is(err, common.ErrTokenExpired):
		writeFailure(w, http.StatusUnauthorized, "Token has expired", nil)
	case errors.Is(err, common.ErrTokenNotYetValid):
		writeFailure(w, http.StatusUnauthorized, "Token not active", nil)
	case errors.Is(err, common.ErrInvalidToken):
		writeFailure(w, http.StatusUnauthorized, "Invalid token", nil)
	case errors.Is(err, common.ErrorUnauthorized):
		writeFailure(w, http.StatusUnauthorized, "User not found", nil)
	case errors.Is(err, common.ErrAccountNotVerified):
		writeFailure(w, http.StatusForbidden, "Account not verified", nil)
	case errors.Is(err, common.ErrUsernameExhausted):
		writeFailure(w, http.StatusConflict, "Could not generate a unique username", nil)
	case errors.Is(err, common.ErrTransient):
		s.logger.Warn(r.Context(), "transient failure", "path", r.URL.Path, "error", err)
		writeFailure(w, http.StatusServiceUnavailable, "Service temporarily unavailable", nil)
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeFailure(w, http.StatusInternalServerError, msgInternal, nil)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &common.ValidationError{Fields: map[string]string{"[body]": "Request body must be valid JSON"}}
	}
	return nil
}

const maxJSONBody = 1 << 20
