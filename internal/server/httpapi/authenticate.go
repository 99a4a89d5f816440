package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/linkup/internal/common"
	"github.com/dmitrijs2005/linkup/internal/server/models"
)

// authenticated resolves the bearer token to a verified user and hands it
// to h explicitly.
func (s *Server) authenticated(h func(w http.ResponseWriter, r *http.Request, user *models.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		if header == "" {
			writeFailure(w, http.StatusUnauthorized, "Access token is required", nil)
			return
		}
		if !strings.HasPrefix(header, common.BearerPrefix) {
			writeFailure(w, http.StatusUnauthorized, "Invalid token format. Use 'Bearer <token>'", nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix))
		if token == "" {
			writeFailure(w, http.StatusUnauthorized, "Access token is required", nil)
			return
		}

		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.logger.Warn(r.Context(), "Authentication failed", "path", r.URL.Path, "error", err)
			s.writeError(w, r, err)
			return
		}

		h(w, r, user)
	}
}
