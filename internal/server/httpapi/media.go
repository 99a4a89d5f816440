package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/linkup/internal/server/models"
	"github.com/dmitrijs2005/linkup/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	uploadField = "file"
	// multipartOverhead covers boundaries and part headers around the file.
	multipartOverhead = 1 << 20
	defaultMaxUpload  = 10 << 20
)

type mediaView struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	OriginalName string    `json:"originalName"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newMediaView(m *models.Media) mediaView {
	return mediaView{
		ID:           m.ID,
		URL:          m.URL,
		OriginalName: m.OriginalName,
		ContentType:  m.ContentType,
		Size:         m.Size,
		CreatedAt:    m.CreatedAt,
	}
}

func (s *Server) maxUpload() int64 {
	if s.opts.MaxUploadSize > 0 {
		return s.opts.MaxUploadSize
	}
	return defaultMaxUpload
}

func (s *Server) uploadMedia(w http.ResponseWriter, r *http.Request, user *models.User) {
	limit := s.maxUpload()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusBadRequest, "File too large", nil)
			return
		}
		s.logger.Warn(r.Context(), "No file uploaded", "user_id", user.ID)
		writeFailure(w, http.StatusBadRequest, "No file uploaded", nil)
		return
	}
	defer file.Close()
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	m, err := s.media.Upload(r.Context(), user.ID, services.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "File uploaded", "user_id", user.ID, "media_id", m.ID)
	writeSuccess(w, m.URL, "File uploaded successfully")
}

func (s *Server) listMedia(w http.ResponseWriter, r *http.Request, user *models.User) {
	items, err := s.media.List(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]mediaView, 0, len(items))
	for _, m := range items {
		out = append(out, newMediaView(m))
	}
	writeSuccess(w, out, "Success")
}

func (s *Server) getMedia(w http.ResponseWriter, r *http.Request, user *models.User) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeFailure(w, http.StatusNotFound, "Not Found", nil)
		return
	}

	m, url, err := s.media.DownloadURL(r.Context(), user.ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view := newMediaView(m)
	writeSuccess(w, struct {
		mediaView
		DownloadURL string `json:"downloadUrl"`
	}{view, url}, "Success")
}
