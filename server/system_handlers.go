package server

import (
	"net/http"
	"strconv"

	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/rs/zerolog/log"
)

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// PreflightHandler answers OPTIONS requests that CorsMiddleware let through.
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// UploadHandler serves images held by the in-memory object store.
func (s *Server) UploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		data, contentType, err := s.uploads.Get(key)
		if err != nil {
			if !apperrors.Is(err, apperrors.ErrNotFound) {
				log.Err(err).Str("key", key).Msg("failed to read upload")
			}
			http.Error(w, "404 - Not Found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
		_, _ = w.Write(data)
	}
}
