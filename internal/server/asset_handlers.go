package server

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	imageField = "image"
	// multipartOverhead leaves room for boundaries and text fields around the
	// file part.
	multipartOverhead = 1 << 20
)

// fetchAssetHandler streams a stored object. Objects are immutable, so the
// /images route may be cached indefinitely. HEAD reaches here through
// middleware.GetHead and gets headers only.
func (s *Server) fetchAssetHandler(immutable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid image ID provided")
			return
		}

		obj, err := s.assets.Open(r.Context(), id)
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		defer func() {
			if err := obj.Close(); err != nil {
				log.Warn("close asset", "asset", id, "err", err)
			}
		}()

		h := w.Header()
		h.Set("Content-Type", obj.ContentType)
		h.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'none'; sandbox")
		disposition := "inline"
		if obj.Filename != "" {
			if v := mime.FormatMediaType("inline", map[string]string{"filename": obj.Filename}); v != "" {
				disposition = v
			}
		}
		h.Set("Content-Disposition", disposition)
		if obj.SHA256 != "" {
			h.Set("ETag", `"`+obj.SHA256+`"`)
		}
		if immutable {
			h.Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			h.Set("Cache-Control", "private, no-cache")
		}
		w.WriteHeader(http.StatusOK)

		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, obj); err != nil {
			log.Warn("stream asset", "asset", id, "err", err)
		}
	}
}
