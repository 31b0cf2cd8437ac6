package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Tomlord1122/family-todo/internal/session"
)

// requirePrincipal rejects requests without a valid session before any
// handler runs.
func (s *Server) requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.sessions.Resolve(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "user not authenticated")
			return
		}
		next.ServeHTTP(w, r.WithContext(session.WithPrincipal(r.Context(), p)))
	})
}

// principalEmail returns the principal placed in the context by
// requirePrincipal, or "" when there is none.
func principalEmail(r *http.Request) string {
	p, _ := session.FromContext(r.Context())
	return p.Email
}

// uintParam parses a positive numeric URL parameter.
func uintParam(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// accountParam reads the {id} account segment. "me" maps to zero, which the
// services treat as the principal's own account.
func accountParam(r *http.Request) (uint, bool) {
	if chi.URLParam(r, "id") == "me" {
		return 0, true
	}
	return uintParam(r, "id")
}
