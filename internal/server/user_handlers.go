package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Tomlord1122/family-todo/internal/assets"
	"github.com/Tomlord1122/family-todo/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type lookupRequest struct {
	Email string `json:"email"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    uint      `json:"userId"`
	Email     string    `json:"email"`
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	profile, err := s.accounts.Register(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]any{"user": profile})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	account, err := s.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	s.startSession(w, r, account.Email, account.ID)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, email string, accountID uint) {
	token, expires, err := s.sessions.Issue(email, accountID)
	if err != nil {
		log.Error("issue session", "account", accountID, "err", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}
	s.sessions.SetCookie(w, token, expires)
	respondWithJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		ExpiresAt: expires,
		UserID:    accountID,
		Email:     email,
	})
}

func (s *Server) lookupUserHandler(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	exists, err := s.accounts.EmailExists(r.Context(), req.Email)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (s *Server) getProfileHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID provided")
		return
	}

	profile, err := s.accounts.Profile(r.Context(), principalEmail(r), accountID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"user": profile})
}

func (s *Server) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID provided")
		return
	}

	var req service.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	profile, err := s.accounts.UpdateProfile(r.Context(), principalEmail(r), accountID, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"user": profile})
}

func (s *Server) updateUserImageHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID provided")
		return
	}

	up, cleanup, err := s.readImageUpload(w, r, true)
	if err != nil {
		return
	}
	defer cleanup()

	resp, err := s.accounts.ReplaceImage(r.Context(), principalEmail(r), accountID, *up)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// readImageUpload opens the multipart "image" field. With required unset a
// missing field yields (nil, noop, nil). Any returned error has already been
// written to w.
func (s *Server) readImageUpload(w http.ResponseWriter, r *http.Request, required bool) (*assets.Upload, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile(imageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondWithError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
		case errors.Is(err, http.ErrMissingFile) && !required:
			return nil, noop, nil
		case errors.Is(err, http.ErrMissingFile):
			respondWithError(w, http.StatusBadRequest, "Multipart field \"image\" is required")
		default:
			respondWithError(w, http.StatusBadRequest, "Request must be multipart/form-data")
		}
		return nil, noop, errBadRequest
	}

	up := &assets.Upload{
		Body:        http.MaxBytesReader(w, file, s.cfg.MaxUploadBytes),
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}
	cleanup := func() {
		_ = file.Close()
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}
	return up, cleanup, nil
}
