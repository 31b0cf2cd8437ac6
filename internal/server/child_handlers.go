package server

import (
	"mime"
	"net/http"

	"github.com/Tomlord1122/family-todo/internal/service"
)

type childRequest struct {
	Name     *string `json:"name"`
	Birthday *string `json:"birthday"`
}

type linkParentRequest struct {
	Email string `json:"email"`
}

func (s *Server) createChildHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID provided")
		return
	}

	in, cleanup, ok := s.readChildInput(w, r)
	if !ok {
		return
	}
	defer cleanup()

	child, err := s.children.CreateChild(r.Context(), principalEmail(r), accountID, in)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]any{"child": child})
}

func (s *Server) listChildrenHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID provided")
		return
	}

	children, err := s.children.ListChildren(r.Context(), principalEmail(r), accountID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"children": children})
}

func (s *Server) getChildHandler(w http.ResponseWriter, r *http.Request) {
	accountID, childID, ok := childParams(w, r)
	if !ok {
		return
	}

	child, err := s.children.GetChild(r.Context(), principalEmail(r), accountID, childID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"child": child})
}

func (s *Server) updateChildHandler(w http.ResponseWriter, r *http.Request) {
	accountID, childID, ok := childParams(w, r)
	if !ok {
		return
	}

	in, cleanup, ok := s.readChildInput(w, r)
	if !ok {
		return
	}
	defer cleanup()

	child, err := s.children.UpdateChild(r.Context(), principalEmail(r), accountID, childID, in)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"child": child})
}

func (s *Server) deleteChildHandler(w http.ResponseWriter, r *http.Request) {
	accountID, childID, ok := childParams(w, r)
	if !ok {
		return
	}

	if err := s.children.DeleteChild(r.Context(), principalEmail(r), accountID, childID); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) linkParentHandler(w http.ResponseWriter, r *http.Request) {
	accountID, childID, ok := childParams(w, r)
	if !ok {
		return
	}

	var req linkParentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	child, err := s.children.LinkParent(r.Context(), principalEmail(r), accountID, childID, req.Email)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"child": child})
}

func childParams(w http.ResponseWriter, r *http.Request) (uint, uint, bool) {
	accountID, ok := accountParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID provided")
		return 0, 0, false
	}
	childID, ok := uintParam(r, "childID")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid child ID provided")
		return 0, 0, false
	}
	return accountID, childID, true
}

// readChildInput accepts either a JSON body or a multipart form whose
// optional "image" part becomes the child's picture.
func (s *Server) readChildInput(w http.ResponseWriter, r *http.Request) (service.ChildInput, func(), bool) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		req     childRequest
		in      service.ChildInput
		cleanup = noop
	)
	if mediaType == "multipart/form-data" {
		up, done, err := s.readImageUpload(w, r, false)
		if err != nil {
			return in, noop, false
		}
		cleanup = done
		in.Image = up
		if values, ok := r.MultipartForm.Value["name"]; ok && len(values) > 0 {
			req.Name = &values[0]
		}
		if values, ok := r.MultipartForm.Value["birthday"]; ok && len(values) > 0 {
			req.Birthday = &values[0]
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		return in, noop, false
	}

	in.Name = req.Name
	if req.Birthday != nil {
		birth, err := service.ParseBirthdate(*req.Birthday)
		if err != nil {
			cleanup()
			respondWithAppError(w, r, err)
			return in, noop, false
		}
		in.Birthdate = birth
	}
	return in, cleanup, true
}
