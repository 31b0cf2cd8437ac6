package server

import (
	"net/http"
	"strconv"

	"github.com/Tomlord1122/family-todo/internal/service"
)

func (s *Server) createTodoHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	todo, err := s.todos.CreateTodo(r.Context(), principalEmail(r), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]any{"todo": todo})
}

func (s *Server) listTodosHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, ok := positiveQueryInt(query.Get("page"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	limit, ok := positiveQueryInt(query.Get("limit"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	result, err := s.todos.ListTodos(r.Context(), principalEmail(r), service.ListTodosRequest{
		Page:   page,
		Limit:  limit,
		Search: query.Get("search"),
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (s *Server) getTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid todo ID provided")
		return
	}

	todo, err := s.todos.GetTodo(r.Context(), principalEmail(r), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"todo": todo})
}

func (s *Server) updateTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid todo ID provided")
		return
	}

	var req service.UpdateTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	updated, err := s.todos.UpdateTodo(r.Context(), principalEmail(r), id, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func (s *Server) deleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid todo ID provided")
		return
	}

	deleted, err := s.todos.DeleteTodo(r.Context(), principalEmail(r), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"deletedTodo": deleted})
}

// positiveQueryInt parses an optional query value. Absent means zero, which
// the service replaces with its default.
func positiveQueryInt(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
