package service

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Tomlord1122/family-todo/internal/apperr"
	"github.com/Tomlord1122/family-todo/internal/domain"
	"github.com/Tomlord1122/family-todo/internal/repository"
)

// CreateTodoRequest holds the data needed to create a new todo
type CreateTodoRequest struct {
	Title     string `json:"title"`
	Notes     string `json:"notes"`
	Completed bool   `json:"completed"`
}

// UpdateTodoRequest holds the data for updating an existing todo.
// Using pointers allows distinguishing between a field being omitted
// vs. being set to its zero value (e.g., setting Completed to false).
type UpdateTodoRequest struct {
	Title     *string `json:"title"`
	Notes     *string `json:"notes"`
	Completed *bool   `json:"completed"`
}

// ListTodosRequest selects one page of the principal's todos. Zero Page or
// Limit means the default.
type ListTodosRequest struct {
	Page   int
	Limit  int
	Search string
}

// TodoSummary is the list-shaped todo. Notes are only returned by the detail
// endpoint.
type TodoSummary struct {
	ID        uint   `json:"_id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// TodoResponse is the full representation of a todo.
type TodoResponse struct {
	ID        uint   `json:"_id"`
	Title     string `json:"title"`
	Notes     string `json:"notes"`
	Completed bool   `json:"completed"`
	UserID    uint   `json:"userId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type TodoPage struct {
	Todos      []TodoSummary `json:"todos"`
	Pagination Pagination    `json:"pagination"`
}

// TodoService defines the operations for managing todos. Every operation is
// scoped to the account of the acting principal (its email).
type TodoService interface {
	ListTodos(ctx context.Context, principal string, req ListTodosRequest) (*TodoPage, error)

	GetTodo(ctx context.Context, principal string, id uint) (*TodoResponse, error)

	CreateTodo(ctx context.Context, principal string, req CreateTodoRequest) (*TodoSummary, error)

	UpdateTodo(ctx context.Context, principal string, id uint, req UpdateTodoRequest) (*TodoResponse, error)

	// DeleteTodo is idempotent: it returns (nil, nil) when nothing was deleted.
	DeleteTodo(ctx context.Context, principal string, id uint) (*TodoResponse, error)
}

type todoService struct {
	accounts repository.AccountRepository
	todos    repository.TodoRepository
}

func NewTodoService(accounts repository.AccountRepository, todos repository.TodoRepository) TodoService {
	return &todoService{
		accounts: accounts,
		todos:    todos,
	}
}

func (s *todoService) ListTodos(ctx context.Context, principal string, req ListTodosRequest) (*TodoPage, error) {
	page, limit, err := normalizePage(req.Page, req.Limit)
	if err != nil {
		return nil, err
	}

	account, err := lookupAccount(ctx, s.accounts, principal)
	if err != nil {
		return nil, err
	}

	todos, total, err := s.todos.ListByOwner(ctx, account.ID, req.Search, domain.Offset(page, limit), limit)
	if err != nil {
		log.Error("list todos", "account", account.ID, "err", err)
		return nil, apperr.Store("failed to retrieve todo items", err)
	}

	summaries := make([]TodoSummary, 0, len(todos))
	for _, todo := range todos {
		summaries = append(summaries, toSummary(&todo))
	}

	return &TodoPage{
		Todos: summaries,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: domain.TotalPages(total, limit),
		},
	}, nil
}

func (s *todoService) GetTodo(ctx context.Context, principal string, id uint) (*TodoResponse, error) {
	account, err := lookupAccount(ctx, s.accounts, principal)
	if err != nil {
		return nil, err
	}

	todo, err := s.ownedTodo(ctx, account, id)
	if err != nil {
		return nil, err
	}
	return toResponse(todo), nil
}

func (s *todoService) CreateTodo(ctx context.Context, principal string, req CreateTodoRequest) (*TodoSummary, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperr.Validation("title cannot be empty")
	}

	account, err := lookupAccount(ctx, s.accounts, principal)
	if err != nil {
		return nil, err
	}

	newTodo := &domain.Todo{
		Title:     title,
		Notes:     req.Notes,
		Completed: req.Completed,
		OwnerID:   account.ID,
	}
	if err := s.todos.CreateForOwner(ctx, newTodo); err != nil {
		if repository.IsForeignKey(err) {
			return nil, apperr.NotFound("user %s not found", principal)
		}
		log.Error("create todo", "account", account.ID, "err", err)
		return nil, apperr.Store("failed to create todo item", err)
	}

	summary := toSummary(newTodo)
	return &summary, nil
}

func (s *todoService) UpdateTodo(ctx context.Context, principal string, id uint, req UpdateTodoRequest) (*TodoResponse, error) {
	account, err := lookupAccount(ctx, s.accounts, principal)
	if err != nil {
		return nil, err
	}

	if _, err := s.ownedTodo(ctx, account, id); err != nil {
		return nil, err
	}

	fields := make(map[string]any, 3)
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, apperr.Validation("title cannot be empty")
		}
		fields["title"] = title
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if req.Completed != nil {
		fields["completed"] = *req.Completed
	}

	updated, err := s.todos.Update(ctx, id, fields)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("todo with ID %d not found", id)
		}
		log.Error("update todo", "todo", id, "err", err)
		return nil, apperr.Store("failed to update todo item", err)
	}
	return toResponse(updated), nil
}

func (s *todoService) DeleteTodo(ctx context.Context, principal string, id uint) (*TodoResponse, error) {
	account, err := lookupAccount(ctx, s.accounts, principal)
	if err != nil {
		return nil, err
	}

	deleted, err := s.todos.DeleteForOwner(ctx, account.ID, id)
	if err != nil {
		log.Error("delete todo", "todo", id, "err", err)
		return nil, apperr.Store("failed to delete todo item", err)
	}
	if deleted == nil {
		return nil, nil
	}
	return toResponse(deleted), nil
}

// ownedTodo loads a todo and hides it unless the account owns it.
func (s *todoService) ownedTodo(ctx context.Context, account *domain.Account, id uint) (*domain.Todo, error) {
	todo, err := s.todos.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("todo with ID %d not found", id)
		}
		log.Error("fetch todo", "todo", id, "err", err)
		return nil, apperr.Store("failed to retrieve todo item", err)
	}
	if todo.OwnerID != account.ID {
		return nil, apperr.NotFound("todo with ID %d not found", id)
	}
	return todo, nil
}

func normalizePage(page, limit int) (int, int, error) {
	if page < 0 {
		return 0, 0, apperr.Validation("page must be at least 1")
	}
	if limit < 0 {
		return 0, 0, apperr.Validation("limit must be at least 1")
	}
	if page == 0 {
		page = domain.DefaultPage
	}
	if limit == 0 {
		limit = domain.DefaultLimit
	}
	if limit > domain.MaxLimit {
		limit = domain.MaxLimit
	}
	return page, limit, nil
}

func toSummary(todo *domain.Todo) TodoSummary {
	return TodoSummary{
		ID:        todo.ID,
		Title:     todo.Title,
		Completed: todo.Completed,
	}
}

func toResponse(todo *domain.Todo) *TodoResponse {
	return &TodoResponse{
		ID:        todo.ID,
		Title:     todo.Title,
		Notes:     todo.Notes,
		Completed: todo.Completed,
		UserID:    todo.OwnerID,
		CreatedAt: todo.CreatedAt.Format(time.RFC3339),
		UpdatedAt: todo.UpdatedAt.Format(time.RFC3339),
	}
}
