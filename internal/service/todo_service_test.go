package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/family-todo/internal/apperr"
)

func newTodoFixture(t *testing.T) (TodoService, *fakeAccounts, *fakeTodos) {
	t.Helper()
	accounts := newFakeAccounts()
	todos := newFakeTodos()
	accounts.add("ann@example.com", "Ann")
	accounts.add("bob@example.com", "Bob")
	return NewTodoService(accounts, todos), accounts, todos
}

func TestCreateTodoThenListIncludesIt(t *testing.T) {
	svc, _, todos := newTodoFixture(t)
	ctx := context.Background()

	created, err := svc.CreateTodo(ctx, "ann@example.com", CreateTodoRequest{Title: "Buy milk"})
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", created.Title)
	assert.False(t, created.Completed)

	page, err := svc.ListTodos(ctx, "ann@example.com", ListTodosRequest{})
	require.NoError(t, err)
	require.Len(t, page.Todos, 1)
	assert.Equal(t, created.ID, page.Todos[0].ID)
	assert.Equal(t, Pagination{Page: 1, Limit: 10, Total: 1, TotalPages: 1}, page.Pagination)

	refs, err := todos.RefIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{created.ID}, refs)
}

func TestCreateTodoValidation(t *testing.T) {
	svc, _, todos := newTodoFixture(t)

	_, err := svc.CreateTodo(context.Background(), "ann@example.com", CreateTodoRequest{Title: "   "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, todos.rows)
}

func TestUnauthenticatedFailsBeforeStoreAccess(t *testing.T) {
	svc, _, todos := newTodoFixture(t)
	todos.fail = errBoom
	ctx := context.Background()

	_, err := svc.ListTodos(ctx, "", ListTodosRequest{})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = svc.CreateTodo(ctx, "", CreateTodoRequest{Title: "x"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestUnknownPrincipalIsNotFound(t *testing.T) {
	svc, _, _ := newTodoFixture(t)

	_, err := svc.CreateTodo(context.Background(), "ghost@example.com", CreateTodoRequest{Title: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListTodosPagination(t *testing.T) {
	svc, _, _ := newTodoFixture(t)
	ctx := context.Background()

	for i := range 25 {
		_, err := svc.CreateTodo(ctx, "ann@example.com", CreateTodoRequest{Title: fmt.Sprintf("task %02d", i)})
		require.NoError(t, err)
	}

	page, err := svc.ListTodos(ctx, "ann@example.com", ListTodosRequest{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Todos, 5)
	assert.Equal(t, "task 20", page.Todos[0].Title)
	assert.Equal(t, Pagination{Page: 3, Limit: 10, Total: 25, TotalPages: 3}, page.Pagination)

	page, err = svc.ListTodos(ctx, "ann@example.com", ListTodosRequest{Page: 4, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Todos)
	assert.Equal(t, int64(25), page.Pagination.Total)

	page, err = svc.ListTodos(ctx, "ann@example.com", ListTodosRequest{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Pagination.Limit)
	assert.Len(t, page.Todos, 25)

	_, err = svc.ListTodos(ctx, "ann@example.com", ListTodosRequest{Page: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListTodosHugePageIsEmpty(t *testing.T) {
	svc, _, _ := newTodoFixture(t)
	ctx := context.Background()

	_, err := svc.CreateTodo(ctx, "ann@example.com", CreateTodoRequest{Title: "only"})
	require.NoError(t, err)

	page, err := svc.ListTodos(ctx, "ann@example.com", ListTodosRequest{Page: 1844674407370955161, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Todos)
	assert.Equal(t, int64(1), page.Pagination.Total)
	assert.Equal(t, 1844674407370955161, page.Pagination.Page)
}

func TestListTodosSearchIsCaseInsensitive(t *testing.T) {
	svc, _, _ := newTodoFixture(t)
	ctx := context.Background()

	for _, title := range []string{"Buy milk", "MILKSHAKE", "Walk dog"} {
		_, err := svc.CreateTodo(ctx, "ann@example.com", CreateTodoRequest{Title: title})
		require.NoError(t, err)
	}

	page, err := svc.ListTodos(ctx, "ann@example.com", ListTodosRequest{Search: "milk"})
	require.NoError(t, err)
	assert.Len(t, page.Todos, 2)
	assert.Equal(t, int64(2), page.Pagination.Total)
}

func TestListTodosOnlyReturnsOwnTodos(t *testing.T) {
	svc, _, _ := newTodoFixture(t)
	ctx := context.Background()

	_, err := svc.CreateTodo(ctx, "bob@example.com", CreateTodoRequest{Title: "bob's"})
	require.NoError(t, err)

	page, err := svc.ListTodos(ctx, "ann@example.com", ListTodosRequest{})
	require.NoError(t, err)
	assert.Empty(t, page.Todos)
}

func TestGetTodoHidesOtherOwners(t *testing.T) {
	svc, _, _ := newTodoFixture(t)
	ctx := context.Background()

	created, err := svc.CreateTodo(ctx, "bob@example.com", CreateTodoRequest{Title: "private", Notes: "n"})
	require.NoError(t, err)

	got, err := svc.GetTodo(ctx, "bob@example.com", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "n", got.Notes)
	assert.Equal(t, uint(2), got.UserID)

	_, err = svc.GetTodo(ctx, "ann@example.com", created.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateTodoPartialFields(t *testing.T) {
	svc, _, _ := newTodoFixture(t)
	ctx := context.Background()

	created, err := svc.CreateTodo(ctx, "ann@example.com", CreateTodoRequest{Title: "draft", Notes: "keep"})
	require.NoError(t, err)

	done := true
	updated, err := svc.UpdateTodo(ctx, "ann@example.com", created.ID, UpdateTodoRequest{Completed: &done})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "draft", updated.Title)
	assert.Equal(t, "keep", updated.Notes)

	empty := ""
	_, err = svc.UpdateTodo(ctx, "ann@example.com", created.ID, UpdateTodoRequest{Title: &empty})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.UpdateTodo(ctx, "bob@example.com", created.ID, UpdateTodoRequest{Completed: &done})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.UpdateTodo(ctx, "ann@example.com", 999, UpdateTodoRequest{Completed: &done})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteTodoRemovesRecordAndReference(t *testing.T) {
	svc, _, todos := newTodoFixture(t)
	ctx := context.Background()

	created, err := svc.CreateTodo(ctx, "ann@example.com", CreateTodoRequest{Title: "gone soon"})
	require.NoError(t, err)

	deleted, err := svc.DeleteTodo(ctx, "ann@example.com", created.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, "gone soon", deleted.Title)

	_, err = svc.GetTodo(ctx, "ann@example.com", created.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	refs, err := todos.RefIDs(ctx, 1)
	require.NoError(t, err)
	assert.NotContains(t, refs, created.ID)

	again, err := svc.DeleteTodo(ctx, "ann@example.com", created.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestDeleteTodoOfAnotherOwnerIsNoop(t *testing.T) {
	svc, _, _ := newTodoFixture(t)
	ctx := context.Background()

	created, err := svc.CreateTodo(ctx, "bob@example.com", CreateTodoRequest{Title: "bob's"})
	require.NoError(t, err)

	deleted, err := svc.DeleteTodo(ctx, "ann@example.com", created.ID)
	require.NoError(t, err)
	assert.Nil(t, deleted)

	_, err = svc.GetTodo(ctx, "bob@example.com", created.ID)
	assert.NoError(t, err)
}

func TestStoreFailureIsStoreKind(t *testing.T) {
	svc, _, todos := newTodoFixture(t)
	todos.fail = errBoom

	_, err := svc.ListTodos(context.Background(), "ann@example.com", ListTodosRequest{})
	assert.ErrorIs(t, err, apperr.ErrStore)
	assert.ErrorIs(t, err, errBoom)
}
