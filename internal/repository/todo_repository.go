package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tomlord1122/family-todo/internal/domain"
)

// TodoRepository defines the interface for todo data operations. Writes that
// touch both a todo row and its owner's reference collection are atomic.
type TodoRepository interface {
	CreateForOwner(ctx context.Context, todo *domain.Todo) error
	FindByID(ctx context.Context, id uint) (*domain.Todo, error)
	ListByOwner(ctx context.Context, ownerID uint, search string, offset, limit int) ([]domain.Todo, int64, error)
	Update(ctx context.Context, id uint, fields map[string]any) (*domain.Todo, error)
	DeleteForOwner(ctx context.Context, ownerID, id uint) (*domain.Todo, error)
	RefIDs(ctx context.Context, ownerID uint) ([]uint, error)
	ReconcileRefs(ctx context.Context, ownerID uint) (added, removed int64, err error)
}

// gormTodoRepository implements TodoRepository using GORM
type gormTodoRepository struct {
	db *gorm.DB
}

func NewGormTodoRepository(db *gorm.DB) TodoRepository {
	return &gormTodoRepository{db: db}
}

// CreateForOwner inserts the todo and appends it to the owner's reference
// collection in one transaction. A missing owner fails on the foreign key.
func (r *gormTodoRepository) CreateForOwner(ctx context.Context, todo *domain.Todo) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(todo).Error; err != nil {
			return err
		}
		ref := &domain.AccountTodo{AccountID: todo.OwnerID, TodoID: todo.ID}
		return tx.Omit(clause.Associations).Create(ref).Error
	})
}

func (r *gormTodoRepository) FindByID(ctx context.Context, id uint) (*domain.Todo, error) {
	var todo domain.Todo
	if err := r.db.WithContext(ctx).First(&todo, id).Error; err != nil {
		return nil, err
	}
	return &todo, nil
}

// ListByOwner returns one page of the owner's todos in creation order and the
// total number of rows matching the same filter.
func (r *gormTodoRepository) ListByOwner(ctx context.Context, ownerID uint, search string, offset, limit int) ([]domain.Todo, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Todo{}).Where("owner_id = ?", ownerID)
	if search = strings.TrimSpace(search); search != "" {
		query = query.Where("title ILIKE ?", "%"+escapeLike(search)+"%")
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	todos := make([]domain.Todo, 0, limit)
	if err := query.Order("id ASC").Offset(offset).Limit(limit).Find(&todos).Error; err != nil {
		return nil, 0, err
	}
	return todos, total, nil
}

// Update applies the given column values and returns the row as stored after
// the update. gorm.ErrRecordNotFound is returned when id does not exist.
func (r *gormTodoRepository) Update(ctx context.Context, id uint, fields map[string]any) (*domain.Todo, error) {
	var updated domain.Todo
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&updated, id).Error; err != nil {
			return err
		}
		if len(fields) > 0 {
			if err := tx.Model(&updated).Updates(fields).Error; err != nil {
				return err
			}
		}
		return tx.First(&updated, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteForOwner removes the todo and its reference row together. Deleting a
// todo that does not exist, or that belongs to another owner, is a no-op and
// returns (nil, nil).
func (r *gormTodoRepository) DeleteForOwner(ctx context.Context, ownerID, id uint) (*domain.Todo, error) {
	var deleted *domain.Todo
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var todos []domain.Todo
		res := tx.Clauses(clause.Returning{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Delete(&todos)
		if res.Error != nil {
			return res.Error
		}
		if len(todos) > 0 {
			deleted = &todos[0]
		}
		return tx.Where("account_id = ? AND todo_id = ?", ownerID, id).
			Delete(&domain.AccountTodo{}).Error
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// RefIDs returns the owner's todo-reference collection in order.
func (r *gormTodoRepository) RefIDs(ctx context.Context, ownerID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&domain.AccountTodo{}).
		Where("account_id = ?", ownerID).
		Order("todo_id ASC").
		Pluck("todo_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ReconcileRefs repairs the owner's reference collection so it mirrors the
// todos table exactly.
func (r *gormTodoRepository) ReconcileRefs(ctx context.Context, ownerID uint) (int64, int64, error) {
	var added, removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			DELETE FROM account_todos r
			WHERE r.account_id = ?
			  AND NOT EXISTS (SELECT 1 FROM todos t WHERE t.id = r.todo_id AND t.owner_id = r.account_id)`,
			ownerID)
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected

		res = tx.Exec(`
			INSERT INTO account_todos (account_id, todo_id, created_at)
			SELECT t.owner_id, t.id, NOW() FROM todos t
			WHERE t.owner_id = ?
			  AND NOT EXISTS (SELECT 1 FROM account_todos r WHERE r.todo_id = t.id)`,
			ownerID)
		if res.Error != nil {
			return res.Error
		}
		added = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return added, removed, nil
}

// IsNotFound reports whether err is GORM's record-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a unique-constraint violation. The
// database is opened with TranslateError so driver errors arrive as GORM's.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// IsForeignKey reports whether err is a foreign-key violation.
func IsForeignKey(err error) bool {
	return errors.Is(err, gorm.ErrForeignKeyViolated)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
