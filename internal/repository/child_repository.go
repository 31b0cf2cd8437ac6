package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tomlord1122/family-todo/internal/domain"
)

// ChildRepository stores child records and their parent links.
type ChildRepository interface {
	Create(ctx context.Context, child *domain.Child) error
	FindByID(ctx context.Context, id uint) (*domain.Child, error)
	ListForAccount(ctx context.Context, accountID uint) ([]domain.Child, error)
	Update(ctx context.Context, id uint, fields map[string]any) (*domain.Child, error)
	SetImage(ctx context.Context, id uint, imageID *uuid.UUID) error
	LinkParent(ctx context.Context, childID, accountID uint) error
	Delete(ctx context.Context, id uint) error
}

type gormChildRepository struct {
	db *gorm.DB
}

func NewGormChildRepository(db *gorm.DB) ChildRepository {
	return &gormChildRepository{db: db}
}

func (r *gormChildRepository) Create(ctx context.Context, child *domain.Child) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(child).Error
}

// FindByID loads the child with its parent links in link order.
func (r *gormChildRepository) FindByID(ctx context.Context, id uint) (*domain.Child, error) {
	var child domain.Child
	err := r.db.WithContext(ctx).
		Preload("Parents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, account_id ASC") }).
		First(&child, id).Error
	if err != nil {
		return nil, err
	}
	return &child, nil
}

// ListForAccount returns the children the account holds custody of or is
// linked to as a parent.
func (r *gormChildRepository) ListForAccount(ctx context.Context, accountID uint) ([]domain.Child, error) {
	var children []domain.Child
	err := r.db.WithContext(ctx).
		Preload("Parents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, account_id ASC") }).
		Where("custodial_id = ?", accountID).
		Or("id IN (?)", r.db.Model(&domain.ChildParent{}).Select("child_id").Where("account_id = ?", accountID)).
		Order("id ASC").
		Find(&children).Error
	if err != nil {
		return nil, err
	}
	return children, nil
}

func (r *gormChildRepository) Update(ctx context.Context, id uint, fields map[string]any) (*domain.Child, error) {
	if len(fields) > 0 {
		res := r.db.WithContext(ctx).Model(&domain.Child{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
	}
	return r.FindByID(ctx, id)
}

func (r *gormChildRepository) SetImage(ctx context.Context, id uint, imageID *uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&domain.Child{}).Where("id = ?", id).Update("image_id", imageID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LinkParent is idempotent: linking an already linked parent does nothing.
func (r *gormChildRepository) LinkParent(ctx context.Context, childID, accountID uint) error {
	link := &domain.ChildParent{ChildID: childID, AccountID: accountID}
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(link).Error
}

// Delete removes the child's parent links and the child row together.
func (r *gormChildRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("child_id = ?", id).Delete(&domain.ChildParent{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Child{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
