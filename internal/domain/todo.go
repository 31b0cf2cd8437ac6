package domain

import "time"

// Todo is a task owned by exactly one Account. OwnerID never changes after
// creation.
type Todo struct {
	ID        uint     `gorm:"primarykey"`
	Title     string   `gorm:"not null"`
	Notes     string   `gorm:"not null;default:''"`
	Completed bool     `gorm:"not null;default:false;index:idx_todos_owner_completed,priority:2"`
	OwnerID   uint     `gorm:"not null;index:idx_todos_owner_completed,priority:1"`
	Owner     *Account `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountTodo is one entry in an account's ordered todo-reference collection.
// Rows are written in the same transaction as the todo they point at.
type AccountTodo struct {
	AccountID uint     `gorm:"primaryKey"`
	TodoID    uint     `gorm:"primaryKey;uniqueIndex"`
	Account   *Account `gorm:"constraint:OnDelete:CASCADE"`
	Todo      *Todo    `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
}
