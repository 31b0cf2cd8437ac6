package domain

import (
	"time"

	"github.com/google/uuid"
)

// Child is a record held by one custodial account and optionally shared with
// other parent accounts. Only the custodial account may delete it.
type Child struct {
	ID          uint       `gorm:"primarykey"`
	Name        string     `gorm:"not null"`
	Birthdate   *time.Time `gorm:"type:date"`
	ImageID     *uuid.UUID `gorm:"type:uuid;index"`
	CustodialID uint       `gorm:"not null;index"`
	Custodial   *Account   `gorm:"constraint:OnDelete:CASCADE"`
	Parents     []ChildParent
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChildParent links a non-custodial parent account to a child.
type ChildParent struct {
	ChildID   uint     `gorm:"primaryKey"`
	AccountID uint     `gorm:"primaryKey;index"`
	Child     *Child   `gorm:"constraint:OnDelete:CASCADE"`
	Account   *Account `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
}

// IsCustodial reports whether accountID holds custody of the child.
func (c *Child) IsCustodial(accountID uint) bool {
	return c.CustodialID == accountID
}

// CanRead reports whether accountID is the custodial or a linked parent.
func (c *Child) CanRead(accountID uint) bool {
	if c.IsCustodial(accountID) {
		return true
	}
	for _, p := range c.Parents {
		if p.AccountID == accountID {
			return true
		}
	}
	return false
}

// ParentIDs lists linked non-custodial parents in link order.
func (c *Child) ParentIDs() []uint {
	ids := make([]uint, 0, len(c.Parents))
	for _, p := range c.Parents {
		ids = append(ids, p.AccountID)
	}
	return ids
}
