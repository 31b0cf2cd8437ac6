package domain

import (
	"time"

	"github.com/google/uuid"
)

// Asset is the metadata row for an uploaded binary object. The bytes live in
// a Postgres large object identified by ObjectOID; rows are immutable.
type Asset struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ObjectOID   uint32    `gorm:"type:oid;not null"`
	ContentType string    `gorm:"not null"`
	Filename    string    `gorm:"not null;default:''"`
	Size        int64     `gorm:"not null"`
	SHA256      string    `gorm:"column:sha256;size:64;not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}
