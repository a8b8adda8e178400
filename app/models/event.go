package models

import (
	"time"

	"gorm.io/gorm"
)

// Event is the provisioned resource customers pay for. Code is the public
// reference customers put on upgrade orders; Slug and AccessCode are generated.
type Event struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Code       string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	Slug       string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"slug"`
	AccessCode string         `gorm:"type:varchar(32);not null" json:"-"`
	Name       string         `gorm:"type:varchar(150)" json:"name"`
	OwnerID    uint           `gorm:"not null;index" json:"owner_id"`
	Owner      *User          `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Tier       string         `gorm:"type:varchar(50);not null;default:'base'" json:"tier"`
	StorageMB  int64          `gorm:"column:storage_mb;not null;default:0" json:"storage_mb"`
	IsActive   bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
