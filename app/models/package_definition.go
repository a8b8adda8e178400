package models

import "time"

const (
	PackageTypeBase    = "BASE"
	PackageTypeUpgrade = "UPGRADE"
)

// PackageDefinition maps a shop SKU to the tier and storage it grants.
type PackageDefinition struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SKU       string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name      string    `gorm:"type:varchar(150)" json:"name"`
	Type      string    `gorm:"type:varchar(16);not null;default:'BASE'" json:"type"`
	Tier      string    `gorm:"type:varchar(50);not null" json:"tier"`
	StorageMB int64     `gorm:"column:storage_mb;not null;default:0" json:"storage_mb"`
	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsUpgrade reports whether the package upgrades an existing event.
func (p *PackageDefinition) IsUpgrade() bool {
	return p.Type == PackageTypeUpgrade
}
