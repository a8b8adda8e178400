package models

import "time"

const (
	EntitlementStatusActive   = "ACTIVE"
	EntitlementStatusReplaced = "REPLACED"
)

// Entitlement source tags.
const (
	EntitlementSourceWooCommerce = "woocommerce"
)

// EventEntitlement is one grant of access/storage to an event, sourced from a
// single external order. At most one row per event is ACTIVE.
type EventEntitlement struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	EventID           uint      `gorm:"not null;index:idx_event_entitlements_event_status,priority:1" json:"event_id"`
	UserID            uint      `gorm:"not null;index" json:"user_id"`
	Source            string    `gorm:"type:varchar(32);not null" json:"source"`
	ExternalOrderID   string    `gorm:"type:varchar(64);not null;index" json:"external_order_id"`
	ExternalProductID string    `gorm:"type:varchar(64);default:''" json:"external_product_id"`
	SKU               string    `gorm:"type:varchar(100);not null" json:"sku"`
	Tier              string    `gorm:"type:varchar(50);not null" json:"tier"`
	StorageMB         int64     `gorm:"column:storage_mb;not null;default:0" json:"storage_mb"`
	Status            string    `gorm:"type:varchar(16);not null;default:'ACTIVE';index:idx_event_entitlements_event_status,priority:2" json:"status"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the entitlement is the current grant of its event.
func (e *EventEntitlement) IsActive() bool {
	return e.Status == EntitlementStatusActive
}
