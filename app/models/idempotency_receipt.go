package models

import "time"

// IdempotencyReceipt guards provisioning: one row per external order id,
// inserted before any side effect in the same transaction.
type IdempotencyReceipt struct {
	OrderID   string    `gorm:"primaryKey;type:varchar(64)" json:"order_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
