package models

import (
	"strings"
	"time"
)

const (
	AuditStatusReceived  = "RECEIVED"
	AuditStatusForbidden = "FORBIDDEN"
	AuditStatusIgnored   = "IGNORED"
	AuditStatusFailed    = "FAILED"
	AuditStatusProcessed = "PROCESSED"
)

// Audit record source tags.
const (
	AuditSourceWooCommerce = "woocommerce"
	AuditSourceReplay      = "replay"
)

// WebhookAuditRecord stores one inbound or replayed webhook attempt and its
// evolving pipeline status. Terminal records are only removed by purge.
type WebhookAuditRecord struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Source      string    `gorm:"type:varchar(32);not null;index" json:"source"`
	Topic       string    `gorm:"type:varchar(100);not null;default:'';index" json:"topic"`
	DeliveryID  string    `gorm:"type:varchar(100);default:''" json:"delivery_id"`
	Status      string    `gorm:"type:varchar(16);not null;index" json:"status"`
	Reason      string    `gorm:"type:varchar(100);default:''" json:"reason"`
	Error       string    `gorm:"type:text" json:"error"`
	SignatureOK bool      `gorm:"column:signature_ok;default:false" json:"signature_ok"`
	PayloadHash string    `gorm:"type:varchar(64);index" json:"payload_hash"`
	Payload     string    `gorm:"type:longtext" json:"payload"`
	OrderID     string    `gorm:"type:varchar(64);default:'';index" json:"order_id"`
	ProductID   string    `gorm:"type:varchar(64);default:''" json:"product_id"`
	SKUs        string    `gorm:"column:skus;type:varchar(500);default:''" json:"skus"`
	EventCode   string    `gorm:"type:varchar(32);default:''" json:"event_code"`
	UserID      *uint     `gorm:"default:null" json:"user_id,omitempty"`
	EventID     *uint     `gorm:"default:null" json:"event_id,omitempty"`
	ReplayOf    string    `gorm:"type:varchar(36);default:''" json:"replay_of,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the record reached a final status.
func (r *WebhookAuditRecord) IsTerminal() bool {
	return IsTerminalAuditStatus(r.Status)
}

// SKUList splits the stored comma separated SKU list.
func (r *WebhookAuditRecord) SKUList() []string {
	if strings.TrimSpace(r.SKUs) == "" {
		return nil
	}
	parts := strings.Split(r.SKUs, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func IsTerminalAuditStatus(status string) bool {
	switch status {
	case AuditStatusForbidden, AuditStatusIgnored, AuditStatusFailed, AuditStatusProcessed:
		return true
	default:
		return false
	}
}
