// Package audit records every inbound and replayed webhook attempt and its
// evolving pipeline status.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/EventBooth/app/models"
)

const (
	maxErrorLength = 1000
	updateTimeout  = 5 * time.Second
)

// ErrNotFound is returned when no audit record has the requested id.
var ErrNotFound = errors.New("audit record not found")

// Entry describes a new audit record.
type Entry struct {
	Source      string
	Topic       string
	DeliveryID  string
	Status      string
	Reason      string
	SignatureOK bool
	Payload     []byte
	ReplayOf    string
}

// Patch carries the fields an update changes. Zero values are left alone.
type Patch struct {
	Status    string
	Reason    string
	Err       error
	OrderID   string
	ProductID string
	SKUs      []string
	EventCode string
	UserID    uint
	EventID   uint
}

// Archiver stores purged records before they are deleted.
type Archiver interface {
	PutJSONLines(ctx context.Context, key string, body []byte) error
}

// Log is the webhook audit log.
type Log struct {
	db       *gorm.DB
	archiver Archiver

	wg sync.WaitGroup
}

// NewLog creates an audit log. archiver may be nil.
func NewLog(db *gorm.DB, archiver Archiver) *Log {
	return &Log{db: db, archiver: archiver}
}

// Begin stores a new record. Status defaults to RECEIVED.
func (l *Log) Begin(ctx context.Context, e Entry) (*models.WebhookAuditRecord, error) {
	status := e.Status
	if status == "" {
		status = models.AuditStatusReceived
	}
	sum := sha256.Sum256(e.Payload)

	record := &models.WebhookAuditRecord{
		ID:          uuid.NewString(),
		Source:      e.Source,
		Topic:       strings.TrimSpace(e.Topic),
		DeliveryID:  strings.TrimSpace(e.DeliveryID),
		Status:      status,
		Reason:      e.Reason,
		SignatureOK: e.SignatureOK,
		PayloadHash: hex.EncodeToString(sum[:]),
		Payload:     string(e.Payload),
		ReplayOf:    e.ReplayOf,
	}
	if err := l.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// Update applies p to the record in the background. Failures are logged and
// never reach the caller. Records that already left RECEIVED are not touched.
func (l *Log) Update(id string, p Patch) {
	if id == "" {
		return
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
		defer cancel()
		if err := l.apply(ctx, id, p); err != nil {
			log.Errorf("[Audit] Failed to update record %s: %v", id, err)
		}
	}()
}

// Wait blocks until every pending Update has finished.
func (l *Log) Wait() {
	l.wg.Wait()
}

func (l *Log) apply(ctx context.Context, id string, p Patch) error {
	updates := p.columns()
	if len(updates) == 0 {
		return nil
	}

	res := l.db.WithContext(ctx).
		Model(&models.WebhookAuditRecord{}).
		Where("id = ? AND status = ?", id, models.AuditStatusReceived).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Warnf("[Audit] Record %s is missing or terminal, update skipped", id)
	}
	return nil
}

func (p Patch) columns() map[string]interface{} {
	updates := map[string]interface{}{}
	if p.Status != "" {
		updates["status"] = p.Status
	}
	if p.Reason != "" {
		updates["reason"] = p.Reason
	}
	if p.Err != nil {
		updates["error"] = Truncate(p.Err.Error())
	}
	if p.OrderID != "" {
		updates["order_id"] = p.OrderID
	}
	if p.ProductID != "" {
		updates["product_id"] = p.ProductID
	}
	if len(p.SKUs) > 0 {
		updates["skus"] = strings.Join(p.SKUs, ",")
	}
	if p.EventCode != "" {
		updates["event_code"] = p.EventCode
	}
	if p.UserID != 0 {
		updates["user_id"] = p.UserID
	}
	if p.EventID != 0 {
		updates["event_id"] = p.EventID
	}
	return updates
}

// Truncate shortens error text before it is stored or logged. The cut never
// splits a multibyte rune.
func Truncate(s string) string {
	if len(s) <= maxErrorLength {
		return s
	}
	cut := maxErrorLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Get returns a single record.
func (l *Log) Get(ctx context.Context, id string) (*models.WebhookAuditRecord, error) {
	var record models.WebhookAuditRecord
	err := l.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
