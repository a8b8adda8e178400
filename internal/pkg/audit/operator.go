package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/EventBooth/app/models"
	"github.com/ManuelReschke/EventBooth/internal/pkg/archive"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	purgeBatchSize  = 500
)

// ErrInvalidPurge is returned for a purge without a positive age.
var ErrInvalidPurge = errors.New("purge requires a positive older_than age")

// Filter narrows List results.
type Filter struct {
	Status  string
	Topic   string
	OrderID string
	Page    int
	Limit   int
}

// Normalized applies the default page and the page size cap.
func (f Filter) Normalized() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return f
}

// List returns one page of records, newest first, and the total match count.
func (l *Log) List(ctx context.Context, f Filter) ([]models.WebhookAuditRecord, int64, error) {
	f = f.Normalized()

	q := l.db.WithContext(ctx).Model(&models.WebhookAuditRecord{})
	if f.Status != "" {
		q = q.Where("status = ?", strings.ToUpper(f.Status))
	}
	if f.Topic != "" {
		q = q.Where("topic = ?", f.Topic)
	}
	if f.OrderID != "" {
		q = q.Where("order_id = ?", f.OrderID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.WebhookAuditRecord
	err := q.Order("created_at DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// PurgeRequest selects records for deletion.
type PurgeRequest struct {
	OlderThan time.Duration
	Statuses  []string
	Topics    []string
}

// PurgeResult summarizes a purge.
type PurgeResult struct {
	Deleted    int64    `json:"deleted"`
	ArchiveKey string   `json:"archiveKey,omitempty"`
	Cutoff     string   `json:"cutoff"`
	Statuses   []string `json:"statuses,omitempty"`
	Topics     []string `json:"topics,omitempty"`
}

// Purge deletes records older than the requested age. With an archiver
// configured the selected rows are uploaded first and nothing is deleted if
// the upload fails. Entitlement state is never touched.
func (l *Log) Purge(ctx context.Context, req PurgeRequest) (*PurgeResult, error) {
	if req.OlderThan <= 0 {
		return nil, ErrInvalidPurge
	}
	now := time.Now()
	cutoff := now.Add(-req.OlderThan)

	statuses := make([]string, 0, len(req.Statuses))
	for _, s := range req.Statuses {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			statuses = append(statuses, s)
		}
	}
	topics := make([]string, 0, len(req.Topics))
	for _, t := range req.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("created_at < ?", cutoff)
		if len(statuses) > 0 {
			db = db.Where("status IN ?", statuses)
		}
		if len(topics) > 0 {
			db = db.Where("topic IN ?", topics)
		}
		return db
	}

	result := &PurgeResult{Cutoff: cutoff.UTC().Format(time.RFC3339), Statuses: statuses, Topics: topics}
	db := l.db.WithContext(ctx)

	if l.archiver != nil {
		body, n, err := l.exportJSONLines(db.Scopes(scope))
		if err != nil {
			return nil, fmt.Errorf("export audit records: %w", err)
		}
		if n > 0 {
			key := archive.PurgeKey(now)
			if err := l.archiver.PutJSONLines(ctx, key, body); err != nil {
				return nil, fmt.Errorf("archive audit records: %w", err)
			}
			result.ArchiveKey = key
		}
	}

	res := db.Scopes(scope).Delete(&models.WebhookAuditRecord{})
	if res.Error != nil {
		return nil, res.Error
	}
	result.Deleted = res.RowsAffected
	log.Infof("[Audit] Purged %d records older than %s", result.Deleted, result.Cutoff)
	return result, nil
}

func (l *Log) exportJSONLines(q *gorm.DB) ([]byte, int, error) {
	var (
		buf   bytes.Buffer
		count int
		batch []models.WebhookAuditRecord
	)
	enc := json.NewEncoder(&buf)
	err := q.FindInBatches(&batch, purgeBatchSize, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			if err := enc.Encode(&batch[i]); err != nil {
				return err
			}
		}
		count += len(batch)
		return nil
	}).Error
	if err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), count, nil
}

// PackageUsage is one catalog row and how often its SKU shows up in the log.
type PackageUsage struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Tier       string `json:"tier"`
	StorageMB  int64  `json:"storageMb"`
	Active     bool   `json:"active"`
	SeenInLogs int    `json:"seenInLogs"`
}

// OrphanSKU is a SKU seen in webhooks that has no catalog row.
type OrphanSKU struct {
	SKU         string    `json:"sku"`
	Occurrences int       `json:"occurrences"`
	LastSeen    time.Time `json:"lastSeen"`
}

// SKUReport is the read-only SKU to package mapping report.
type SKUReport struct {
	Packages []PackageUsage `json:"packages"`
	Orphaned []OrphanSKU    `json:"orphaned"`
}

type skuRow struct {
	SKUs      string `gorm:"column:skus"`
	CreatedAt time.Time
}

// SKUReport lists every catalog package with its usage and the SKUs seen in
// the log that are missing from the catalog.
func (l *Log) SKUReport(ctx context.Context) (*SKUReport, error) {
	db := l.db.WithContext(ctx)

	var packages []models.PackageDefinition
	if err := db.Order("sku ASC").Find(&packages).Error; err != nil {
		return nil, err
	}

	rows, err := db.Model(&models.WebhookAuditRecord{}).
		Select("skus", "created_at").
		Where("skus <> ''").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := map[string]*OrphanSKU{}
	for rows.Next() {
		var row skuRow
		if err := db.ScanRows(rows, &row); err != nil {
			return nil, err
		}
		rec := models.WebhookAuditRecord{SKUs: row.SKUs}
		for _, sku := range rec.SKUList() {
			key := strings.ToLower(sku)
			o, ok := seen[key]
			if !ok {
				o = &OrphanSKU{SKU: sku}
				seen[key] = o
			}
			o.Occurrences++
			if row.CreatedAt.After(o.LastSeen) {
				o.LastSeen = row.CreatedAt
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	report := &SKUReport{Packages: make([]PackageUsage, 0, len(packages)), Orphaned: []OrphanSKU{}}
	for _, p := range packages {
		key := strings.ToLower(p.SKU)
		usage := PackageUsage{
			SKU:       p.SKU,
			Name:      p.Name,
			Type:      p.Type,
			Tier:      p.Tier,
			StorageMB: p.StorageMB,
			Active:    p.IsActive,
		}
		if o, ok := seen[key]; ok {
			usage.SeenInLogs = o.Occurrences
			delete(seen, key)
		}
		report.Packages = append(report.Packages, usage)
	}
	for _, o := range seen {
		report.Orphaned = append(report.Orphaned, *o)
	}
	sort.Slice(report.Orphaned, func(i, j int) bool {
		if report.Orphaned[i].Occurrences != report.Orphaned[j].Occurrences {
			return report.Orphaned[i].Occurrences > report.Orphaned[j].Occurrences
		}
		return report.Orphaned[i].SKU < report.Orphaned[j].SKU
	})
	return report, nil
}
