package billing

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/ManuelReschke/EventBooth/app/models"
	"github.com/ManuelReschke/EventBooth/internal/pkg/identity"
)

func seedPackage(t *testing.T, db *gorm.DB, sku, typ, tier string, storageMB int64) models.PackageDefinition {
	t.Helper()
	p := models.PackageDefinition{SKU: sku, Name: sku, Type: typ, Tier: tier, StorageMB: storageMB, IsActive: true}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed package %s: %v", sku, err)
	}
	return p
}

func seedUser(t *testing.T, db *gorm.DB, email string, customerID int64) *models.User {
	t.Helper()
	u, err := models.NewProvisionedUser(email, customerID)
	if err != nil {
		t.Fatalf("build user: %v", err)
	}
	if customerID == 0 {
		u.ExternalCustomerID = nil
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func countEntitlements(t *testing.T, db *gorm.DB, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.EventEntitlement{}).Where(where, args...).Count(&n).Error; err != nil {
		t.Fatalf("count entitlements: %v", err)
	}
	return n
}

// stubCustomers resolves emails from a fixed table.
type stubCustomers struct {
	byEmail map[string]int64
	byID    map[int64]string
	err     error
}

func (s *stubCustomers) Resolve(_ context.Context, ref identity.CustomerRef) (identity.Resolution, error) {
	if ref.CustomerID != nil && *ref.CustomerID > 0 {
		return identity.Resolution{CustomerID: *ref.CustomerID, Source: identity.SourcePayload}, nil
	}
	if s.err != nil {
		return identity.Resolution{}, s.err
	}
	if id, ok := s.byEmail[ref.Email]; ok {
		return identity.Resolution{CustomerID: id, Source: identity.SourceDirectory}, nil
	}
	return identity.Resolution{}, nil
}

func (s *stubCustomers) ContactEmail(_ context.Context, customerID int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.byID[customerID], nil
}
