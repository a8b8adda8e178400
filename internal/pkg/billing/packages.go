package billing

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/EventBooth/app/models"
)

// ErrUnknownPackageSKU means no active package matches any line item.
var ErrUnknownPackageSKU = errors.New("no active package matches the order SKUs")

// PackageMatch is the package an order buys and the line item that bought it.
type PackageMatch struct {
	Package  models.PackageDefinition
	LineItem LineItem
}

// PackageResolver maps line item SKUs to catalog packages.
type PackageResolver struct {
	db *gorm.DB
}

func NewPackageResolver(db *gorm.DB) *PackageResolver {
	return &PackageResolver{db: db}
}

// Resolve loads the active packages for the order's SKUs and picks one.
func (r *PackageResolver) Resolve(ctx context.Context, items []LineItem) (*PackageMatch, error) {
	skus := make([]string, 0, len(items))
	for _, li := range items {
		if li.SKU != "" {
			skus = append(skus, li.SKU)
		}
	}
	if len(skus) == 0 {
		return nil, ErrUnknownPackageSKU
	}

	var pkgs []models.PackageDefinition
	err := r.db.WithContext(ctx).
		Where("sku IN ? AND is_active = ?", skus, true).
		Find(&pkgs).Error
	if err != nil {
		return nil, err
	}

	match := selectPackage(items, pkgs)
	if match == nil {
		return nil, ErrUnknownPackageSKU
	}
	return match, nil
}

func packageRank(p *models.PackageDefinition) int {
	switch strings.ToUpper(strings.TrimSpace(p.Type)) {
	case models.PackageTypeUpgrade:
		return 2
	case models.PackageTypeBase:
		return 1
	default:
		return 0
	}
}

// selectPackage prefers UPGRADE over BASE over anything else. Ties go to the
// first line item, so the result does not depend on the order the database
// returned the packages in.
func selectPackage(items []LineItem, pkgs []models.PackageDefinition) *PackageMatch {
	bySKU := make(map[string]*models.PackageDefinition, len(pkgs))
	for i := range pkgs {
		if !pkgs[i].IsActive {
			continue
		}
		bySKU[strings.ToLower(strings.TrimSpace(pkgs[i].SKU))] = &pkgs[i]
	}

	var best *PackageMatch
	bestRank := -1
	for _, li := range items {
		p, ok := bySKU[strings.ToLower(li.SKU)]
		if !ok || li.SKU == "" {
			continue
		}
		if rank := packageRank(p); rank > bestRank {
			best = &PackageMatch{Package: *p, LineItem: li}
			bestRank = rank
		}
	}
	return best
}
