package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/EventBooth/app/models"
)

// Source tells which step of the cascade produced a resolution.
type Source string

const (
	SourcePayload   Source = "payload"
	SourceLocal     Source = "local"
	SourceCache     Source = "cache"
	SourceDirectory Source = "directory"
)

// CustomerRef is what an order tells us about its customer.
type CustomerRef struct {
	CustomerID *int64
	Email      string
}

// Resolution is the outcome of Resolve. The zero value means "no mapping".
type Resolution struct {
	CustomerID int64
	Source     Source
}

// Found reports whether a customer id was resolved.
func (r Resolution) Found() bool {
	return r.CustomerID > 0
}

// CustomerCache caches positive email to customer id resolutions.
type CustomerCache interface {
	Get(ctx context.Context, email string) (int64, bool, error)
	Set(ctx context.Context, email string, customerID int64) error
}

// Resolver maps an order's customer reference to the external customer id
// used across the platform.
type Resolver struct {
	db        *gorm.DB
	directory Directory
	cache     CustomerCache
	timeout   time.Duration
}

// NewResolver creates a resolver. directory and cache may be nil.
func NewResolver(db *gorm.DB, directory Directory, cache CustomerCache, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{db: db, directory: directory, cache: cache, timeout: timeout}
}

// Resolve tries, in order: the numeric id carried by the order, a local
// account with the same email that already carries a cross-reference, the
// cache, and finally the legacy directory.
//
// A customer that cannot be mapped yields a zero Resolution and a nil error.
// The only directory failure returned is *UnavailableError.
func (r *Resolver) Resolve(ctx context.Context, ref CustomerRef) (Resolution, error) {
	if ref.CustomerID != nil && *ref.CustomerID > 0 {
		return Resolution{CustomerID: *ref.CustomerID, Source: SourcePayload}, nil
	}

	email := normalizeEmail(ref.Email)
	if email == "" {
		return Resolution{}, nil
	}

	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ? AND external_customer_id IS NOT NULL", email).
		First(&user).Error
	switch {
	case err == nil:
		return Resolution{CustomerID: *user.ExternalCustomerID, Source: SourceLocal}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Resolution{}, fmt.Errorf("lookup local account: %w", err)
	}

	if r.cache != nil {
		id, ok, err := r.cache.Get(ctx, email)
		if err != nil {
			log.Warnf("[Identity] Cache read failed: %v", err)
		} else if ok && id > 0 {
			return Resolution{CustomerID: id, Source: SourceCache}, nil
		}
	}

	if r.directory == nil {
		return Resolution{}, Unavailable("directory not configured", nil)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	acct, err := r.directory.LookupByEmail(lookupCtx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		return Resolution{}, nil
	case IsUnavailable(err):
		return Resolution{}, err
	case err != nil:
		return Resolution{}, Unavailable("directory lookup failed", err)
	case acct == nil || acct.CustomerID <= 0:
		return Resolution{}, nil
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, email, acct.CustomerID); err != nil {
			log.Warnf("[Identity] Cache write failed: %v", err)
		}
	}
	return Resolution{CustomerID: acct.CustomerID, Source: SourceDirectory}, nil
}

// ContactEmail returns the email of a customer known only by id, from the
// local account or the legacy directory. An unknown customer yields "".
func (r *Resolver) ContactEmail(ctx context.Context, customerID int64) (string, error) {
	if customerID <= 0 {
		return "", nil
	}

	var user models.User
	err := r.db.WithContext(ctx).Where("external_customer_id = ?", customerID).First(&user).Error
	switch {
	case err == nil:
		return user.Email, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", fmt.Errorf("lookup local account: %w", err)
	}

	if r.directory == nil {
		return "", Unavailable("directory not configured", nil)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	acct, err := r.directory.LookupByID(lookupCtx, customerID)
	switch {
	case errors.Is(err, ErrNotFound):
		return "", nil
	case IsUnavailable(err):
		return "", err
	case err != nil:
		return "", Unavailable("directory lookup failed", err)
	case acct == nil:
		return "", nil
	}
	return acct.Email, nil
}
