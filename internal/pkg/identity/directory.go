package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Account is a customer record of the legacy directory.
type Account struct {
	CustomerID int64  `json:"id"`
	Email      string `json:"email"`
}

// Directory looks customers up in the legacy directory. Lookups return
// ErrNotFound for a definitive miss and *UnavailableError when the backend
// cannot answer.
type Directory interface {
	LookupByEmail(ctx context.Context, email string) (*Account, error)
	LookupByID(ctx context.Context, customerID int64) (*Account, error)
}

// CascadeDirectory asks the remote endpoint first and falls back to the
// backing store when the remote cannot answer.
type CascadeDirectory struct {
	remote *RemoteDirectory
	store  *StoreDirectory
}

// NewCascadeDirectory combines the remote endpoint and the backing store.
// Either may be nil.
func NewCascadeDirectory(remote *RemoteDirectory, store *StoreDirectory) *CascadeDirectory {
	return &CascadeDirectory{remote: remote, store: store}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *CascadeDirectory) LookupByEmail(ctx context.Context, email string) (*Account, error) {
	return d.lookup(ctx, "email", func(ctx context.Context, dir Directory) (*Account, error) {
		return dir.LookupByEmail(ctx, email)
	})
}

func (d *CascadeDirectory) LookupByID(ctx context.Context, customerID int64) (*Account, error) {
	return d.lookup(ctx, "id", func(ctx context.Context, dir Directory) (*Account, error) {
		return dir.LookupByID(ctx, customerID)
	})
}

// remoteContext bounds the remote call to half of the remaining deadline
// when a store fallback is configured, so a hanging remote leaves the store
// time to answer.
func (d *CascadeDirectory) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if d.store == nil || !ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Until(deadline)/2)
}

func (d *CascadeDirectory) lookup(ctx context.Context, kind string, fn func(context.Context, Directory) (*Account, error)) (*Account, error) {
	var remoteErr error
	if d.remote != nil {
		remoteCtx, cancel := d.remoteContext(ctx)
		acct, err := fn(remoteCtx, d.remote)
		cancel()
		if err == nil || errors.Is(err, ErrNotFound) {
			return acct, err
		}
		if !IsUnavailable(err) {
			return nil, err
		}
		log.Warnf("[Identity] Remote lookup by %s unavailable, falling back to store: %v", kind, err)
		remoteErr = err
	}

	if d.store != nil {
		if err := ctx.Err(); err != nil {
			return nil, transportFailure("directory", err)
		}
		return fn(ctx, d.store)
	}
	if remoteErr != nil {
		return nil, remoteErr
	}
	return nil, Unavailable("directory not configured", nil)
}
