package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/EventBooth/app/models"
	"github.com/ManuelReschke/EventBooth/internal/pkg/shortener"
)

const maxIdentifierAttempts = 3

// ProvisionRequest is a classified, resolved paid order.
type ProvisionRequest struct {
	OrderID    string
	CustomerID int64
	Email      string
	EventCode  string
	Package    models.PackageDefinition
	ProductID  string
	SKU        string
}

// Processor applies paid orders exactly once.
type Processor struct {
	db        *gorm.DB
	txOptions *sql.TxOptions
}

// NewProcessor creates a processor. txOptions may be nil to use the driver
// default isolation level.
func NewProcessor(db *gorm.DB, txOptions *sql.TxOptions) *Processor {
	return &Processor{db: db, txOptions: txOptions}
}

// Apply runs the order in a single transaction guarded by the idempotency
// receipt. A *ProvisionError rolls everything back, receipt included, so a
// later retry of the same order is processed fresh.
func (p *Processor) Apply(ctx context.Context, req ProvisionRequest) (Outcome, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.OrderID == "" {
		return Outcome{}, errors.New("order id is required")
	}
	if req.CustomerID <= 0 {
		return Outcome{}, errors.New("resolved customer id is required")
	}

	var out Outcome
	fn := func(tx *gorm.DB) error {
		var err error
		out, err = p.apply(NewRepository(tx), req)
		return err
	}

	var err error
	if p.txOptions != nil {
		err = p.db.WithContext(ctx).Transaction(fn, p.txOptions)
	} else {
		err = p.db.WithContext(ctx).Transaction(fn)
	}
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (p *Processor) apply(repo Repository, req ProvisionRequest) (Outcome, error) {
	fresh, err := repo.InsertReceipt(req.OrderID)
	if err != nil {
		return Outcome{}, fmt.Errorf("insert receipt: %w", err)
	}

	// Also checked after a fresh receipt: entitlements written before the
	// receipt table existed have no receipt.
	existing, err := repo.FindEntitlementByOrder(req.OrderID)
	if err != nil {
		return Outcome{}, fmt.Errorf("find entitlement: %w", err)
	}
	if existing != nil {
		return Outcome{Kind: KindDuplicate, EventID: existing.EventID, UserID: existing.UserID}, nil
	}
	if !fresh {
		log.Warnf("[Provisioning] Order %s has a receipt but no entitlement", req.OrderID)
		return Outcome{Kind: KindDuplicate}, nil
	}

	if req.EventCode != "" {
		return p.upgrade(repo, req)
	}
	return p.create(repo, req)
}

func (p *Processor) upgrade(repo Repository, req ProvisionRequest) (Outcome, error) {
	event, err := repo.FindActiveEventByCode(req.EventCode)
	if err != nil {
		return Outcome{}, fmt.Errorf("find event: %w", err)
	}
	if event == nil {
		return Outcome{}, &ProvisionError{
			Outcome: OutcomeTargetNotFound,
			Reason:  ReasonEventNotFound,
			Err:     fmt.Errorf("no active event with code %q", req.EventCode),
		}
	}
	if event.Owner == nil || !event.Owner.HasExternalCustomer(req.CustomerID) {
		return Outcome{}, &ProvisionError{
			Outcome: OutcomeOwnershipMismatch,
			Reason:  ReasonOwnershipMismatch,
			Err:     fmt.Errorf("event %d is not owned by customer %d", event.ID, req.CustomerID),
		}
	}

	replaced, err := repo.ReplaceActiveEntitlements(event.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("replace entitlements: %w", err)
	}
	if err := repo.UpdateEventPackage(event.ID, req.Package.Tier, req.Package.StorageMB); err != nil {
		return Outcome{}, fmt.Errorf("update event: %w", err)
	}
	if err := repo.CreateEntitlement(newEntitlement(req, event.ID, event.OwnerID)); err != nil {
		return Outcome{}, fmt.Errorf("create entitlement: %w", err)
	}

	log.Infof("[Provisioning] Order %s upgraded event %d to %s (%d entitlements replaced)",
		req.OrderID, event.ID, req.Package.SKU, replaced)
	return Outcome{Kind: KindUpgraded, EventID: event.ID, UserID: event.OwnerID}, nil
}

func (p *Processor) create(repo Repository, req ProvisionRequest) (Outcome, error) {
	user, err := p.accountFor(repo, req)
	if err != nil {
		return Outcome{}, err
	}

	event, err := newEvent(repo, req, user.ID)
	if err != nil {
		return Outcome{}, err
	}
	if err := repo.CreateEvent(event); err != nil {
		return Outcome{}, fmt.Errorf("create event: %w", err)
	}
	if err := repo.CreateEntitlement(newEntitlement(req, event.ID, user.ID)); err != nil {
		return Outcome{}, fmt.Errorf("create entitlement: %w", err)
	}

	log.Infof("[Provisioning] Order %s created event %d (%s) for user %d", req.OrderID, event.ID, event.Code, user.ID)
	return Outcome{Kind: KindCreated, EventID: event.ID, UserID: user.ID}, nil
}

// accountFor finds the local account of the customer, linking an account
// found by email or creating a new one when needed.
func (p *Processor) accountFor(repo Repository, req ProvisionRequest) (*models.User, error) {
	user, err := repo.FindUserByExternalID(req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, &ProvisionError{
			Outcome: OutcomeCustomerConflict,
			Reason:  ReasonCustomerNotMapped,
			Err:     fmt.Errorf("customer %d has no local account and no email", req.CustomerID),
		}
	}

	user, err = repo.FindUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user != nil {
		if user.ExternalCustomerID != nil {
			return nil, &ProvisionError{
				Outcome: OutcomeCustomerConflict,
				Reason:  ReasonCustomerConflict,
				Err:     fmt.Errorf("account %d is linked to customer %d, order is from %d", user.ID, *user.ExternalCustomerID, req.CustomerID),
			}
		}
		linked, err := repo.LinkExternalCustomer(user.ID, req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("link user: %w", err)
		}
		if !linked {
			return nil, fmt.Errorf("link user %d: account changed concurrently", user.ID)
		}
		id := req.CustomerID
		user.ExternalCustomerID = &id
		return user, nil
	}

	user, err = models.NewProvisionedUser(email, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("build user: %w", err)
	}
	if err := repo.CreateUser(user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func newEvent(repo Repository, req ProvisionRequest, ownerID uint) (*models.Event, error) {
	for attempt := 0; attempt < maxIdentifierAttempts; attempt++ {
		code, err := shortener.NewEventCode()
		if err != nil {
			return nil, err
		}
		slug, err := shortener.NewEventSlug()
		if err != nil {
			return nil, err
		}
		taken, err := repo.EventIdentifierTaken(code, slug)
		if err != nil {
			return nil, fmt.Errorf("check event identifiers: %w", err)
		}
		if taken {
			continue
		}

		name := req.Package.Name
		if name == "" {
			name = "Event"
		}
		return &models.Event{
			Code:       code,
			Slug:       slug,
			AccessCode: shortener.NewAccessCode(),
			Name:       name,
			OwnerID:    ownerID,
			Tier:       req.Package.Tier,
			StorageMB:  req.Package.StorageMB,
			IsActive:   true,
		}, nil
	}
	return nil, fmt.Errorf("no free event identifier after %d attempts", maxIdentifierAttempts)
}

func newEntitlement(req ProvisionRequest, eventID, userID uint) *models.EventEntitlement {
	sku := req.SKU
	if sku == "" {
		sku = req.Package.SKU
	}
	return &models.EventEntitlement{
		EventID:           eventID,
		UserID:            userID,
		Source:            models.EntitlementSourceWooCommerce,
		ExternalOrderID:   req.OrderID,
		ExternalProductID: req.ProductID,
		SKU:               sku,
		Tier:              req.Package.Tier,
		StorageMB:         req.Package.StorageMB,
		Status:            models.EntitlementStatusActive,
	}
}
