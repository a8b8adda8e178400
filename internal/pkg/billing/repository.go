package billing

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/EventBooth/app/models"
)

// Repository provides the DB operations of one provisioning transaction.
// Lookups return (nil, nil) when nothing matches.
type Repository interface {
	InsertReceipt(orderID string) (bool, error)
	FindEntitlementByOrder(orderID string) (*models.EventEntitlement, error)
	FindActiveEventByCode(code string) (*models.Event, error)
	ReplaceActiveEntitlements(eventID uint) (int64, error)
	CreateEntitlement(e *models.EventEntitlement) error
	UpdateEventPackage(eventID uint, tier string, storageMB int64) error
	FindUserByExternalID(customerID int64) (*models.User, error)
	FindUserByEmail(email string) (*models.User, error)
	LinkExternalCustomer(userID uint, customerID int64) (bool, error)
	CreateUser(u *models.User) error
	EventIdentifierTaken(code, slug string) (bool, error)
	CreateEvent(e *models.Event) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a repository on db, usually a transaction handle.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func firstOrNil[T any](err error, v *T) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// InsertReceipt reports whether a new receipt was written. false means the
// order id was seen before.
func (r *gormRepository) InsertReceipt(orderID string) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoNothing: true,
	}).Create(&models.IdempotencyReceipt{OrderID: orderID})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) FindEntitlementByOrder(orderID string) (*models.EventEntitlement, error) {
	var e models.EventEntitlement
	err := r.db.Where("external_order_id = ?", orderID).Order("id ASC").First(&e).Error
	return firstOrNil(err, &e)
}

// FindActiveEventByCode locks the event row until the surrounding transaction
// ends, so concurrent orders for one event apply their package in turn.
func (r *gormRepository) FindActiveEventByCode(code string) (*models.Event, error) {
	var ev models.Event
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Owner").
		Where("code = ? AND is_active = ?", code, true).
		First(&ev).Error
	return firstOrNil(err, &ev)
}

func (r *gormRepository) ReplaceActiveEntitlements(eventID uint) (int64, error) {
	tx := r.db.Model(&models.EventEntitlement{}).
		Where("event_id = ? AND status = ?", eventID, models.EntitlementStatusActive).
		Update("status", models.EntitlementStatusReplaced)
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) CreateEntitlement(e *models.EventEntitlement) error {
	return r.db.Create(e).Error
}

func (r *gormRepository) UpdateEventPackage(eventID uint, tier string, storageMB int64) error {
	return r.db.Model(&models.Event{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{"tier": tier, "storage_mb": storageMB}).Error
}

func (r *gormRepository) FindUserByExternalID(customerID int64) (*models.User, error) {
	var u models.User
	err := r.db.Where("external_customer_id = ?", customerID).First(&u).Error
	return firstOrNil(err, &u)
}

func (r *gormRepository) FindUserByEmail(email string) (*models.User, error) {
	var u models.User
	err := r.db.Where("email = ?", email).First(&u).Error
	return firstOrNil(err, &u)
}

// LinkExternalCustomer sets the cross-reference on an account that has none.
func (r *gormRepository) LinkExternalCustomer(userID uint, customerID int64) (bool, error) {
	tx := r.db.Model(&models.User{}).
		Where("id = ? AND external_customer_id IS NULL", userID).
		Update("external_customer_id", customerID)
	return tx.RowsAffected > 0, tx.Error
}

func (r *gormRepository) CreateUser(u *models.User) error {
	return r.db.Create(u).Error
}

// EventIdentifierTaken checks code and slug against every event, deleted ones included.
func (r *gormRepository) EventIdentifierTaken(code, slug string) (bool, error) {
	var n int64
	err := r.db.Unscoped().Model(&models.Event{}).
		Where("code = ? OR slug = ?", code, slug).
		Count(&n).Error
	return n > 0, err
}

func (r *gormRepository) CreateEvent(e *models.Event) error {
	return r.db.Create(e).Error
}
