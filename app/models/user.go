package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// User is a local account. ExternalCustomerID cross-references the customer id
// used by the commerce platform and the legacy directory.
type User struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Name               string         `gorm:"type:varchar(150)" json:"name" validate:"max=150"`
	Email              string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,max=200"`
	Role               string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status             string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	ExternalCustomerID *int64         `gorm:"uniqueIndex;default:null" json:"external_customer_id,omitempty"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NewProvisionedUser builds an account for a paying customer that has no local
// account yet. The customer signs in through the legacy site.
func NewProvisionedUser(email string, customerID int64) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		name = email[:at]
	}

	id := customerID
	u := &User{
		Name:               name,
		Email:              email,
		Role:               ROLE_USER,
		Status:             STATUS_ACTIVE,
		ExternalCustomerID: &id,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// HasExternalCustomer reports whether the account is linked to customerID.
func (u *User) HasExternalCustomer(customerID int64) bool {
	return u.ExternalCustomerID != nil && *u.ExternalCustomerID == customerID
}
