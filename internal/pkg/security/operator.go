// Package security guards the operator API.
package security

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/EventBooth/internal/pkg/env"
)

// OperatorConfig holds the operator API credentials. The password is stored
// as a bcrypt hash.
type OperatorConfig struct {
	User         string
	PasswordHash string
	RateLimit    int
}

// LoadOperatorConfig reads OPERATOR_USER, OPERATOR_PASSWORD_HASH and OPERATOR_RATE_LIMIT.
func LoadOperatorConfig(src env.Source) *OperatorConfig {
	return &OperatorConfig{
		User:         strings.TrimSpace(src.GetEnv("OPERATOR_USER", "")),
		PasswordHash: strings.TrimSpace(src.GetEnv("OPERATOR_PASSWORD_HASH", "")),
		RateLimit:    src.GetInt("OPERATOR_RATE_LIMIT", 60),
	}
}

// Enabled reports whether operator credentials are configured.
func (c *OperatorConfig) Enabled() bool {
	return c.User != "" && c.PasswordHash != ""
}

// Authorize checks a basic auth login against the configured operator.
func (c *OperatorConfig) Authorize(user, password string) bool {
	if !c.Enabled() {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.User)) == 1
	passOK := CheckPasswordHash(password, c.PasswordHash)
	return userOK && passOK
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}
