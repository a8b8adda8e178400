package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvisionedUser(t *testing.T) {
	u, err := NewProvisionedUser("  Buyer@Example.com ", 42)
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", u.Email)
	assert.Equal(t, "buyer", u.Name)
	assert.Equal(t, ROLE_USER, u.Role)
	assert.True(t, u.IsActive())
	assert.True(t, u.HasExternalCustomer(42))
	assert.False(t, u.HasExternalCustomer(43))
}

func TestNewProvisionedUser_RejectsInvalidEmail(t *testing.T) {
	_, err := NewProvisionedUser("not-an-email", 42)
	assert.Error(t, err)
}

func TestWebhookAuditRecord_SKUList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"BASE-10", []string{"BASE-10"}},
		{"BASE-10, UP-50,,", []string{"BASE-10", "UP-50"}},
	}
	for _, tt := range tests {
		r := &WebhookAuditRecord{SKUs: tt.in}
		assert.Equal(t, tt.want, r.SKUList(), tt.in)
	}
}

func TestIsTerminalAuditStatus(t *testing.T) {
	assert.False(t, IsTerminalAuditStatus(AuditStatusReceived))
	for _, s := range []string{AuditStatusForbidden, AuditStatusIgnored, AuditStatusFailed, AuditStatusProcessed} {
		assert.True(t, IsTerminalAuditStatus(s), s)
	}
}

func TestPackageDefinition_IsUpgrade(t *testing.T) {
	assert.True(t, (&PackageDefinition{Type: PackageTypeUpgrade}).IsUpgrade())
	assert.False(t, (&PackageDefinition{Type: PackageTypeBase}).IsUpgrade())
}
