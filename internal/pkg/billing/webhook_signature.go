package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"hash"
	"strings"
)

// ErrSecretNotConfigured means the service was started without a webhook
// secret. It is a configuration error, not a signature mismatch.
var ErrSecretNotConfigured = errors.New("WC_WEBHOOK_SECRET is not configured")

// VerifyWooCommerceSignature checks the X-WC-Webhook-Signature header: the
// base64 encoded HMAC-SHA256 of the raw request body.
func VerifyWooCommerceSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" || len(payload) == 0 {
		return false
	}

	decodedSig, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	return verifyHMAC(payload, decodedSig, []byte(secret), sha256.New)
}

func verifyHMAC(payload, expectedSig, secret []byte, hashFunc func() hash.Hash) bool {
	mac := hmac.New(hashFunc, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}

// Verifier holds the shared webhook secret.
type Verifier struct {
	secret string
}

// NewVerifier refuses to build a verifier without a secret.
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSecretNotConfigured
	}
	return &Verifier{secret: secret}, nil
}

func (v *Verifier) Verify(payload []byte, signatureHeader string) bool {
	return VerifyWooCommerceSignature(payload, signatureHeader, v.secret)
}

// Sign returns the signature header value for payload. Used by tooling and
// tests that need to forge valid deliveries.
func (v *Verifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
