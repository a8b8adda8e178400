// Package shortener generates the random public identifiers of events.
package shortener

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Base62 alphabet for slugs (0-9, a-z, A-Z)
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// codeAlphabet leaves out 0, O, 1 and I so codes survive being typed from a printout.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	EventSlugPrefix = "evt-"
	eventSlugLength = 16
	eventCodeLength = 8
	accessCodeLen   = 12
)

// GenerateSecureSlug creates a cryptographically secure random Base62 slug.
func GenerateSecureSlug(length int) (string, error) {
	return generate(alphabet, length)
}

func generate(symbols string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid slug length: %d", length)
	}

	// Rejection sampling to avoid modulo bias.
	maxRandomByte := 256 - 256%len(symbols)

	out := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if int(b) >= maxRandomByte {
				continue
			}
			out[written] = symbols[int(b)%len(symbols)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(out), nil
}

// NewEventSlug returns a URL slug such as "evt-3fK9aZ0qLm2XbC7d".
func NewEventSlug() (string, error) {
	s, err := GenerateSecureSlug(eventSlugLength)
	if err != nil {
		return "", err
	}
	return EventSlugPrefix + s, nil
}

// NewEventCode returns the short code customers quote on upgrade orders.
func NewEventCode() (string, error) {
	return generate(codeAlphabet, eventCodeLength)
}

// NewAccessCode returns an opaque guest access code.
func NewAccessCode() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:accessCodeLen])
}
