package shortener

import (
	"strings"
	"testing"
)

func TestGenerateSecureSlug_InvalidLength(t *testing.T) {
	t.Parallel()

	if _, err := GenerateSecureSlug(0); err == nil {
		t.Fatalf("expected error for invalid length")
	}
}

func TestGenerateSecureSlug_LengthAndAlphabet(t *testing.T) {
	t.Parallel()

	slug, err := GenerateSecureSlug(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slug) != 10 {
		t.Fatalf("expected slug length 10, got %d", len(slug))
	}

	for i := 0; i < len(slug); i++ {
		if strings.IndexByte(alphabet, slug[i]) == -1 {
			t.Fatalf("slug contains invalid character %q", slug[i])
		}
	}
}

func TestNewEventSlug_UniqueWithinSmallBatch(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		slug, err := NewEventSlug()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(slug, EventSlugPrefix) || len(slug) != len(EventSlugPrefix)+eventSlugLength {
			t.Fatalf("unexpected slug format: %s", slug)
		}
		if _, exists := seen[slug]; exists {
			t.Fatalf("duplicate slug generated in small batch: %s", slug)
		}
		seen[slug] = struct{}{}
	}
}

func TestNewEventCode_Alphabet(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		code, err := NewEventCode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(code) != eventCodeLength {
			t.Fatalf("expected code length %d, got %d", eventCodeLength, len(code))
		}
		if strings.ContainsAny(code, "0O1I") {
			t.Fatalf("code contains ambiguous characters: %s", code)
		}
		if code != strings.ToUpper(code) {
			t.Fatalf("code must be upper case: %s", code)
		}
	}
}

func TestNewAccessCode(t *testing.T) {
	t.Parallel()

	a, b := NewAccessCode(), NewAccessCode()
	if len(a) != accessCodeLen {
		t.Fatalf("expected access code length %d, got %d", accessCodeLen, len(a))
	}
	if a == b {
		t.Fatalf("expected distinct access codes")
	}
}
