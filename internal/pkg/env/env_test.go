package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsFirstExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=4100\nWC_WEBHOOK_SECRET=abc\n"), 0o600))

	src := Load(filepath.Join(dir, "missing.env"), path)
	assert.Equal(t, "4100", src.GetEnv("APP_PORT", "4000"))
	assert.Equal(t, "abc", src.GetEnv("WC_WEBHOOK_SECRET", ""))
}

func TestLoad_NoFileFallsBackToProcessEnv(t *testing.T) {
	t.Setenv("EVENTBOOTH_TEST_KEY", "from-os")

	src := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Equal(t, "from-os", src.GetEnv("EVENTBOOTH_TEST_KEY", "def"))
	assert.Equal(t, "def", src.GetEnv("EVENTBOOTH_TEST_MISSING", "def"))
}

func TestTypedGetters(t *testing.T) {
	src := FromMap(map[string]string{
		"INT":      "7",
		"BAD_INT":  "x",
		"BOOL":     "true",
		"DURATION": "3s",
		"APP_ENV":  "dev",
	})

	assert.Equal(t, 7, src.GetInt("INT", 1))
	assert.Equal(t, 1, src.GetInt("BAD_INT", 1))
	assert.True(t, src.GetBool("BOOL", false))
	assert.False(t, src.GetBool("MISSING_BOOL", false))
	assert.Equal(t, 3*time.Second, src.GetDuration("DURATION", time.Second))
	assert.Equal(t, time.Second, src.GetDuration("MISSING_DURATION", time.Second))
	assert.True(t, src.IsDev())
}
