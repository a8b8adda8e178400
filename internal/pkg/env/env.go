package env

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Source resolves configuration values from a loaded .env file with the
// process environment as fallback. Build it once at startup and pass it down.
type Source struct {
	values map[string]string
}

// DefaultFiles are the .env locations tried by Load when none are given.
var DefaultFiles = []string{
	".env",          // Current directory
	"../../.env",    // From cmd/eventbooth to project root
	"../../../.env", // Fallback for deeper nesting
}

// Load reads the first .env file found. A missing file is not an error: in
// containers everything comes from the process environment.
func Load(files ...string) Source {
	if len(files) == 0 {
		files = DefaultFiles
	}
	for _, f := range files {
		values, err := godotenv.Read(f)
		if err == nil {
			return Source{values: values}
		}
	}
	return Source{}
}

// FromMap builds a Source from fixed values, used by tests.
func FromMap(values map[string]string) Source {
	return Source{values: values}
}

func (s Source) GetEnv(key, def string) string {
	// First check our loaded values
	if val, ok := s.values[key]; ok {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func (s Source) GetInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s.GetEnv(key, "")))
	if err != nil {
		return def
	}
	return v
}

func (s Source) GetBool(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s.GetEnv(key, "")))
	if err != nil {
		return def
	}
	return v
}

func (s Source) GetDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(s.GetEnv(key, "")))
	if err != nil {
		return def
	}
	return v
}

func (s Source) IsDev() bool {
	return s.GetEnv("APP_ENV", "prod") == "dev"
}
