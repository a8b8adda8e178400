package archive

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/EventBooth/internal/pkg/env"
)

// Config holds the settings of the audit archive bucket.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
	CreateBucket    bool
}

// LoadConfig loads archive configuration from the environment.
func LoadConfig(src env.Source) (*Config, error) {
	config := &Config{
		AccessKeyID:     src.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: src.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          src.GetEnv("S3_REGION", "us-west-001"),
		BucketName:      src.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     src.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         src.GetBool("AUDIT_ARCHIVE_ENABLED", false),
		CreateBucket:    src.IsDev(),
	}

	// Validate required fields if the archive is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the audit archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the audit archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the audit archive is enabled")
		}
	}

	return config, nil
}

// PurgeKey returns the object key for a purge batch taken at t.
func PurgeKey(t time.Time) string {
	// Format: audit/YYYY/MM/DD/purge-<unix>.jsonl
	t = t.UTC()
	return fmt.Sprintf("audit/%04d/%02d/%02d/purge-%d.jsonl", t.Year(), int(t.Month()), t.Day(), t.Unix())
}
