// Package s3 provides a storage provider backed by MinIO/S3-compatible
// object stores.
package s3

import (
	"fmt"

	"github.com/minio/minio-go/v7"
)

// Config holds the connection settings for an S3-backed provider.
type Config struct {
	// Endpoint is the server URL (e.g., "localhost:9000").
	Endpoint string

	// Bucket is the bucket backing the storage tree.
	Bucket string

	// AccessKey is the access key ID for authentication.
	AccessKey string

	// SecretKey is the secret access key for authentication.
	SecretKey string

	// UseSSL enables HTTPS connections.
	UseSSL bool

	// Prefix namespaces all object keys under one bucket path.
	Prefix string

	// Client is an optional pre-configured client. If provided,
	// Endpoint/AccessKey/SecretKey are ignored.
	Client *minio.Client

	// UploadThreshold is the write-buffer size beyond which uploads switch
	// to streaming. Zero selects the 5MB default.
	UploadThreshold int64

	// RenameConcurrency limits concurrent copies during prefix renames.
	// Zero selects the default of 10.
	RenameConcurrency int
}

// validate checks the configuration. Either Client or the full
// Endpoint/Bucket/AccessKey/SecretKey set must be provided.
func (c *Config) validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.Client != nil {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when client is not provided")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("access key is required when client is not provided")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret key is required when client is not provided")
	}
	return nil
}
