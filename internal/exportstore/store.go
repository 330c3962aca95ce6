// Package exportstore defines the object-storage interface used to archive
// rendered reports.
//
// All providers (MinIO, S3, …) implement the Store interface. Callers depend
// only on this package — never on a specific provider package.
//
// Usage:
//
//	cfg := exportstore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	info, err := store.Put(ctx, cfg.Bucket, key, bytes.NewReader(html), int64(len(html)), "text/html")
package exportstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Store is the interface all report-archive providers must implement.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// Put uploads an object. size may be -1 when unknown.
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (*ObjectInfo, error)

	// Get opens a streaming handle to the object at key.
	// The caller MUST close the returned reader.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Stat returns object metadata without downloading the content.
	Stat(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// PresignGet returns a time-limited URL that allows downloading the
	// object without credentials.
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// ObjectInfo describes a stored report artifact.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// Config holds all settings needed to connect to a storage backend.
type Config struct {
	// Endpoint is the host:port of the storage server,
	// e.g. "localhost:9000" for local MinIO.
	Endpoint string

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string

	// SecretKey is the secret access key.
	SecretKey string

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool

	// Region is used by region-aware backends. Leave empty for MinIO.
	Region string

	// Bucket is the report archive bucket.
	Bucket string
}

// DefaultConfig returns a sensible local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    false,
		Bucket:    "reports",
	}
}

// ReportKey builds the archive key for a rendered report:
// reports/<year>/<month>/<report_type>-<uuid>.html
func ReportKey(reportType string, at time.Time) string {
	return fmt.Sprintf("reports/%04d/%02d/%s-%s.html",
		at.Year(), int(at.Month()), reportType, uuid.New().String())
}
