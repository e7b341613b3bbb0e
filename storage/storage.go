// Package storage persists run artifacts outside Postgres: the source
// documents uploaded into the legal corpus archive and the review bundles
// written when a run escalates to human review. Artifacts are addressed by an
// object key; review bundles and documents live under separate key prefixes
// so retention policies can treat them differently.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ReviewBundleName is the canonical filename of an escalated run's archived
// bundle. Uploads under this name are keyed by run ID under review-bundles/.
const ReviewBundleName = "review-bundle.json"

// Storage stores and retrieves artifacts by object key
type Storage interface {
	// Upload stores an artifact under a key derived from its owner ID
	// (document ID or run ID) and filename, and returns that key
	Upload(ctx context.Context, ownerID uuid.UUID, filename string, data io.Reader) (string, error)

	// Download retrieves an artifact by its object key
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an artifact by key. Deleting a missing key is not an
	// error
	Delete(ctx context.Context, key string) error
}

// Backend selects the storage implementation
type Backend string

const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
)

// Config holds backend selection and credentials
type Config struct {
	Backend      Backend
	LocalPath    string // base directory for the local backend
	S3Bucket     string
	S3Region     string
	AWSAccessKey string
	AWSSecretKey string
}

// New creates a storage instance for the configured backend
func New(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case BackendLocal:
		return NewLocalStorage(cfg.LocalPath)
	case BackendS3:
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// NewStorageFromEnv creates a storage instance from environment variables.
// ARCHIVE_BACKEND selects local (the default, for development) or s3.
func NewStorageFromEnv() (Storage, error) {
	backend := os.Getenv("ARCHIVE_BACKEND")
	if backend == "" {
		backend = string(BackendLocal)
	}

	cfg := Config{Backend: Backend(backend)}

	switch cfg.Backend {
	case BackendLocal:
		cfg.LocalPath = os.Getenv("ARCHIVE_LOCAL_PATH")
		if cfg.LocalPath == "" {
			cfg.LocalPath = "./data/archive"
		}
		return NewLocalStorage(cfg.LocalPath)

	case BackendS3:
		cfg.S3Bucket = os.Getenv("ARCHIVE_S3_BUCKET")
		if cfg.S3Bucket == "" {
			return nil, errors.New("ARCHIVE_S3_BUCKET environment variable is required for the s3 backend")
		}
		cfg.S3Region = os.Getenv("AWS_REGION")
		if cfg.S3Region == "" {
			cfg.S3Region = "eu-west-3"
		}
		cfg.AWSAccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		cfg.AWSSecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
		return NewS3Storage(cfg)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s", backend)
	}
}

// objectKey derives the object key for an artifact. Review bundles are keyed
// by run ID under review-bundles/ so an escalated run's bundle can be located
// without a database lookup. Everything else is an uploaded source document,
// keyed under documents/ with a two-character fan-out prefix.
func objectKey(ownerID uuid.UUID, filename string) string {
	if filename == ReviewBundleName {
		return fmt.Sprintf("review-bundles/%s.json", ownerID)
	}
	ext := filepath.Ext(filename)
	base := sanitizeFilename(strings.TrimSuffix(filename, ext))
	id := ownerID.String()
	return fmt.Sprintf("documents/%s/%s_%s%s", id[:2], id, base, ext)
}

// sanitizeFilename strips path separators and spaces so a client-supplied
// filename can never escape its key prefix
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "..", "_")
	return replacer.Replace(name)
}
