package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// Source defines the interface for reading observation series
type Source interface {
	// ListObjects lists series objects in the configured bucket and directory
	ListObjects(ctx context.Context, req ListRequest) ([]Object, error)

	// OpenObject opens a series object for streaming reads
	OpenObject(ctx context.Context, objectPath string) (io.ReadCloser, error)

	// Close closes any resources used by the source implementation
	Close() error
}

// ListRequest represents a request to list objects
type ListRequest struct {
	Bucket     string   `json:"bucket"`
	Directory  string   `json:"directory"`
	Extensions []string `json:"extensions,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// Object represents a storage object
type Object struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	ETag     string    `json:"etag,omitempty"`
}

// StorageConfig represents configuration for storage backends
type StorageConfig struct {
	Backend   StorageBackend `json:"backend"`
	Bucket    string         `json:"bucket"`
	Directory string         `json:"directory"`

	// AWS SDK specific settings
	AWSRegion   string `json:"aws_region,omitempty"`
	AWSProfile  string `json:"aws_profile,omitempty"`
	AWSEndpoint string `json:"aws_endpoint,omitempty"`

	Timeout time.Duration `json:"timeout"`
}

// StorageBackend represents the type of storage backend
type StorageBackend string

const (
	StorageBackendAWS   StorageBackend = "aws"
	StorageBackendLocal StorageBackend = "local"
	StorageBackendHTTP  StorageBackend = "http"
)

// String returns the string representation of StorageBackend
func (s StorageBackend) String() string {
	return string(s)
}

// StorageError represents a storage operation error
type StorageError struct {
	Operation string
	Path      string
	Backend   StorageBackend
	Err       error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [%s] during %s operation on %s: %v",
		e.Backend, e.Operation, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new storage error
func NewStorageError(operation, path string, backend StorageBackend, err error) *StorageError {
	return &StorageError{
		Operation: operation,
		Path:      path,
		Backend:   backend,
		Err:       err,
	}
}

// NewSource creates a new source based on configuration
func NewSource(storageConfig *StorageConfig, logger *zap.Logger) (Source, error) {
	if storageConfig == nil {
		return nil, fmt.Errorf("storage config cannot be nil")
	}

	factory := NewSourceFactory(logger)
	return factory.CreateSource(*storageConfig)
}
