package storage

import (
	"fmt"

	"go.uber.org/zap"
)

// SourceFactory creates sources based on configuration
type SourceFactory struct {
	logger *zap.Logger
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(logger *zap.Logger) *SourceFactory {
	return &SourceFactory{
		logger: logger,
	}
}

// CreateSource creates a source instance based on the configuration
func (f *SourceFactory) CreateSource(config StorageConfig) (Source, error) {
	switch config.Backend {
	case StorageBackendAWS:
		return NewAWSStorage(config, f.logger)
	case StorageBackendHTTP:
		return NewHTTPStorage(config, f.logger)
	case StorageBackendLocal, "":
		return NewLocalStorage(config, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", config.Backend)
	}
}
