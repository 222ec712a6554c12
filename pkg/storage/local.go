package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var errLimitReached = errors.New("limit reached")

// LocalStorage implements Source for the local filesystem
type LocalStorage struct {
	config   StorageConfig
	logger   *zap.Logger
	basePath string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(config StorageConfig, logger *zap.Logger) *LocalStorage {
	// For local storage, the bucket is the base directory
	basePath := config.Bucket
	if basePath == "" {
		basePath = "."
	}
	if config.Directory != "" {
		basePath = filepath.Join(basePath, config.Directory)
	}

	return &LocalStorage{
		config:   config,
		logger:   logger,
		basePath: basePath,
	}
}

// ListObjects lists files under the base directory, largest first
func (l *LocalStorage) ListObjects(ctx context.Context, req ListRequest) ([]Object, error) {
	searchPath := l.basePath
	if req.Directory != "" {
		searchPath = filepath.Join(l.basePath, req.Directory)
	}

	l.logger.Debug("Listing local files", zap.String("path", searchPath))

	var objects []Object

	err := filepath.WalkDir(searchPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if !matchesExtension(relPath, req.Extensions) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		objects = append(objects, Object{
			Path:     relPath,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})

		if req.Limit > 0 && len(objects) >= req.Limit {
			return errLimitReached
		}
		return nil
	})

	if errors.Is(err, errLimitReached) {
		err = nil
	}
	if err != nil {
		return nil, NewStorageError("list_objects", searchPath, StorageBackendLocal, err)
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].Size > objects[j].Size
	})

	l.logger.Info("Listed local files",
		zap.Int("count", len(objects)),
		zap.String("path", searchPath))

	return objects, nil
}

// OpenObject opens a file relative to the base directory
func (l *LocalStorage) OpenObject(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	fullPath := objectPath
	if !filepath.IsAbs(objectPath) {
		fullPath = filepath.Join(l.basePath, objectPath)
	}

	l.logger.Debug("Opening local file", zap.String("path", fullPath))

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, NewStorageError("open_object", objectPath, StorageBackendLocal, err)
	}
	return file, nil
}

// Close closes any resources used by the storage implementation
func (l *LocalStorage) Close() error {
	l.logger.Debug("Closing local storage")
	return nil
}

// matchesExtension reports whether path has one of the allowed extensions.
// An empty list allows everything.
func matchesExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range extensions {
		allowed = strings.ToLower(allowed)
		if !strings.HasPrefix(allowed, ".") {
			allowed = "." + allowed
		}
		if allowed == ext {
			return true
		}
	}
	return false
}
