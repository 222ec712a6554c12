package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"streamstats-go/pkg/httpclient"
)

const seriesAccept = "text/csv, text/plain;q=0.9, */*;q=0.1"

// HTTPStorage reads series over HTTP(S). The bucket is a base URL and the
// directory a path beneath it; absolute URLs are fetched as given.
type HTTPStorage struct {
	config  StorageConfig
	client  httpclient.Client
	logger  *zap.Logger
	baseURL string
}

// NewHTTPStorage creates a new HTTP source
func NewHTTPStorage(config StorageConfig, logger *zap.Logger) (*HTTPStorage, error) {
	client := httpclient.NewHTTPClient(httpclient.Config{
		Timeout: config.Timeout,
	}, logger)
	return newHTTPStorageWithClient(config, client, logger)
}

func newHTTPStorageWithClient(config StorageConfig, client httpclient.Client, logger *zap.Logger) (*HTTPStorage, error) {
	base := strings.TrimSuffix(config.Bucket, "/")
	if base != "" {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("invalid base URL %q", config.Bucket)
		}
		if dir := strings.Trim(config.Directory, "/"); dir != "" {
			base += "/" + dir
		}
	}

	return &HTTPStorage{
		config:  config,
		client:  client,
		logger:  logger,
		baseURL: base,
	}, nil
}

// ListObjects is not supported: plain HTTP has no listing
func (h *HTTPStorage) ListObjects(ctx context.Context, req ListRequest) ([]Object, error) {
	return nil, NewStorageError("list_objects", h.baseURL, StorageBackendHTTP,
		fmt.Errorf("listing is not supported, name the series explicitly"))
}

// OpenObject streams a series from its URL
func (h *HTTPStorage) OpenObject(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	target, err := h.urlFor(objectPath)
	if err != nil {
		return nil, NewStorageError("open_object", objectPath, StorageBackendHTTP, err)
	}

	h.logger.Debug("Fetching series", zap.String("url", target))

	resp, err := h.client.Open(ctx, target, httpclient.WithHeader("Accept", seriesAccept))
	if err != nil {
		return nil, NewStorageError("open_object", objectPath, StorageBackendHTTP, err)
	}
	return resp.Body, nil
}

// Close closes any resources used by the storage implementation
func (h *HTTPStorage) Close() error {
	h.logger.Debug("Closing HTTP storage")
	return h.client.Close()
}

func (h *HTTPStorage) urlFor(objectPath string) (string, error) {
	if isURL(objectPath) {
		return objectPath, nil
	}
	if h.baseURL == "" {
		return "", fmt.Errorf("relative path without a base URL")
	}
	return h.baseURL + "/" + strings.TrimPrefix(objectPath, "/"), nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
