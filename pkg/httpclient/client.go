package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client defines the HTTP client interface
type Client interface {
	Open(ctx context.Context, url string, opts ...RequestOption) (*Response, error)
	Close() error
}

// HTTPClient implements the Client interface
type HTTPClient struct {
	client *http.Client
	config Config
	logger *zap.Logger
}

// Config holds HTTP client configuration
type Config struct {
	Timeout             time.Duration
	RetryAttempts       int
	RetryDelay          time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DisableKeepAlives   bool
	UserAgent           string
}

// Response is an open HTTP response whose body streams the series. The
// caller must close Body.
type Response struct {
	StatusCode    int
	Status        string
	Headers       http.Header
	Body          io.ReadCloser
	ContentLength int64
	TTFB          time.Duration
	URL           string
	Retries       int
}

// StatusError is returned for responses outside the 2xx range
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// RequestOption allows customization of individual requests
type RequestOption func(*requestConfig)

type requestConfig struct {
	headers map[string]string
}

// WithHeader adds a header to the request
func WithHeader(key, value string) RequestOption {
	return func(cfg *requestConfig) {
		if cfg.headers == nil {
			cfg.headers = make(map[string]string)
		}
		cfg.headers[key] = value
	}
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(config Config, logger *zap.Logger) *HTTPClient {
	// Set defaults
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 2
	}
	if config.RetryAttempts < 0 {
		config.RetryAttempts = 0
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 90 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "streamstats/1.0"
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		DisableKeepAlives:   config.DisableKeepAlives,
	}

	// Timeout also bounds the body read; zero leaves it to the caller's context
	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}

	logger.Debug("HTTP client initialized",
		zap.Duration("timeout", config.Timeout),
		zap.Int("retry_attempts", config.RetryAttempts),
		zap.Bool("disable_keep_alives", config.DisableKeepAlives))

	return &HTTPClient{
		client: client,
		config: config,
		logger: logger,
	}
}

// Open issues a GET and returns the response with its body unread.
// Transport failures and 5xx responses are retried; other non-2xx
// responses fail immediately with a *StatusError.
func (c *HTTPClient) Open(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	reqConfig := &requestConfig{}
	for _, opt := range opts {
		opt(reqConfig)
	}

	var lastErr error

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}

			c.logger.Debug("Retrying request",
				zap.String("url", url),
				zap.Int("attempt", attempt))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("User-Agent", c.config.UserAgent)
		for key, value := range reqConfig.headers {
			req.Header.Set(key, value)
		}

		requestStart := time.Now()
		resp, err := c.client.Do(req)
		ttfb := time.Since(requestStart)

		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)

			// Don't retry on context cancellation
			if ctx.Err() != nil {
				break
			}
			continue
		}

		c.logger.Debug("Response received",
			zap.String("url", url),
			zap.Int("status_code", resp.StatusCode),
			zap.Duration("ttfb", ttfb),
			zap.Int("attempt", attempt))

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return &Response{
				StatusCode:    resp.StatusCode,
				Status:        resp.Status,
				Headers:       resp.Header,
				Body:          resp.Body,
				ContentLength: resp.ContentLength,
				TTFB:          ttfb,
				URL:           url,
				Retries:       attempt,
			}, nil
		}

		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		lastErr = &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
		if resp.StatusCode < 500 {
			return nil, lastErr
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("all retry attempts exhausted")
	}
	return nil, lastErr
}

// Close closes the HTTP client and its underlying transport
func (c *HTTPClient) Close() error {
	c.logger.Debug("Closing HTTP client")

	if transport, ok := c.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}

	return nil
}
