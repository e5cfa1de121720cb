package deviceconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/modbusreader/internal/logging"
	"github.com/muurk/modbusreader/internal/runtimeconfig"
)

const (
	// DefaultUsername is the account allowed to write the runtime configuration
	DefaultUsername = "admin"

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is zero: a failed operation is reported, never replayed
	DefaultMaxRetries = 0

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 30 * time.Second
)

// Client talks to the device configuration service over HTTP.
type Client struct {
	// BaseURL is the base URL of the service (e.g., "http://192.168.1.40:8080")
	BaseURL string

	// Username for HTTP Basic Auth. Empty sends no credentials.
	Username string

	// Password for HTTP Basic Auth
	Password string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the number of extra attempts for retryable failures
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	// UseExponentialBackoff enables exponential backoff for retries
	UseExponentialBackoff bool

	// ID identifies this client to the service. Notifications caused by its
	// own writes come back tagged with it and are skipped by WatchNotifications.
	ID string
}

// NewClient creates a client for a service at host:port.
func NewClient(host string, port int) *Client {
	return NewClientWithURL(fmt.Sprintf("http://%s:%d", host, port))
}

// NewClientWithURL creates a new client with a full base URL
// baseURL: Full base URL (e.g., "http://192.168.1.40:8080")
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:               strings.TrimRight(baseURL, "/"),
		HTTPClient:            &http.Client{Timeout: DefaultTimeout},
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
		ID:                    uuid.NewString(),
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetAuth sets HTTP Basic Auth credentials
func (c *Client) SetAuth(username, password string) {
	c.Username = username
	c.Password = password
}

// SetRetry enables retries of retryable failures
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// Ping checks that the service is up.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, PathHealth, nil, "")
	return err
}

// GetDeviceInfo reads the reader's identification block.
func (c *Client) GetDeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	var info DeviceInfo
	if err := c.getJSON(ctx, PathDeviceInfo, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetRuntimeConfig reads the current runtime configuration.
func (c *Client) GetRuntimeConfig(ctx context.Context) (*runtimeconfig.Shape, error) {
	var shape runtimeconfig.Shape
	if err := c.getJSON(ctx, PathRuntimeConfig, &shape); err != nil {
		return nil, err
	}
	return &shape, nil
}

// PutRuntimeConfig replaces the whole runtime configuration. The shape must
// carry every field; partial updates are refused before any request is made.
func (c *Client) PutRuntimeConfig(ctx context.Context, shape *runtimeconfig.Shape) error {
	if err := ValidateComplete(shape); err != nil {
		return err
	}

	body, err := json.Marshal(shape)
	if err != nil {
		return NewParseError("failed to encode runtime configuration", err)
	}

	logging.Debug("Writing runtime configuration", zap.ByteString("body", body))

	_, err = c.do(ctx, http.MethodPut, PathRuntimeConfig, body, "application/json")
	return err
}

// GetRuntimeRegisterList reads the runtime register map in service order.
func (c *Client) GetRuntimeRegisterList(ctx context.Context) ([]RuntimeRegisterItem, error) {
	var items []RuntimeRegisterItem
	if err := c.getJSON(ctx, PathRuntime, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []RuntimeRegisterItem{}
	}
	return items, nil
}

// ExportRuntimeConfig downloads the tab-separated register map.
func (c *Client) ExportRuntimeConfig(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, PathRuntimeExport, nil, "")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return NewParseError(fmt.Sprintf("failed to parse response from %s", path), err)
	}
	return nil
}

// do runs one request through the retry loop and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	var lastErr error
	currentDelay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, NewNetworkError("request cancelled", ctx.Err())
			case <-time.After(currentDelay):
			}

			if c.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > c.MaxRetryDelay {
					currentDelay = c.MaxRetryDelay
				}
			}
		}

		data, err := c.attempt(ctx, method, path, body, contentType)
		if err == nil {
			return data, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}
		logging.Debug("Retrying request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, lastErr
}

// attempt performs a single request
func (c *Client) attempt(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("failed to create %s request", method), err)
	}

	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.ID != "" {
		req.Header.Set(HeaderClientID, c.ID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, NewAuthError(responseMessage(data, "authentication failed (check credentials)"))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewHTTPError(resp.StatusCode, responseMessage(data, fmt.Sprintf("unexpected status code: %d", resp.StatusCode)))
	}

	return data, nil
}

// responseMessage returns the raw body as the error message, or fallback
// when the body is empty.
func responseMessage(body []byte, fallback string) string {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fallback
	}
	return msg
}
