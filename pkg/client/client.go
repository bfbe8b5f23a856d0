// Package client is the Go SDK for the licverify verification endpoint.
//
// Client performs a single verification call with retries on transient
// failures. Validator layers an offline cache on top so a machine that was
// verified once keeps working while the server is unreachable.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// VerifyPath is the endpoint Verify posts to.
const VerifyPath = "/api/verify_license"

const (
	defaultTimeout  = 5 * time.Second
	defaultRetryMax = 2
)

var (
	// ErrUnavailable means no decision could be obtained from the server:
	// it was unreachable, timed out, or kept answering 409/5xx.
	ErrUnavailable = errors.New("license server unavailable")
	// ErrRejected means the server refused the request itself (4xx).
	ErrRejected = errors.New("license server rejected the request")
)

// Result is the server's verification answer.
type Result struct {
	Valid       bool   `json:"valid"`
	HWIDMatch   bool   `json:"hwid_match"`
	ProductType string `json:"product_type,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Authorized reports whether the result permits running on this machine.
func (r *Result) Authorized() bool {
	return r.Valid && r.HWIDMatch
}

type Client struct {
	baseURL   string
	userAgent string
	http      *retryablehttp.Client
}

type Option func(*Client)

// WithRetryMax sets how many times a failed attempt is retried.
func WithRetryMax(n int) Option {
	return func(c *Client) { c.http.RetryMax = n }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

// WithRetryWait sets the backoff bounds between attempts.
func WithRetryWait(min, max time.Duration) Option {
	return func(c *Client) {
		c.http.RetryWaitMin = min
		c.http.RetryWaitMax = max
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger routes retry diagnostics to log.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.http.Logger = leveledLogger{log} }
}

// New returns a client for the server at baseURL (scheme and host, no path).
func New(baseURL string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = defaultRetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = defaultTimeout
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{baseURL: strings.TrimRight(baseURL, "/"), http: rc}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// checkRetry extends the default policy with 409, which the server returns
// when a concurrent first activation left the outcome undecided.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.StatusCode == http.StatusConflict {
		return ctx.Err() == nil, ctx.Err()
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Verify asks the server whether licenseKey may run on hwid.
// Business negatives (unknown key, inactive, mismatch) come back as a
// Result; errors are reserved for transport and server failures.
func (c *Client) Verify(ctx context.Context, licenseKey, hwid string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"license_key": licenseKey, "hwid": hwid})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+VerifyPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusConflict || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d%s", ErrUnavailable, resp.StatusCode, serverMessage(raw))
	default:
		return nil, fmt.Errorf("%w: status %d%s", ErrRejected, resp.StatusCode, serverMessage(raw))
	}

	var wire struct {
		Result
		HWIDMatch *bool `json:"hwid_match"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	res := wire.Result
	// older servers may omit hwid_match; treat that as a match
	res.HWIDMatch = wire.HWIDMatch == nil || *wire.HWIDMatch
	return &res, nil
}

func serverMessage(raw []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &m) != nil {
		return ""
	}
	if m.Message != "" {
		return ": " + m.Message
	}
	if m.Error != "" {
		return ": " + m.Error
	}
	return ""
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Error().Fields(kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Info().Fields(kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debug().Fields(kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warn().Fields(kv).Msg(msg) }
