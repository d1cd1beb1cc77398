// Package detector talks to the external thermal defect detection service.
//
// The service is a separate process that accepts a single image and returns
// bounding-box detections. This package only converts its answer into
// annotation candidates; persisting them is the annotation manager's job.
package detector

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/transformer-inspect/internal/logger"
)

const (
	// DefaultTimeout applies when the request context has no deadline.
	// Two-stage detection on a CPU host regularly takes several seconds.
	DefaultTimeout = 60 * time.Second

	// DefaultThreshold matches the service's own default.
	DefaultThreshold = 0.25

	// MinThreshold and MaxThreshold bound the threshold the service accepts.
	MinThreshold = 0.1
	MaxThreshold = 1.0

	defaultMaxIdleConns          = 10
	defaultMaxIdleConnsPerHost   = 4
	defaultIdleConnTimeout       = 90 * time.Second
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultResponseHeaderTimeout = 55 * time.Second
	defaultDialTimeout           = 10 * time.Second
	defaultDialKeepAlive         = 30 * time.Second

	defaultUserAgent = "transformer-inspect"
)

// Config holds the settings for a detection service client.
type Config struct {
	// BaseURL is the service root, e.g. http://127.0.0.1:8001
	BaseURL string

	// Timeout is applied if the request context has no deadline
	Timeout time.Duration

	// Threshold is used when a caller passes a zero threshold
	Threshold float64

	// UserAgent is added to all requests
	UserAgent string
}

// CallRecorder receives one observation per round trip.
type CallRecorder interface {
	RecordDetectorCall(status string, seconds float64)
}

// Client is a detection service client. It is safe for concurrent use.
type Client struct {
	client    *http.Client
	baseURL   string
	timeout   time.Duration
	threshold float64
	userAgent string

	log logger.Logger

	hookMu        sync.RWMutex
	afterResponse func(*http.Request, *http.Response, error, time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l logger.Logger) Option { return func(c *Client) { c.log = l } }

// WithRecorder installs an after hook that feeds r.
func WithRecorder(r CallRecorder) Option {
	return func(c *Client) {
		if r == nil {
			return
		}
		c.afterResponse = func(_ *http.Request, resp *http.Response, err error, elapsed time.Duration) {
			status := "error"
			if err == nil && resp != nil {
				status = strconv.Itoa(resp.StatusCode)
			}
			r.RecordDetectorCall(status, elapsed.Seconds())
		}
	}
}

// New creates a client. Zero config values fall back to defaults.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("detector: base URL is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("detector: base URL %q must use http or https", base)
	}

	c := &Client{
		baseURL:   base,
		timeout:   cfg.Timeout,
		threshold: cfg.Threshold,
		userAgent: cfg.UserAgent,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.threshold == 0 {
		c.threshold = DefaultThreshold
	}
	c.threshold = ClampThreshold(c.threshold)
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: defaultDialKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
	}
	c.client = &http.Client{Transport: transport}

	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	c.log = c.log.Module("detector")
	return c, nil
}

// ClampThreshold limits t to [MinThreshold, MaxThreshold] the way the service does.
func ClampThreshold(t float64) float64 {
	return max(MinThreshold, min(MaxThreshold, t))
}

// HTTPClient exposes the underlying client so tests can swap its transport.
func (c *Client) HTTPClient() *http.Client { return c.client }

// Threshold returns the configured default threshold.
func (c *Client) Threshold() float64 { return c.threshold }

// SetAfterResponseHook sets a function called after each round trip with its latency.
// Safe to call concurrently with Do.
func (c *Client) SetAfterResponseHook(fn func(*http.Request, *http.Response, error, time.Duration)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.afterResponse = fn
}

// Do executes req and reports it to the after hook.
// The response body must be closed by the caller if err is nil.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req = req.WithContext(ctx)

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)

	c.hookMu.RLock()
	hook := c.afterResponse
	c.hookMu.RUnlock()
	if hook != nil {
		hook(req, resp, err, elapsed)
	}

	return resp, err
}

// withTimeout applies the client timeout when ctx has no deadline.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Close closes idle connections in the pool.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
