// Package fetch provides the outbound transport and the source adapters that
// turn upstream pages and APIs into candidate records.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// ErrNoRecords is returned by an adapter whose upstream answered but yielded
// nothing usable.
var ErrNoRecords = errors.New("no usable records")

// maxBodyBytes bounds how much of an upstream body is read
const maxBodyBytes = 16 << 20

// Kind distinguishes transport failures from non-2xx responses
type Kind int

const (
	// KindTransport covers unreachable hosts, timeouts and body read errors
	KindTransport Kind = iota
	// KindStatus is a response outside the 2xx range
	KindStatus
)

func (k Kind) String() string {
	if k == KindStatus {
		return "status"
	}
	return "transport"
}

// Error is the single error type raised by the transport.
type Error struct {
	Kind   Kind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Response is a fully read upstream response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Fetcher is the outbound transport used by every adapter.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*Response, error)
}

// Options configures the HTTP transport
type Options struct {
	Timeout      time.Duration `toml:"timeout"`
	RetryMax     int           `toml:"retry_max"`
	RetryWaitMin time.Duration `toml:"retry_wait_min"`
	RetryWaitMax time.Duration `toml:"retry_wait_max"`
	UserAgent    string        `toml:"user_agent"`
}

// DefaultOptions returns the transport defaults: a 30 second budget per
// request and three retries.
func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 3 * time.Second,
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// HTTPClient implements Fetcher on top of a retrying HTTP client.
type HTTPClient struct {
	client    *retryablehttp.Client
	userAgent string
}

// NewHTTPClient creates a retrying transport.
func NewHTTPClient(opts Options) *HTTPClient {
	return &HTTPClient{
		client:    newRetryClient(opts),
		userAgent: opts.UserAgent,
	}
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient(opts Options) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = opts.RetryMax
	c.RetryWaitMin = opts.RetryWaitMin
	c.RetryWaitMax = opts.RetryWaitMax
	c.HTTPClient.Timeout = opts.Timeout
	c.Logger = nil
	// Hand the last response back so non-2xx can be classified by status
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

// Fetch performs a GET and reads the whole body.
func (c *HTTPClient) Fetch(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: url, Err: err}
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logrus.Debugf("Fetching %s", url)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &Error{Kind: KindStatus, URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: url, Err: fmt.Errorf("error reading body: %w", err)}
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}

// jsonHeaders and htmlHeaders are the Accept headers sent per body type
var (
	jsonHeaders = map[string]string{
		"Accept": "application/json",
	}
	htmlHeaders = map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
	}
)
