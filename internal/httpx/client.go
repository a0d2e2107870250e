// Package httpx is the shared HTTP transport: one http.Client with bounded
// exponential retries for connection failures and server errors.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = 8 * time.Second
	defaultUserAgent   = "vodarchive"
)

var ErrNotFound = errors.New("httpx: not found")

// StatusError reports a response with an unexpected status code.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("httpx: unexpected status %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("httpx: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// TransportError wraps a request that never produced a response after all
// retries (DNS, refused connection, TLS, timeouts).
type TransportError struct {
	URL   string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("httpx: request to %s failed: %v", e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// IsTransport reports whether err is a connection-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

type Client struct {
	HTTP        *http.Client
	UserAgent   string
	MaxRetries  uint64
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func New() *Client {
	return &Client{
		HTTP:        &http.Client{Timeout: defaultTimeout},
		UserAgent:   defaultUserAgent,
		MaxRetries:  defaultMaxRetries,
		BaseBackoff: defaultBaseBackoff,
		MaxBackoff:  defaultMaxBackoff,
	}
}

func (c *Client) backoff() retry.Backoff {
	base := c.BaseBackoff
	if base <= 0 {
		base = defaultBaseBackoff
	}
	max := c.MaxBackoff
	if max <= 0 {
		max = defaultMaxBackoff
	}
	b := retry.NewExponential(base)
	b = retry.WithCappedDuration(max, b)
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(c.MaxRetries, b)
}

// Do sends req, retrying connection errors, 429 and 5xx responses. The
// request must be replayable (nil body or GetBody set). A non-nil response is
// returned for every other status; callers own resp.Body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if req.Header.Get("User-Agent") == "" {
		ua := c.UserAgent
		if ua == "" {
			ua = defaultUserAgent
		}
		req.Header.Set("User-Agent", ua)
	}

	if req.GetBody != nil && req.Body != nil && req.Body != http.NoBody {
		// Attempts read from GetBody, so the original body is never sent.
		_ = req.Body.Close()
	}

	var resp *http.Response
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return err
			}
			attempt.Body = body
		}

		r, err := httpClient.Do(attempt)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retry.RetryableError(&TransportError{URL: req.URL.String(), Cause: err})
		}
		if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
			body := readSnippet(r.Body)
			_ = r.Body.Close()
			return retry.RetryableError(&StatusError{URL: req.URL.String(), StatusCode: r.StatusCode, Body: body})
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Get issues a GET with the given headers.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.Do(ctx, req)
}

// GetJSON fetches rawURL and decodes a JSON body into v. A 404 yields
// ErrNotFound; any other non-2xx status yields a *StatusError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, v any) error {
	if header == nil {
		header = http.Header{}
	}
	if header.Get("Accept") == "" {
		header.Set("Accept", "application/json")
	}

	resp, err := c.Get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("httpx: decode %s: %w", rawURL, err)
	}
	return nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 16*1024))
	return strings.TrimSpace(string(b))
}
