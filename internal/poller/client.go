package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxFrameBytes is the frame size limit used when none is configured.
const DefaultMaxFrameBytes = 8 << 20 // 8MB

// a single camera is polled, so keep the pool small but always warm
const (
	defaultMaxIdleConns        = 4
	defaultMaxIdleConnsPerHost = 4
	defaultMaxConnsPerHost     = 8
	defaultIdleConnTimeout     = 60 * time.Second
)

// Response holds the result of a snapshot request made by [Client].
type Response struct {
	// Body contains the response body, limited to the client's frame size.
	Body []byte

	// StatusCode is the HTTP status code. Zero if the request failed before
	// receiving a response.
	StatusCode int

	// ContentType is the response's Content-Type header, verbatim.
	ContentType string

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error is a *FetchError describing a transport failure, nil when a
	// response body was read (whatever its status).
	Error error
}

// BasicAuth holds HTTP basic auth credentials for a snapshot request.
type BasicAuth struct {
	Username string
	Password string
}

// Client is an HTTP client wrapper for fetching camera snapshots.
//
// Timeouts are applied per request via context rather than globally, so a
// stopped stream can abandon its in-flight requests immediately.
type Client struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewClient creates a snapshot [Client]. Bodies larger than maxBytes fail
// with [CauseTooLarge]; a non-positive value selects [DefaultMaxFrameBytes].
func NewClient(maxBytes int64) *Client {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	return &Client{
		maxBytes: maxBytes,
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Fetch performs a GET of url with the given headers, optional basic auth
// and timeout.
//
// Fetch always returns a Response; transport errors are captured in the
// Error field, classified with a [Cause]. Non-2xx responses are not errors
// at this level: judging the response is the [FrameValidator]'s job.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, auth *BasicAuth, timeout time.Duration) Response {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   &FetchError{Cause: CauseInvalidURL, Err: err},
		}
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}
	// snapshots must never come from an intermediate cache
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   &FetchError{Cause: classifyTransport(err), Err: fmt.Errorf("request failed: %w", err)},
		}
	}
	defer func() { _ = resp.Body.Close() }()

	// read one byte past the limit to tell "exactly max" from "too big"
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		cause := classifyTransport(err)
		if cause == CauseUnreachable {
			cause = CauseReadFailed
		}
		return Response{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Latency:     time.Since(start),
			Error:       &FetchError{Cause: cause, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)},
		}
	}
	if int64(len(body)) > c.maxBytes {
		return Response{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Latency:     time.Since(start),
			Error:       &FetchError{Cause: CauseTooLarge, StatusCode: resp.StatusCode, Err: fmt.Errorf("frame exceeds %d bytes", c.maxBytes)},
		}
	}

	return Response{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Latency:     time.Since(start),
	}
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times; the client remains usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
