package poller

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"
)

// Frame is a snapshot that loaded successfully.
type Frame struct {
	Token       int64
	ContentType string
	Data        []byte
	CapturedAt  time.Time
}

// Outcome is what a [Loader] reports for one attempt.
type Outcome struct {
	Resolution Resolution

	// Frame is set when the attempt loaded and the loader keeps the bytes.
	Frame *Frame
}

// Loader fetches the resource behind an attempt's display URL.
//
// Load must honour ctx: it is cancelled when the stream stops and, under
// [StaleIgnoreSuperseded], when a newer attempt is issued.
type Loader interface {
	Load(ctx context.Context, a Attempt) Outcome
}

// LoaderFunc adapts a function to the [Loader] interface.
type LoaderFunc func(ctx context.Context, a Attempt) Outcome

// Load calls f(ctx, a).
func (f LoaderFunc) Load(ctx context.Context, a Attempt) Outcome {
	return f(ctx, a)
}

// FrameValidator decides whether a fetched response is a usable frame.
// It returns nil to accept, or a *FetchError (other errors are classified
// as [CauseNotImage]).
type FrameValidator func(statusCode int, contentType string, body []byte) error

// DefaultFrameValidator accepts 2xx responses whose content type, or sniffed
// type when the camera sends none, is an image.
func DefaultFrameValidator(statusCode int, contentType string, body []byte) error {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &FetchError{Cause: CauseAuthRequired, StatusCode: statusCode}
	case statusCode < 200 || statusCode >= 300:
		return &FetchError{Cause: CauseHTTPStatus, StatusCode: statusCode}
	case len(body) == 0:
		return &FetchError{Cause: CauseNotImage, StatusCode: statusCode, Err: errors.New("empty body")}
	}

	mediaType := MediaType(contentType, body)
	if !strings.HasPrefix(mediaType, "image/") {
		return &FetchError{Cause: CauseNotImage, StatusCode: statusCode, Err: errors.New("content type " + mediaType)}
	}
	return nil
}

// MediaType returns the bare media type of a response, sniffing the body when
// the header is missing, unparsable or the generic octet-stream.
func MediaType(contentType string, body []byte) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" || mediaType == "application/octet-stream" {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(body))
	}
	return strings.ToLower(mediaType)
}

// RelayConfig configures a [RelayLoader].
type RelayConfig struct {
	// Headers are sent with every snapshot request.
	Headers map[string]string

	// Username and Password enable HTTP basic auth when Username is set.
	Username string
	Password string

	// Timeout bounds each request. Zero means no timeout beyond cancellation.
	Timeout time.Duration

	// Validator judges responses. Nil selects [DefaultFrameValidator].
	Validator FrameValidator
}

// RelayLoader fetches snapshots server-side and keeps successful frames.
type RelayLoader struct {
	client    *Client
	headers   map[string]string
	auth      *BasicAuth
	timeout   time.Duration
	validator FrameValidator
}

// NewRelayLoader creates a [RelayLoader] using client.
func NewRelayLoader(client *Client, cfg RelayConfig) *RelayLoader {
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	var auth *BasicAuth
	if cfg.Username != "" {
		auth = &BasicAuth{Username: cfg.Username, Password: cfg.Password}
	}

	validator := cfg.Validator
	if validator == nil {
		validator = DefaultFrameValidator
	}

	return &RelayLoader{
		client:    client,
		headers:   headers,
		auth:      auth,
		timeout:   cfg.Timeout,
		validator: validator,
	}
}

// Load implements [Loader].
func (l *RelayLoader) Load(ctx context.Context, a Attempt) Outcome {
	resp := l.client.Fetch(ctx, a.URL, l.headers, l.auth, l.timeout)

	err := resp.Error
	if err == nil {
		err = l.validator(resp.StatusCode, resp.ContentType, resp.Body)
	}
	if err != nil {
		cause := CauseOf(err)
		var fe *FetchError
		if !errors.As(err, &fe) {
			cause = CauseNotImage
		}
		return Outcome{Resolution: Resolution{Cause: cause, Detail: err.Error()}}
	}

	return Outcome{
		Resolution: Resolution{Loaded: true},
		Frame: &Frame{
			Token:       a.Token,
			ContentType: MediaType(resp.ContentType, resp.Body),
			Data:        resp.Body,
		},
	}
}

// Close releases the loader's idle connections.
func (l *RelayLoader) Close() {
	l.client.Close()
}
