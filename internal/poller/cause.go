package poller

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Cause classifies why an attempt failed.
type Cause string

const (
	CauseInvalidURL   Cause = "invalid_url"
	CauseTimeout      Cause = "timeout"
	CauseUnreachable  Cause = "unreachable"
	CauseAuthRequired Cause = "auth_required"
	CauseHTTPStatus   Cause = "http_status"
	CauseNotImage     Cause = "not_image"
	CauseReadFailed   Cause = "read_failed"
	CauseTooLarge     Cause = "too_large"
	CauseCanceled     Cause = "canceled"

	// CauseLoadFailed is reported by browsers, which do not say why an
	// image failed to load.
	CauseLoadFailed Cause = "load_failed"

	// CauseLoaderPanic means the loader panicked; the log carries a
	// correlation id.
	CauseLoaderPanic Cause = "loader_panic"
)

// FetchError is a classified attempt failure.
type FetchError struct {
	Cause Cause

	// StatusCode is the HTTP status, zero if no response was received.
	StatusCode int

	Err error
}

func (e *FetchError) Error() string {
	msg := string(e.Cause)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CauseOf returns the cause carried by err, classifying unclassified
// transport errors. Nil yields an empty cause.
func CauseOf(err error) Cause {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Cause
	}
	return classifyTransport(err)
}

// classifyTransport maps an error returned by http.Client.Do or a body read.
func classifyTransport(err error) Cause {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CauseTimeout
	case errors.Is(err, context.Canceled):
		return CauseCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CauseTimeout
	}
	return CauseUnreachable
}
