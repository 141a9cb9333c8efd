package snapview

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jpalmerr/snapview/internal/poller"
)

// FrameValidator decides whether a relayed response is a usable frame.
//
// FrameValidator is a pure function of the response: the same inputs always
// produce the same verdict. It returns nil to accept the frame. A rejection
// fails the attempt; errors produced by the built-in validators carry a
// classified cause ("auth_required", "http_status", "not_image"), any other
// error is reported as "not_image".
//
// Validators only apply in [ModeRelay]. In [ModeDirect] the browser decides.
//
// # Panic Safety
//
// Validators run inside the relay fetch, which recovers panics: a panicking
// validator fails the attempt with the "loader_panic" cause and a
// correlation ID in the log.
type FrameValidator func(statusCode int, contentType string, body []byte) error

// DefaultValidator accepts 2xx responses with a non-empty body whose content
// type, or sniffed type when the camera sends none, is an image.
//
// 401 and 403 fail with the "auth_required" cause.
var DefaultValidator FrameValidator = poller.DefaultFrameValidator

// StatusValidator returns a [FrameValidator] that accepts only the listed
// status codes. With no codes it accepts any 2xx.
//
// 401 and 403 fail with "auth_required" unless listed; other codes fail
// with "http_status".
//
// Example:
//
//	// some cameras answer snapshots with 203
//	v := snapview.AllOf(snapview.StatusValidator(200, 203), snapview.ImageValidator)
func StatusValidator(codes ...int) FrameValidator {
	allowed := make(map[int]bool, len(codes))
	for _, c := range codes {
		allowed[c] = true
	}

	return func(statusCode int, contentType string, body []byte) error {
		ok := allowed[statusCode]
		if len(allowed) == 0 {
			ok = statusCode >= 200 && statusCode < 300
		}
		switch {
		case ok:
			return nil
		case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
			return &poller.FetchError{Cause: poller.CauseAuthRequired, StatusCode: statusCode}
		default:
			return &poller.FetchError{Cause: poller.CauseHTTPStatus, StatusCode: statusCode}
		}
	}
}

// ImageValidator is a [FrameValidator] that ignores the status code and
// accepts any non-empty body whose media type is image/*. The body is
// sniffed when the header is missing or application/octet-stream.
var ImageValidator FrameValidator = func(statusCode int, contentType string, body []byte) error {
	if len(body) == 0 {
		return notImage(statusCode, errors.New("empty body"))
	}
	mediaType := poller.MediaType(contentType, body)
	if !strings.HasPrefix(mediaType, "image/") {
		return notImage(statusCode, errors.New("content type "+mediaType))
	}
	return nil
}

// jpegSOI is the JPEG start-of-image marker followed by the first marker prefix.
var jpegSOI = []byte{0xFF, 0xD8, 0xFF}

// JPEGValidator is a [FrameValidator] that accepts bodies starting with a
// JPEG start-of-image marker, whatever the headers say.
//
// Use it for cameras that label snapshots text/html or text/plain.
var JPEGValidator FrameValidator = func(statusCode int, contentType string, body []byte) error {
	if !bytes.HasPrefix(body, jpegSOI) {
		return notImage(statusCode, errors.New("body is not a JPEG image"))
	}
	return nil
}

// MinSizeValidator returns a [FrameValidator] rejecting bodies shorter than
// n bytes. Some cameras answer with a tiny placeholder while rebooting.
func MinSizeValidator(n int) FrameValidator {
	return func(statusCode int, contentType string, body []byte) error {
		if len(body) < n {
			return notImage(statusCode, fmt.Errorf("body is %d bytes, want at least %d", len(body), n))
		}
		return nil
	}
}

// AllOf returns a [FrameValidator] that applies validators in order and
// returns the first rejection. With no validators it accepts everything.
//
// Example:
//
//	v := snapview.AllOf(
//	    snapview.StatusValidator(),
//	    snapview.JPEGValidator,
//	    snapview.MinSizeValidator(1024),
//	)
func AllOf(validators ...FrameValidator) FrameValidator {
	return func(statusCode int, contentType string, body []byte) error {
		for _, v := range validators {
			if err := v(statusCode, contentType, body); err != nil {
				return err
			}
		}
		return nil
	}
}

func notImage(statusCode int, err error) error {
	return &poller.FetchError{Cause: poller.CauseNotImage, StatusCode: statusCode, Err: err}
}
