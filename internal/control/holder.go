// Package control holds the user-editable stream configuration and the
// run/stop flag.
//
// The [Holder] has no knowledge of networking. Configuration may only change
// while the stream is stopped; the interval's lower bound is checked when a
// start is requested, not on every edit.
package control

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zeebo/errs"
)

const (
	// MinIntervalSeconds is the smallest refresh period accepted by RequestStart.
	MinIntervalSeconds = 0.1

	// DefaultURL is the snapshot endpoint used when nothing else is configured.
	DefaultURL = "http://192.168.0.166/image/jpeg.cgi"

	// DefaultIntervalSeconds is the refresh period used when nothing else is configured.
	DefaultIntervalSeconds = 1.0
)

// ValidationError is the error class returned when a start request is rejected
// because of invalid input. Use ValidationError.Has(err) to test for it.
var ValidationError = errs.Class("validation")

// Causes carried by a [ValidationError]; test with errors.Is.
var (
	ErrEmptyURL         = errors.New("camera URL cannot be empty")
	ErrIntervalTooShort = errors.New("interval is below the minimum")
)

// ErrRunning is returned when configuration is edited while the stream is running.
var ErrRunning = errors.New("stream is running: stop it before changing the configuration")

// ErrNotDirect is returned when a browser reports an attempt result while the
// server fetches frames itself.
var ErrNotDirect = errors.New("attempt results are only accepted in direct mode")

// StreamConfig is the pair of user inputs driving the poller.
type StreamConfig struct {
	URL             string  `json:"url"`
	IntervalSeconds float64 `json:"interval_seconds"`
}

// DefaultStreamConfig returns the start-up configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		URL:             DefaultURL,
		IntervalSeconds: DefaultIntervalSeconds,
	}
}

// Validate checks the invariants enforced at start time.
func (c StreamConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return ValidationError.Wrap(ErrEmptyURL)
	}
	// NaN fails both comparisons, so test the accepted range explicitly
	if !(c.IntervalSeconds >= MinIntervalSeconds) {
		return ValidationError.Wrap(fmt.Errorf("%w: must be at least %g seconds, got %g",
			ErrIntervalTooShort, MinIntervalSeconds, c.IntervalSeconds))
	}
	return nil
}

// Holder owns the stream configuration and the run flag.
//
// All methods are safe for concurrent use.
type Holder struct {
	mu      sync.RWMutex
	cfg     StreamConfig
	running bool
}

// NewHolder creates a stopped [Holder] with the given configuration.
func NewHolder(cfg StreamConfig) *Holder {
	return &Holder{cfg: cfg}
}

// SetURL replaces the source URL. Returns [ErrRunning] unless stopped.
func (h *Holder) SetURL(value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrRunning
	}
	h.cfg.URL = value
	return nil
}

// SetInterval replaces the refresh period in seconds. Returns [ErrRunning]
// unless stopped. The value is not validated here.
func (h *Holder) SetInterval(seconds float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrRunning
	}
	h.cfg.IntervalSeconds = seconds
	return nil
}

// RequestStart validates the configuration and sets the run flag.
//
// On a [ValidationError] the flag is left untouched. Calling RequestStart
// while already running is a no-op.
func (h *Holder) RequestStart() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	if err := h.cfg.Validate(); err != nil {
		return err
	}
	h.running = true
	return nil
}

// RequestStop clears the run flag unconditionally.
func (h *Holder) RequestStop() {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
}

// Config returns a copy of the current configuration.
func (h *Holder) Config() StreamConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Running reports whether the run flag is set.
func (h *Holder) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
