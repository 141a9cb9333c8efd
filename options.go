package snapview

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	"k8s.io/utils/clock"

	"github.com/jpalmerr/snapview/internal/netcheck"
	"github.com/jpalmerr/snapview/internal/poller"
	"github.com/jpalmerr/snapview/internal/render"
)

// viewerConfig holds mutable state during Viewer construction.
type viewerConfig struct {
	title          string
	url            string
	interval       time.Duration
	port           int
	mode           Mode
	loadingPolicy  poller.LoadingPolicy
	stalePolicy    poller.StalePolicy
	autostart      bool
	timeout        time.Duration
	username       string
	password       string
	headers        map[string]string
	validator      FrameValidator
	maxFrameBytes  int64
	locale         string
	detection      netcheck.Detection
	location       *time.Location
	clock          clock.WithTicker
	logger         *slog.Logger
	stateCallbacks []func(State)
}

// Option is a function that configures a [Viewer] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*viewerConfig) error

// WithURL sets the camera's snapshot URL used until it is edited from the
// dashboard.
//
// The URL must have a scheme. Defaults to http://192.168.0.166/image/jpeg.cgi.
//
// Example:
//
//	v, err := snapview.New(
//	    snapview.WithURL("http://10.0.0.20/cgi-bin/snapshot.cgi"),
//	)
func WithURL(rawURL string) Option {
	return func(cfg *viewerConfig) error {
		parsedURL, err := url.Parse(rawURL)
		if err != nil {
			return errors.New("invalid URL: " + err.Error())
		}
		if parsedURL.Scheme == "" {
			return errors.New("URL must have a scheme (http:// or https://)")
		}
		cfg.url = rawURL
		return nil
	}
}

// WithInterval sets the refresh period used until it is edited from the
// dashboard.
//
// Defaults to 1 second. Periods below 100ms are rejected when a start is
// requested, not here, so the dashboard can show the validation message.
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) Option {
	return func(cfg *viewerConfig) error {
		if d <= 0 {
			return errors.New("interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// The dashboard UI and API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *viewerConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithMode selects who fetches the snapshot, see [ModeRelay] and [ModeDirect].
//
// The mixed-content warning and the Private Network Access remediation are
// browser-side diagnostics and are shown only in [ModeDirect]. In the default
// [ModeRelay] the browser never contacts the camera, so neither can apply.
func WithMode(mode Mode) Option {
	return func(cfg *viewerConfig) error {
		switch Mode(strings.ToLower(string(mode))) {
		case ModeRelay:
			cfg.mode = ModeRelay
		case ModeDirect:
			cfg.mode = ModeDirect
		default:
			return fmt.Errorf("unknown mode %q (expected %q or %q)", mode, ModeRelay, ModeDirect)
		}
		return nil
	}
}

// WithLoadingPolicy decides when the loading spinner is raised:
// "on_start" (default) only for the first attempt of a run, "every_attempt"
// on every refresh.
func WithLoadingPolicy(policy string) Option {
	return func(cfg *viewerConfig) error {
		p, err := poller.ParseLoadingPolicy(policy)
		if err != nil {
			return err
		}
		cfg.loadingPolicy = p
		return nil
	}
}

// WithStalePolicy decides which results are applied when attempts resolve
// out of order: "ignore_superseded" (default) applies only the latest
// attempt, "ignore_out_of_order" applies anything newer than the last
// applied result, "accept" applies everything.
func WithStalePolicy(policy string) Option {
	return func(cfg *viewerConfig) error {
		p, err := poller.ParseStalePolicy(policy)
		if err != nil {
			return err
		}
		cfg.stalePolicy = p
		return nil
	}
}

// WithAutostart requests a start as soon as the server is listening.
// A configuration that fails validation is logged and the viewer stays idle.
func WithAutostart(enabled bool) Option {
	return func(cfg *viewerConfig) error {
		cfg.autostart = enabled
		return nil
	}
}

// WithTimeout sets the per-request timeout for relay fetches.
//
// Defaults to 10 seconds. A timeout longer than the interval is allowed:
// attempts overlap and the stale policy sorts out the results.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *viewerConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithBasicAuth sends HTTP basic credentials with relay fetches.
//
// Returns an error if the username is empty.
func WithBasicAuth(username, password string) Option {
	return func(cfg *viewerConfig) error {
		if username == "" {
			return errors.New("basic auth username cannot be empty")
		}
		cfg.username = username
		cfg.password = password
		return nil
	}
}

// WithHeaders adds custom HTTP headers to relay fetches.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	v, err := snapview.New(
//	    snapview.WithHeaders("X-Api-Key", "secret"),
//	)
//
// Returns an error if an odd number of arguments is provided.
func WithHeaders(keyValues ...string) Option {
	return func(cfg *viewerConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string, len(keyValues)/2)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithFrameValidator replaces the check deciding whether a relay response is
// a usable frame. Defaults to [DefaultValidator].
//
// Returns an error if the validator is nil.
func WithFrameValidator(v FrameValidator) Option {
	return func(cfg *viewerConfig) error {
		if v == nil {
			return errors.New("frame validator cannot be nil")
		}
		cfg.validator = v
		return nil
	}
}

// WithMaxFrameBytes limits the size of a relayed snapshot. Larger responses
// fail with the "too_large" cause. Defaults to 8 MiB.
func WithMaxFrameBytes(n int64) Option {
	return func(cfg *viewerConfig) error {
		if n <= 0 {
			return errors.New("max frame bytes must be positive")
		}
		cfg.maxFrameBytes = n
		return nil
	}
}

// WithLocale forces the dashboard language ("ru-RU" or "en-US"). When unset,
// each browser gets its Accept-Language match, falling back to Russian.
func WithLocale(locale string) Option {
	return func(cfg *viewerConfig) error {
		if !render.ValidLocale(locale) {
			return fmt.Errorf("invalid locale %q", locale)
		}
		cfg.locale = locale
		return nil
	}
}

// WithLocalDetection selects how the dashboard decides the camera is on the
// local network: "cidr" (default) checks private, loopback and link-local
// address ranges, "heuristic" matches the 192.168., 10. and 172. prefixes.
func WithLocalDetection(mode string) Option {
	return func(cfg *viewerConfig) error {
		d, ok := netcheck.ParseDetection(mode)
		if !ok {
			return fmt.Errorf("unknown local detection %q (expected %q or %q)", mode, netcheck.DetectCIDR, netcheck.DetectHeuristic)
		}
		cfg.detection = d
		return nil
	}
}

// WithLocation sets the time zone of times shown on the dashboard.
// Defaults to the server's local time zone.
//
// Returns an error if the location is nil.
func WithLocation(loc *time.Location) Option {
	return func(cfg *viewerConfig) error {
		if loc == nil {
			return errors.New("location cannot be nil")
		}
		cfg.location = loc
		return nil
	}
}

// WithClock replaces the clock driving the refresh ticker. Intended for tests.
//
// Returns an error if the clock is nil.
func WithClock(clk clock.WithTicker) Option {
	return func(cfg *viewerConfig) error {
		if clk == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = clk
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Viewer instance.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *viewerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithStateCallback registers a function to be called after every state
// change: start, stop, issued attempts and applied results.
//
// Multiple callbacks may be registered by calling WithStateCallback multiple
// times; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They run while the viewer holds
// its publish lock, so a blocking callback delays every state update, and a
// callback must not call back into the viewer.
//
// Panics within callbacks are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithStateCallback(cb func(State)) Option {
	return func(cfg *viewerConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.stateCallbacks = append(cfg.stateCallbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, the page uses the title of its language catalog.
func WithTitle(title string) Option {
	return func(cfg *viewerConfig) error {
		cfg.title = title
		return nil
	}
}

// durationSeconds converts a duration to the seconds shown in the form.
// Rounded to the millisecond so 100ms reads as 0.1.
func durationSeconds(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)) / 1000
}

// secondsDuration converts form seconds to a duration. Periods beyond the
// range of time.Duration, +Inf included, saturate at the maximum.
func secondsDuration(s float64) time.Duration {
	ns := math.Round(s * float64(time.Second))
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}
