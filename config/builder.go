package config

import (
	"sort"

	"github.com/jpalmerr/snapview"
)

// BuildOptions converts parsed configuration into SDK options.
//
// Only values present in the file produce an option, so the SDK defaults
// apply to everything else. Callers may append their own options, which
// take precedence because options are applied in order.
func BuildOptions(cfg *Config) []snapview.Option {
	opts := []snapview.Option{
		snapview.WithPort(cfg.Port),
		snapview.WithMode(snapview.Mode(cfg.Mode)),
		snapview.WithURL(cfg.Stream.URL),
		snapview.WithInterval(cfg.Stream.Interval.Duration()),
	}

	if cfg.Title != "" {
		opts = append(opts, snapview.WithTitle(cfg.Title))
	}
	if cfg.Locale != "" {
		opts = append(opts, snapview.WithLocale(cfg.Locale))
	}
	if cfg.LocalDetection != "" {
		opts = append(opts, snapview.WithLocalDetection(cfg.LocalDetection))
	}
	if cfg.MaxFrameBytes > 0 {
		opts = append(opts, snapview.WithMaxFrameBytes(cfg.MaxFrameBytes))
	}

	s := cfg.Stream
	if s.Autostart {
		opts = append(opts, snapview.WithAutostart(true))
	}
	if s.Timeout != 0 {
		opts = append(opts, snapview.WithTimeout(s.Timeout.Duration()))
	}
	if s.Username != "" {
		opts = append(opts, snapview.WithBasicAuth(s.Username, s.Password))
	}
	if len(s.Headers) > 0 {
		opts = append(opts, snapview.WithHeaders(mapToKeyValuePairs(s.Headers)...))
	}

	if cfg.Policy.Loading != "" {
		opts = append(opts, snapview.WithLoadingPolicy(cfg.Policy.Loading))
	}
	if cfg.Policy.Stale != "" {
		opts = append(opts, snapview.WithStalePolicy(cfg.Policy.Stale))
	}

	return opts
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
