// Package config provides YAML configuration parsing for SnapView.
//
// This package enables running SnapView as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
// Every value here is a start-up default: the dashboard can still edit the
// URL and interval while the stream is stopped.
//
// Example configuration:
//
//	port: 8080
//	mode: relay
//
//	stream:
//	  url: http://192.168.0.166/image/jpeg.cgi
//	  interval: 0.5
//	  autostart: true
//	  timeout: 5s
//	  username: admin
//	  password: ${CAMERA_PASSWORD}
//
//	policy:
//	  loading: on_start
//	  stale: ignore_superseded
package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/snapview/internal/control"
)

const (
	defaultPort = 8080

	// maxTimeout bounds a single snapshot fetch.
	maxTimeout = 5 * time.Minute
)

// Config is the root configuration structure for SnapView.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "SnapView" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Mode is "relay" (server fetches) or "direct" (browser fetches).
	// Defaults to relay.
	Mode string `yaml:"mode"`

	// Locale selects the dashboard copy, for example "ru" or "en".
	// Empty means negotiate from each request's Accept-Language.
	Locale string `yaml:"locale"`

	// LocalDetection is "cidr" or "heuristic". Defaults to cidr.
	LocalDetection string `yaml:"local_detection"`

	// MaxFrameBytes caps the size of a relayed snapshot.
	MaxFrameBytes int64 `yaml:"max_frame_bytes"`

	Stream StreamConfig `yaml:"stream"`
	Policy PolicyConfig `yaml:"policy"`
}

// StreamConfig describes the camera snapshot endpoint.
type StreamConfig struct {
	// URL is the snapshot endpoint.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Interval is the refresh period. Accepts seconds as a number (0.5)
	// or a duration string ("500ms"). Defaults to 1s.
	Interval Seconds `yaml:"interval"`

	// Autostart begins streaming as soon as the server is up.
	Autostart bool `yaml:"autostart"`

	// Timeout bounds each relayed fetch. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Username and Password enable HTTP basic auth for relayed fetches.
	// Both support environment variable substitution.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Headers are custom HTTP headers sent with each relayed fetch.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`
}

// PolicyConfig selects the refresh engine policies.
type PolicyConfig struct {
	// Loading is "on_start" (default) or "every_attempt".
	Loading string `yaml:"loading"`

	// Stale is "ignore_superseded" (default), "ignore_out_of_order" or "accept".
	Stale string `yaml:"stale"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Seconds is a period given in seconds. YAML may spell it as a bare number
// (1, 0.25) or as a duration string ("250ms").
type Seconds float64

// UnmarshalYAML implements yaml.Unmarshaler for Seconds.
func (s *Seconds) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("interval must be a number or duration, got %v", node.Kind)
	}

	parsed, err := ParseSeconds(node.Value)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeconds reads a period written as seconds ("0.5") or as a duration
// string ("500ms").
func ParseSeconds(v string) (Seconds, error) {
	v = strings.TrimSpace(v)
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return Seconds(f), nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: expected seconds or a duration like 500ms", v)
	}
	return Seconds(d.Seconds()), nil
}

// Duration converts the period to a time.Duration, rounded to the
// millisecond. Periods beyond the range of time.Duration saturate.
func (s Seconds) Duration() time.Duration {
	ms := math.Round(float64(s) * 1000)
	if ms >= float64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms) * time.Millisecond
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the stream URL, credentials and
// header values. Defaults are applied for Port (8080), Mode (relay),
// stream.url and stream.interval (1s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Mode == "" {
		c.Mode = "relay"
	}
	if c.Stream.URL == "" {
		c.Stream.URL = control.DefaultURL
	}
	if c.Stream.Interval == 0 {
		c.Stream.Interval = Seconds(control.DefaultIntervalSeconds)
	}
}

// Validate expands environment variables and validates the config.
// Call it again after changing fields of a parsed Config.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	switch strings.ToLower(c.Mode) {
	case "relay", "direct":
		c.Mode = strings.ToLower(c.Mode)
	default:
		return fmt.Errorf("mode must be relay or direct, got %q", c.Mode)
	}

	if c.Locale != "" {
		if _, err := language.Parse(c.Locale); err != nil {
			return fmt.Errorf("locale %q: %w", c.Locale, err)
		}
	}

	switch c.LocalDetection {
	case "", "cidr", "heuristic":
	default:
		return fmt.Errorf("local_detection must be cidr or heuristic, got %q", c.LocalDetection)
	}

	if c.MaxFrameBytes < 0 {
		return fmt.Errorf("max_frame_bytes cannot be negative, got %d", c.MaxFrameBytes)
	}

	if err := c.Stream.expandAndValidate(); err != nil {
		return err
	}

	switch c.Policy.Loading {
	case "", "on_start", "every_attempt":
	default:
		return fmt.Errorf("policy.loading must be on_start or every_attempt, got %q", c.Policy.Loading)
	}

	switch c.Policy.Stale {
	case "", "ignore_superseded", "ignore_out_of_order", "accept":
	default:
		return fmt.Errorf("policy.stale must be ignore_superseded, ignore_out_of_order or accept, got %q", c.Policy.Stale)
	}

	return nil
}

func (s *StreamConfig) expandAndValidate() error {
	expanded, err := expandEnvVars(s.URL)
	if err != nil {
		return fmt.Errorf("stream.url: %w", err)
	}
	s.URL = expanded

	parsedURL, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("stream.url: invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("stream.url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("stream.url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	if !(float64(s.Interval) >= control.MinIntervalSeconds) {
		return fmt.Errorf("stream.interval must be at least %gs, got %gs", control.MinIntervalSeconds, float64(s.Interval))
	}

	if s.Timeout != 0 {
		if s.Timeout.Duration() < 0 {
			return fmt.Errorf("stream.timeout cannot be negative, got %s", s.Timeout.Duration())
		}
		if s.Timeout.Duration() > maxTimeout {
			return fmt.Errorf("stream.timeout must not exceed %s, got %s", maxTimeout, s.Timeout.Duration())
		}
	}

	if s.Username, err = expandEnvVars(s.Username); err != nil {
		return fmt.Errorf("stream.username: %w", err)
	}
	if s.Password, err = expandEnvVars(s.Password); err != nil {
		return fmt.Errorf("stream.password: %w", err)
	}
	if s.Password != "" && s.Username == "" {
		return errors.New("stream.password requires stream.username")
	}

	for k, v := range s.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("stream.headers[%s]: %w", k, err)
		}
		s.Headers[k] = expanded
	}

	return nil
}
