package config

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/snapview/internal/control"
)

func TestParse_MinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte(`title: Porch`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Mode != "relay" {
		t.Errorf("Mode = %q, want relay", cfg.Mode)
	}
	if cfg.Stream.URL != control.DefaultURL {
		t.Errorf("Stream.URL = %q, want %q", cfg.Stream.URL, control.DefaultURL)
	}
	if cfg.Stream.Interval.Duration() != time.Second {
		t.Errorf("Stream.Interval = %v, want 1s", cfg.Stream.Interval.Duration())
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Port != 8080 || cfg.Stream.URL != control.DefaultURL {
		t.Errorf("Parse(nil) = %+v, want defaults", cfg)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Driveway
port: 9090
mode: DIRECT
locale: en
local_detection: heuristic
max_frame_bytes: 1048576

stream:
  url: http://10.0.0.20/snapshot.jpg?channel=1
  interval: 0.25
  autostart: true
  timeout: 3s
  username: admin
  password: hunter2
  headers:
    X-Api-Key: abc

policy:
  loading: every_attempt
  stale: ignore_out_of_order
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Driveway" {
		t.Errorf("Title = %q", cfg.Title)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Mode != "direct" {
		t.Errorf("Mode = %q, want direct", cfg.Mode)
	}
	if cfg.Locale != "en" || cfg.LocalDetection != "heuristic" || cfg.MaxFrameBytes != 1<<20 {
		t.Errorf("Locale/LocalDetection/MaxFrameBytes = %q/%q/%d", cfg.Locale, cfg.LocalDetection, cfg.MaxFrameBytes)
	}

	s := cfg.Stream
	if s.URL != "http://10.0.0.20/snapshot.jpg?channel=1" {
		t.Errorf("Stream.URL = %q", s.URL)
	}
	if s.Interval.Duration() != 250*time.Millisecond {
		t.Errorf("Stream.Interval = %v, want 250ms", s.Interval.Duration())
	}
	if !s.Autostart {
		t.Error("Stream.Autostart = false, want true")
	}
	if s.Timeout.Duration() != 3*time.Second {
		t.Errorf("Stream.Timeout = %v, want 3s", s.Timeout.Duration())
	}
	if s.Username != "admin" || s.Password != "hunter2" {
		t.Errorf("credentials = %q/%q", s.Username, s.Password)
	}
	if s.Headers["X-Api-Key"] != "abc" {
		t.Errorf("Headers[X-Api-Key] = %q, want abc", s.Headers["X-Api-Key"])
	}

	if cfg.Policy.Loading != "every_attempt" || cfg.Policy.Stale != "ignore_out_of_order" {
		t.Errorf("Policy = %+v", cfg.Policy)
	}
}

func TestParse_IntervalForms(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{value: "1", want: time.Second},
		{value: "0.1", want: 100 * time.Millisecond},
		{value: "2.5", want: 2500 * time.Millisecond},
		{value: "500ms", want: 500 * time.Millisecond},
		{value: `"1m"`, want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg, err := Parse([]byte("stream:\n  interval: " + tt.value + "\n"))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := cfg.Stream.Interval.Duration(); got != tt.want {
				t.Errorf("Interval = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeconds_DurationSaturates(t *testing.T) {
	if got := Seconds(1e12).Duration(); got != time.Duration(math.MaxInt64) {
		t.Errorf("Seconds(1e12).Duration() = %v, want the maximum duration", got)
	}
	if got := Seconds(math.Inf(1)).Duration(); got != time.Duration(math.MaxInt64) {
		t.Errorf("Seconds(+Inf).Duration() = %v, want the maximum duration", got)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("TEST_CAMERA_HOST", "192.168.1.50")
	t.Setenv("TEST_CAMERA_PASSWORD", "s3cret")
	t.Setenv("TEST_CAMERA_TOKEN", "tok")

	yaml := `
stream:
  url: http://${TEST_CAMERA_HOST}/image/jpeg.cgi
  username: ${TEST_CAMERA_USER:-admin}
  password: ${TEST_CAMERA_PASSWORD}
  headers:
    Authorization: Bearer ${TEST_CAMERA_TOKEN}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	s := cfg.Stream
	if s.URL != "http://192.168.1.50/image/jpeg.cgi" {
		t.Errorf("URL = %q", s.URL)
	}
	if s.Username != "admin" {
		t.Errorf("Username = %q, want default admin", s.Username)
	}
	if s.Password != "s3cret" {
		t.Errorf("Password = %q", s.Password)
	}
	if s.Headers["Authorization"] != "Bearer tok" {
		t.Errorf("Headers[Authorization] = %q", s.Headers["Authorization"])
	}
}

func TestParse_EnvVarEmptyDefault(t *testing.T) {
	cfg, err := Parse([]byte("stream:\n  url: http://cam${TEST_UNSET_SUFFIX:-}/snap.jpg\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Stream.URL != "http://cam/snap.jpg" {
		t.Errorf("URL = %q, want http://cam/snap.jpg", cfg.Stream.URL)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
stream:
  password: ${TEST_DEFINITELY_NOT_SET_12345}
  username: admin
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "stream.password") || !strings.Contains(err.Error(), "TEST_DEFINITELY_NOT_SET_12345") {
		t.Errorf("error = %v, want mention of stream.password and the variable", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantErrLike string
	}{
		{
			name:        "invalid yaml",
			yaml:        "port: [",
			wantErrLike: "failed to parse YAML",
		},
		{
			name:        "port out of range",
			yaml:        "port: 70000",
			wantErrLike: "port must be between 1 and 65535",
		},
		{
			name:        "unknown mode",
			yaml:        "mode: mjpeg",
			wantErrLike: "mode must be relay or direct",
		},
		{
			name:        "bad locale",
			yaml:        "locale: not a tag!",
			wantErrLike: "locale",
		},
		{
			name:        "bad local detection",
			yaml:        "local_detection: guess",
			wantErrLike: "local_detection must be cidr or heuristic",
		},
		{
			name:        "negative max frame bytes",
			yaml:        "max_frame_bytes: -1",
			wantErrLike: "max_frame_bytes cannot be negative",
		},
		{
			name:        "url without scheme",
			yaml:        "stream:\n  url: 192.168.0.166/image/jpeg.cgi\n",
			wantErrLike: "must have a scheme",
		},
		{
			name:        "url with other scheme",
			yaml:        "stream:\n  url: rtsp://192.168.0.166/live\n",
			wantErrLike: "scheme must be http or https",
		},
		{
			name:        "interval too short",
			yaml:        "stream:\n  interval: 0.05\n",
			wantErrLike: "stream.interval must be at least 0.1s",
		},
		{
			name:        "interval negative",
			yaml:        "stream:\n  interval: -1\n",
			wantErrLike: "stream.interval must be at least",
		},
		{
			name:        "interval garbage",
			yaml:        "stream:\n  interval: soon\n",
			wantErrLike: "invalid interval",
		},
		{
			name:        "interval not scalar",
			yaml:        "stream:\n  interval: [1]\n",
			wantErrLike: "interval must be a number or duration",
		},
		{
			name:        "timeout garbage",
			yaml:        "stream:\n  timeout: forever\n",
			wantErrLike: "invalid duration",
		},
		{
			name:        "timeout negative",
			yaml:        "stream:\n  timeout: -1s\n",
			wantErrLike: "stream.timeout cannot be negative",
		},
		{
			name:        "timeout too long",
			yaml:        "stream:\n  timeout: 1h\n",
			wantErrLike: "stream.timeout must not exceed",
		},
		{
			name:        "password without username",
			yaml:        "stream:\n  password: pw\n",
			wantErrLike: "stream.password requires stream.username",
		},
		{
			name:        "unknown loading policy",
			yaml:        "policy:\n  loading: sometimes\n",
			wantErrLike: "policy.loading must be",
		},
		{
			name:        "unknown stale policy",
			yaml:        "policy:\n  stale: newest\n",
			wantErrLike: "policy.stale must be",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrLike) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErrLike)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/snapview.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Load() error = %v, want read failure", err)
	}
}
