package snapview

import (
	"bytes"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/snapview/internal/netcheck"
	"github.com/jpalmerr/snapview/internal/poller"
)

func TestNew_Defaults(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if v.Port() != 8080 {
		t.Errorf("Port() = %v, want %v", v.Port(), 8080)
	}
	if v.Mode() != ModeRelay {
		t.Errorf("Mode() = %v, want %v", v.Mode(), ModeRelay)
	}

	s := v.State()
	if s.Status != StatusIdle || s.Phase != PhaseIdle || s.Running {
		t.Errorf("State() = %+v, want idle", s)
	}
	if s.URL != "http://192.168.0.166/image/jpeg.cgi" {
		t.Errorf("URL = %q", s.URL)
	}
	if s.Interval != time.Second {
		t.Errorf("Interval = %v, want 1s", s.Interval)
	}
	if v.cfg.timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", v.cfg.timeout)
	}
}

func TestNew_OptionErrors(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr string
	}{
		{name: "url without scheme", opt: WithURL("192.168.0.166/image.jpg"), wantErr: "scheme"},
		{name: "unparsable url", opt: WithURL("http://[::1"), wantErr: "invalid URL"},
		{name: "zero interval", opt: WithInterval(0), wantErr: "interval must be positive"},
		{name: "port too low", opt: WithPort(0), wantErr: "port"},
		{name: "port too high", opt: WithPort(70000), wantErr: "port"},
		{name: "unknown mode", opt: WithMode("mjpeg"), wantErr: "unknown mode"},
		{name: "loading policy", opt: WithLoadingPolicy("sometimes"), wantErr: "loading policy"},
		{name: "stale policy", opt: WithStalePolicy("latest"), wantErr: "stale policy"},
		{name: "zero timeout", opt: WithTimeout(0), wantErr: "timeout"},
		{name: "empty username", opt: WithBasicAuth("", "secret"), wantErr: "username"},
		{name: "odd headers", opt: WithHeaders("X-Key"), wantErr: "even number"},
		{name: "nil validator", opt: WithFrameValidator(nil), wantErr: "validator"},
		{name: "zero frame bytes", opt: WithMaxFrameBytes(0), wantErr: "max frame bytes"},
		{name: "bad locale", opt: WithLocale("not a tag!"), wantErr: "locale"},
		{name: "bad detection", opt: WithLocalDetection("guess"), wantErr: "local detection"},
		{name: "nil location", opt: WithLocation(nil), wantErr: "location"},
		{name: "nil clock", opt: WithClock(nil), wantErr: "clock"},
		{name: "nil logger", opt: WithLogger(nil), wantErr: "logger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			if err == nil {
				t.Fatal("New() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNew_Options(t *testing.T) {
	v, err := New(
		WithURL("http://10.0.0.20/snap.jpg"),
		WithInterval(250*time.Millisecond),
		WithPort(9090),
		WithMode("DIRECT"),
		WithLoadingPolicy("every_attempt"),
		WithStalePolicy("accept"),
		WithHeaders("X-Api-Key", "k1", "X-Other", "v"),
		WithBasicAuth("admin", "pw"),
		WithLocalDetection("heuristic"),
		WithTitle("Porch"),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if v.Mode() != ModeDirect {
		t.Errorf("Mode() = %v, want direct", v.Mode())
	}
	if v.Port() != 9090 {
		t.Errorf("Port() = %d", v.Port())
	}
	s := v.State()
	if s.URL != "http://10.0.0.20/snap.jpg" || s.Interval != 250*time.Millisecond {
		t.Errorf("State() = %+v", s)
	}
	loading, stale := v.scheduler.Engine().Policies()
	if loading != poller.LoadingEveryAttempt || stale != poller.StaleAccept {
		t.Errorf("Policies() = %v, %v", loading, stale)
	}
	if len(v.cfg.headers) != 2 || v.cfg.headers["X-Api-Key"] != "k1" {
		t.Errorf("headers = %v", v.cfg.headers)
	}
	if v.cfg.detection != netcheck.DetectHeuristic {
		t.Errorf("detection = %v", v.cfg.detection)
	}
	if v.relay != nil {
		t.Error("direct mode built a relay loader")
	}
}

func TestWithHeaders_Accumulates(t *testing.T) {
	v, err := New(WithHeaders("A", "1"), WithHeaders("B", "2", "A", "3"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if v.cfg.headers["A"] != "3" || v.cfg.headers["B"] != "2" {
		t.Errorf("headers = %v", v.cfg.headers)
	}
}

func TestWithStateCallback_NilIgnored(t *testing.T) {
	v, err := New(WithStateCallback(nil))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(v.callbacks) != 0 {
		t.Errorf("len(callbacks) = %d, want 0", len(v.callbacks))
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	v, err := New(WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if v.logger != logger {
		t.Error("logger was not set")
	}
}

func TestDurationSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want float64
	}{
		{d: time.Second, want: 1},
		{d: 100 * time.Millisecond, want: 0.1},
		{d: 1500 * time.Millisecond, want: 1.5},
		{d: 50 * time.Millisecond, want: 0.05},
	}
	for _, tt := range tests {
		if got := durationSeconds(tt.d); got != tt.want {
			t.Errorf("durationSeconds(%v) = %v, want %v", tt.d, got, tt.want)
		}
		if got := secondsDuration(tt.want); got != tt.d {
			t.Errorf("secondsDuration(%v) = %v, want %v", tt.want, got, tt.d)
		}
	}
}

func TestSecondsDuration_Saturates(t *testing.T) {
	for _, s := range []float64{1e12, math.MaxFloat64, math.Inf(1)} {
		if got := secondsDuration(s); got != time.Duration(math.MaxInt64) {
			t.Errorf("secondsDuration(%v) = %v, want the maximum duration", s, got)
		}
	}
	if got := secondsDuration(9e9); got <= 0 {
		t.Errorf("secondsDuration(9e9) = %v, want positive", got)
	}
}
