package snapview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/snapview/dashboard"
	"github.com/jpalmerr/snapview/internal/control"
	"github.com/jpalmerr/snapview/internal/poller"
	"github.com/jpalmerr/snapview/internal/server"
	"github.com/jpalmerr/snapview/internal/store"
)

const (
	defaultPort    = 8080
	defaultTimeout = 10 * time.Second
)

// Errors returned by the control methods of [Viewer].
var (
	// ErrRunning is returned when the configuration is edited while the
	// stream is running.
	ErrRunning = control.ErrRunning

	// ErrNotDirect is returned by [Viewer.ResolveAttempt] in relay mode.
	ErrNotDirect = control.ErrNotDirect

	// ErrNotStarted is returned by [Viewer.RequestStart] before
	// [Viewer.Start] has been called or after it has returned.
	ErrNotStarted = errors.New("viewer is not serving")

	// ErrAlreadyStarted is returned by a second call to [Viewer.Start].
	ErrAlreadyStarted = errors.New("viewer already started")
)

// IsValidationError reports whether err is a rejected start request, e.g.
// an interval below 100ms or an empty URL.
func IsValidationError(err error) bool {
	return control.ValidationError.Has(err)
}

// Viewer is the main orchestrator for snapshot polling and dashboard serving.
//
// Viewer owns the stream configuration, drives the refresh engine from a
// ticker, publishes every state change and serves a real-time dashboard via
// HTTP. It is created using [New] with functional options and started with
// [Viewer.Start].
//
// The typical lifecycle is:
//
//	v, err := snapview.New(snapview.WithURL("http://192.168.0.166/image/jpeg.cgi"))
//	if err != nil {
//	    slog.Error("failed to create viewer", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	v.Start(ctx) // blocks until context cancelled
//
// The stream itself is started and stopped from the dashboard, or with
// [Viewer.RequestStart] and [Viewer.RequestStop] while Start is running.
// All methods are safe for concurrent use.
type Viewer struct {
	title     string
	port      int
	mode      Mode
	autostart bool
	locale    string
	location  *time.Location
	cfg       *viewerConfig
	logger    *slog.Logger
	callbacks []func(State)

	holder    *control.Holder
	scheduler *poller.Scheduler
	relay     *poller.RelayLoader
	store     *store.MemoryStore
	server    *server.Server

	// mu serializes start and stop; runCtx is set while Start is serving
	mu      sync.Mutex
	runCtx  context.Context
	started bool

	// pubMu orders published records with the state they were built from
	pubMu sync.Mutex
}

// New creates a new [Viewer] instance with the given options.
//
// All options have sensible defaults:
//   - URL: http://192.168.0.166/image/jpeg.cgi
//   - Interval: 1 second
//   - Port: 8080
//   - Mode: relay
//   - Relay timeout: 10 seconds
//
// Returns an error if any option is invalid.
//
// Example:
//
//	v, err := snapview.New(
//	    snapview.WithURL("http://10.0.0.20/snapshot.jpg"),
//	    snapview.WithInterval(500 * time.Millisecond),
//	    snapview.WithPort(9090),
//	)
func New(opts ...Option) (*Viewer, error) {
	cfg := &viewerConfig{
		url:      control.DefaultURL,
		interval: secondsDuration(control.DefaultIntervalSeconds),
		port:     defaultPort,
		mode:     ModeRelay,
		timeout:  defaultTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	location := cfg.location
	if location == nil {
		location = time.Local
	}

	v := &Viewer{
		title:     cfg.title,
		port:      cfg.port,
		mode:      cfg.mode,
		autostart: cfg.autostart,
		locale:    cfg.locale,
		location:  location,
		cfg:       cfg,
		logger:    logger,
		callbacks: cfg.stateCallbacks,
		holder: control.NewHolder(control.StreamConfig{
			URL:             cfg.url,
			IntervalSeconds: durationSeconds(cfg.interval),
		}),
	}
	v.build()
	return v, nil
}

// build wires the engine, the scheduler and the store from the options.
func (v *Viewer) build() {
	cfg := v.cfg
	engine := poller.NewEngine(cfg.loadingPolicy, cfg.stalePolicy)

	var loader poller.Loader
	if v.mode == ModeRelay {
		var validator poller.FrameValidator
		if cfg.validator != nil {
			validator = poller.FrameValidator(cfg.validator)
		}
		v.relay = poller.NewRelayLoader(poller.NewClient(cfg.maxFrameBytes), poller.RelayConfig{
			Headers:   cfg.headers,
			Username:  cfg.username,
			Password:  cfg.password,
			Timeout:   cfg.timeout,
			Validator: validator,
		})
		loader = v.relay
	}

	v.scheduler = poller.NewScheduler(engine, loader, cfg.clock, v.logger)
	v.store = store.NewMemoryStore(v.record(engine.State(), 0))
	v.server = server.NewServer(v.store, v, server.Config{
		Port:      v.port,
		Assets:    dashboard.Assets,
		Title:     v.title,
		Locale:    v.locale,
		Detection: cfg.detection,
		Location:  v.location,
	}, v.logger)
}

// Start serves the dashboard and runs the stream until ctx is cancelled.
//
// Start is a blocking call. During execution:
//
//   - The HTTP server listens on the configured port
//   - Configuration edits and start/stop requests are accepted
//   - With [WithAutostart], the stream starts immediately
//   - Every state change is published to dashboard clients
//
// The caller controls the lifecycle via context cancellation. For signal
// handling, use [signal.NotifyContext].
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start. A Viewer can be started only once.
func (v *Viewer) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.started {
		v.mu.Unlock()
		return ErrAlreadyStarted
	}
	v.started = true
	v.mu.Unlock()

	v.logger.Info("snapview starting", "mode", string(v.mode), "url", v.holder.Config().URL)

	// check if context already cancelled
	if ctx.Err() != nil {
		v.shutdown()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	// the consumer drains scheduler events until Close closes the channel
	g.Go(func() error {
		v.consume()
		return nil
	})

	if err := v.server.Start(gctx); err != nil {
		v.shutdown()
		_ = g.Wait()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	v.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", v.port))

	v.mu.Lock()
	v.runCtx = gctx
	v.mu.Unlock()

	if v.autostart {
		if err := v.RequestStart(); err != nil {
			v.logger.Warn("autostart rejected", "error", err)
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		v.shutdown()
		return nil
	})

	err := g.Wait()
	v.logger.Info("snapview stopped")
	return err
}

// shutdown stops accepting control requests and closes the scheduler, which
// ends the consumer.
func (v *Viewer) shutdown() {
	v.mu.Lock()
	v.runCtx = nil
	v.holder.RequestStop()
	v.mu.Unlock()

	v.scheduler.Close()
	if v.relay != nil {
		v.relay.Close()
	}
	v.publish()
}

// consume publishes the state after every scheduler event and stores the
// frames of applied results.
func (v *Viewer) consume() {
	for ev := range v.scheduler.Events() {
		if ev.Kind == poller.EventResolved && ev.Applied && ev.Outcome.Frame != nil {
			f := ev.Outcome.Frame
			v.store.SetFrame(store.Frame{
				Token:       f.Token,
				ContentType: f.ContentType,
				Data:        f.Data,
				CapturedAt:  f.CapturedAt,
			})
		}
		v.publish()
	}
}

// SetURL replaces the snapshot URL. Returns [ErrRunning] unless stopped.
func (v *Viewer) SetURL(url string) error {
	if err := v.holder.SetURL(url); err != nil {
		return err
	}
	v.publish()
	return nil
}

// SetInterval replaces the refresh period in seconds. Returns [ErrRunning]
// unless stopped. The value is validated by [Viewer.RequestStart].
func (v *Viewer) SetInterval(seconds float64) error {
	if err := v.holder.SetInterval(seconds); err != nil {
		return err
	}
	v.publish()
	return nil
}

// RequestStart validates the configuration and starts the stream: one
// attempt is issued immediately and one per interval thereafter.
//
// Returns a validation error (see [IsValidationError]) and stays idle when
// the interval is below 100ms or the URL is empty. Calling RequestStart
// while running is a no-op.
func (v *Viewer) RequestStart() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.runCtx == nil {
		return ErrNotStarted
	}
	if v.holder.Running() {
		return nil
	}
	if err := v.holder.RequestStart(); err != nil {
		v.logger.Info("start rejected", "error", err)
		return err
	}

	sc := v.holder.Config()
	if _, err := v.scheduler.Begin(v.runCtx, poller.Config{
		URL:      sc.URL,
		Interval: secondsDuration(sc.IntervalSeconds),
	}); err != nil {
		v.holder.RequestStop()
		return fmt.Errorf("start stream: %w", err)
	}
	v.publish()
	return nil
}

// RequestStop stops the stream. Pending attempts are discarded and their
// late results ignored. Stopping an idle stream is a no-op.
func (v *Viewer) RequestStop() {
	v.mu.Lock()
	defer v.mu.Unlock()

	wasRunning := v.holder.Running()
	v.holder.RequestStop()
	v.scheduler.Halt()
	if wasRunning {
		v.publish()
	}
}

// ResolveAttempt applies a browser-reported result for an attempt (direct
// mode). It returns whether the result was applied; results for superseded
// attempts, other runs or a stopped stream are ignored.
//
// Returns [ErrNotDirect] in relay mode, where the server fetches frames itself.
func (v *Viewer) ResolveAttempt(runID string, token int64, loaded bool) (bool, error) {
	if v.mode != ModeDirect {
		return false, ErrNotDirect
	}
	res := poller.Resolution{Loaded: loaded}
	if !loaded {
		res.Cause = poller.CauseLoadFailed
		res.Detail = "the browser could not load the image"
	}
	// the consumer publishes once the event is drained
	return v.scheduler.Resolve(runID, token, res), nil
}

// State returns a snapshot of the viewer.
func (v *Viewer) State() State {
	return toState(v.store.Current())
}

// Addr returns the address the dashboard listens on, or nil when not serving.
func (v *Viewer) Addr() net.Addr {
	return v.server.Addr()
}

// serving reports whether Start is accepting control requests.
func (v *Viewer) serving() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.runCtx != nil
}

// Port returns the configured HTTP port for the dashboard server.
func (v *Viewer) Port() int {
	return v.port
}

// Mode returns the configured fetch mode.
func (v *Viewer) Mode() Mode {
	return v.mode
}

// publish builds a record from the current holder and engine state and
// stores it. Callbacks fire after the record is stored.
func (v *Viewer) publish() {
	v.pubMu.Lock()
	defer v.pubMu.Unlock()

	var frameToken int64
	if f, ok := v.store.Frame(); ok {
		frameToken = f.Token
	}
	rec := v.store.Publish(v.record(v.scheduler.Engine().State(), frameToken))

	if len(v.callbacks) > 0 {
		state := toState(rec)
		for _, cb := range v.callbacks {
			invokeCallbackSafe(cb, state, v.logger)
		}
	}
}

// record converts holder and engine state into the published record.
func (v *Viewer) record(st poller.State, frameToken int64) store.Record {
	sc := v.holder.Config()
	running := v.holder.Running() && st.Running

	rec := store.Record{
		Status:          control.StatusOf(running, st.Error, st.Loading).String(),
		Phase:           string(st.Phase),
		Running:         running,
		Loading:         st.Loading,
		Error:           st.Error,
		Mode:            string(v.mode),
		URL:             sc.URL,
		IntervalSeconds: sc.IntervalSeconds,
		Attempts:        st.Attempts,
		FrameToken:      frameToken,
	}
	if !running {
		rec.Phase = string(poller.PhaseIdle)
		rec.Loading = false
		rec.Error = false
		return rec
	}

	rec.RunID = st.Latest.RunID
	rec.Token = st.Latest.Token
	rec.DisplayURL = st.Latest.URL
	if !st.Latest.IssuedAt.IsZero() {
		issued := st.Latest.IssuedAt
		rec.IssuedAt = &issued
	}
	if !st.LastSuccess.IsZero() {
		success := st.LastSuccess
		rec.LastSuccess = &success
	}
	if st.Error {
		rec.Cause = string(st.LastCause)
		rec.Detail = st.LastDetail
	}
	return rec
}

// toState converts a published record to the public API type.
func toState(rec store.Record) State {
	s := State{
		Status:     Status(rec.Status),
		Phase:      Phase(rec.Phase),
		Running:    rec.Running,
		Loading:    rec.Loading,
		Error:      rec.Error,
		Mode:       Mode(rec.Mode),
		URL:        rec.URL,
		Interval:   secondsDuration(rec.IntervalSeconds),
		RunID:      rec.RunID,
		Token:      rec.Token,
		DisplayURL: rec.DisplayURL,
		Attempts:   rec.Attempts,
		Cause:      rec.Cause,
		Detail:     rec.Detail,
		Revision:   rec.Revision,
	}
	if rec.IssuedAt != nil {
		s.IssuedAt = *rec.IssuedAt
	}
	if rec.LastSuccess != nil {
		s.LastSuccess = *rec.LastSuccess
	}
	return s
}

// invokeCallbackSafe calls a state callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(State), state State, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("state callback panicked",
				"panic", r,
				"status", state.Status.String(),
			)
		}
	}()
	cb(state)
}
