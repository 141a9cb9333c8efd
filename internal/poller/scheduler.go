package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"
)

// eventBuffer is the capacity of the events channel.
const eventBuffer = 64

// ErrClosed is returned by [Scheduler.Begin] after [Scheduler.Close].
var ErrClosed = errors.New("scheduler closed")

// Config describes one run of the scheduler.
type Config struct {
	// URL is the camera's base snapshot URL.
	URL string

	// Interval is the period between attempts.
	Interval time.Duration
}

// EventKind tells what an [Event] reports.
type EventKind string

const (
	// EventIssued reports a timer-issued attempt.
	EventIssued EventKind = "issued"

	// EventResolved reports the outcome of an attempt.
	EventResolved EventKind = "resolved"
)

// Event is emitted on [Scheduler.Events] whenever the engine may have changed
// outside a Begin/Halt call.
type Event struct {
	Kind    EventKind
	Attempt Attempt

	// Outcome is set for EventResolved.
	Outcome Outcome

	// Applied reports whether the engine applied the outcome. Late and
	// superseded results are not applied.
	Applied bool
}

// Scheduler drives an [Engine] from a recurring ticker.
//
// Each run issues one attempt immediately and one per tick thereafter, never
// waiting for earlier attempts to resolve. With a [Loader] every attempt is
// fetched in its own goroutine (relay mode). Without one, results are
// reported through [Scheduler.Resolve] (direct mode, the browser fetches).
//
// Runs may be started and halted any number of times. All methods are safe
// for concurrent use.
type Scheduler struct {
	engine *Engine
	loader Loader
	clock  clock.WithTicker
	logger *slog.Logger

	events  chan Event
	closing chan struct{}

	mu        sync.Mutex
	closed    bool
	runCancel context.CancelFunc
	inflight  map[int64]context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	sendMu     sync.RWMutex
	sendClosed bool
}

// NewScheduler creates a [Scheduler] for engine.
//
// A nil loader selects direct mode. A nil clk selects the real clock.
func NewScheduler(engine *Engine, loader Loader, clk clock.WithTicker, logger *slog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:   engine,
		loader:   loader,
		clock:    clk,
		logger:   logger,
		events:   make(chan Event, eventBuffer),
		closing:  make(chan struct{}),
		inflight: make(map[int64]context.CancelFunc),
	}
}

// Events returns the channel of engine events. It is closed by [Scheduler.Close].
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// Engine returns the driven engine.
func (s *Scheduler) Engine() *Engine {
	return s.engine
}

// Begin starts a run and returns its first attempt, which is already being
// fetched in relay mode. A running run is halted first.
//
// The run ends on [Scheduler.Halt], [Scheduler.Close] or when ctx is cancelled.
func (s *Scheduler) Begin(ctx context.Context, cfg Config) (Attempt, error) {
	if cfg.Interval <= 0 {
		return Attempt{}, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Attempt{}, ErrClosed
	}
	s.cancelRunLocked()

	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel

	first := s.engine.Start(cfg.URL, s.clock.Now())

	// the ticker exists before Begin returns so a stepped fake clock
	// observes it
	ticker := s.clock.NewTicker(cfg.Interval)
	s.wg.Add(1)
	go s.loop(runCtx, first.RunID, ticker)

	s.launchLocked(runCtx, first)

	s.logger.Info("stream started",
		"run_id", first.RunID,
		"url", cfg.URL,
		"interval", cfg.Interval.String(),
		"mode", s.mode(),
	)
	return first, nil
}

// Halt stops the current run. The engine returns to IDLE at once; in-flight
// fetches are cancelled and their results dropped. Returns false if nothing
// was running.
func (s *Scheduler) Halt() bool {
	stopped := s.engine.Stop()

	s.mu.Lock()
	s.cancelRunLocked()
	s.mu.Unlock()

	if stopped {
		s.logger.Info("stream stopped")
	}
	return stopped
}

// Resolve reports a browser-side result for an attempt (direct mode).
// Returns whether the engine applied it.
func (s *Scheduler) Resolve(runID string, token int64, res Resolution) bool {
	if res.At.IsZero() {
		res.At = s.clock.Now()
	}
	a := Attempt{RunID: runID, Token: token}
	applied := s.engine.Resolve(runID, token, res)
	s.logResult(a, res, applied)
	s.emit(Event{Kind: EventResolved, Attempt: a, Outcome: Outcome{Resolution: res}, Applied: applied})
	return applied
}

// Close halts the scheduler, waits for its goroutines and closes the events
// channel. Safe to call multiple times.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.Halt()
		close(s.closing)
		s.wg.Wait()

		s.sendMu.Lock()
		s.sendClosed = true
		close(s.events)
		s.sendMu.Unlock()
	})
}

// loop issues an attempt of run runID on every tick until ctx is done or
// the engine has left the run.
func (s *Scheduler) loop(ctx context.Context, runID string, ticker clock.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			a, ok := s.engine.Tick(runID, s.clock.Now())
			if !ok {
				return
			}
			s.emit(Event{Kind: EventIssued, Attempt: a})

			s.mu.Lock()
			if ctx.Err() == nil {
				s.launchLocked(ctx, a)
			}
			s.mu.Unlock()
		}
	}
}

// launchLocked starts fetching a in relay mode. Caller must hold s.mu.
func (s *Scheduler) launchLocked(ctx context.Context, a Attempt) {
	if s.loader == nil || s.closed {
		return
	}

	// a superseded result can never be applied under this policy
	if _, stale := s.engine.Policies(); stale == StaleIgnoreSuperseded {
		if s.engine.Supersedes(a.RunID, a.Token) {
			return
		}
		for token, cancel := range s.inflight {
			cancel()
			delete(s.inflight, token)
		}
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	s.inflight[a.Token] = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forget(a.Token)

		out := s.safeLoad(attemptCtx, a)
		if out.Resolution.At.IsZero() {
			out.Resolution.At = s.clock.Now()
		}
		if out.Frame != nil && out.Frame.CapturedAt.IsZero() {
			out.Frame.CapturedAt = out.Resolution.At
		}

		applied := s.engine.Resolve(a.RunID, a.Token, out.Resolution)
		s.logResult(a, out.Resolution, applied)
		s.emit(Event{Kind: EventResolved, Attempt: a, Outcome: out, Applied: applied})
	}()
}

// forget drops the cancel func of a finished attempt.
func (s *Scheduler) forget(token int64) {
	s.mu.Lock()
	if cancel, ok := s.inflight[token]; ok {
		cancel()
		delete(s.inflight, token)
	}
	s.mu.Unlock()
}

// cancelRunLocked cancels the current run and every in-flight fetch.
// Caller must hold s.mu.
func (s *Scheduler) cancelRunLocked() {
	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}
	for token, cancel := range s.inflight {
		cancel()
		delete(s.inflight, token)
	}
}

// safeLoad calls the loader with panic recovery.
// A panic is logged with its stack under a correlation ID and reported as
// a failed attempt carrying that ID.
func (s *Scheduler) safeLoad(ctx context.Context, a Attempt) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("loader panic",
				"correlation_id", correlationID,
				"token", a.Token,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			out = Outcome{Resolution: Resolution{
				Cause:  CauseLoaderPanic,
				Detail: fmt.Sprintf("loader panic (correlation_id: %s)", correlationID),
			}}
		}
	}()
	return s.loader.Load(ctx, a)
}

// emit delivers ev unless the scheduler is closing.
func (s *Scheduler) emit(ev Event) {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return
	}
	select {
	case s.events <- ev:
	case <-s.closing:
	}
}

// logResult logs an attempt outcome (DEBUG for success to reduce noise).
func (s *Scheduler) logResult(a Attempt, res Resolution, applied bool) {
	attrs := []any{
		"run_id", a.RunID,
		"token", a.Token,
		"applied", applied,
	}
	switch {
	case res.Loaded:
		s.logger.Debug("attempt loaded", attrs...)
	case res.Cause == CauseCanceled || !applied:
		s.logger.Debug("attempt dropped", append(attrs, "cause", string(res.Cause))...)
	default:
		s.logger.Warn("attempt failed", append(attrs, "cause", string(res.Cause), "detail", res.Detail)...)
	}
}

func (s *Scheduler) mode() string {
	if s.loader == nil {
		return "direct"
	}
	return "relay"
}
