package poller

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase is the refresh engine's state.
type Phase string

const (
	// PhaseIdle means the engine is stopped.
	PhaseIdle Phase = "IDLE"

	// PhaseLoading means an attempt is outstanding and the loading flag is up.
	PhaseLoading Phase = "LOADING"

	// PhaseDisplaying means the latest applied attempt loaded.
	PhaseDisplaying Phase = "DISPLAYING"

	// PhaseError means the latest applied attempt failed.
	PhaseError Phase = "ERROR"
)

// LoadingPolicy decides when the loading flag is raised.
type LoadingPolicy string

const (
	// LoadingOnStart raises the flag only when a run starts. Later attempts
	// swap the frame without a loading affordance (no flicker).
	LoadingOnStart LoadingPolicy = "on_start"

	// LoadingEveryAttempt raises the flag on every issued attempt.
	LoadingEveryAttempt LoadingPolicy = "every_attempt"
)

// StalePolicy decides which results are applied when attempts resolve out
// of order.
type StalePolicy string

const (
	// StaleIgnoreSuperseded applies a result only if its token is the
	// latest issued one.
	StaleIgnoreSuperseded StalePolicy = "ignore_superseded"

	// StaleIgnoreOutOfOrder applies a result only if its token is newer than
	// the last applied one. A slow earlier response can no longer overwrite
	// a faster later one, but progress is made even when every fetch
	// outlives the interval.
	StaleIgnoreOutOfOrder StalePolicy = "ignore_out_of_order"

	// StaleAccept applies every result of the current run as it arrives.
	StaleAccept StalePolicy = "accept"
)

// ParseLoadingPolicy maps a config string to a [LoadingPolicy]. Empty means on_start.
func ParseLoadingPolicy(s string) (LoadingPolicy, error) {
	switch LoadingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", LoadingOnStart:
		return LoadingOnStart, nil
	case LoadingEveryAttempt:
		return LoadingEveryAttempt, nil
	default:
		return "", fmt.Errorf("unknown loading policy %q (expected %q or %q)", s, LoadingOnStart, LoadingEveryAttempt)
	}
}

// ParseStalePolicy maps a config string to a [StalePolicy]. Empty means ignore_superseded.
func ParseStalePolicy(s string) (StalePolicy, error) {
	switch StalePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StaleIgnoreSuperseded:
		return StaleIgnoreSuperseded, nil
	case StaleIgnoreOutOfOrder:
		return StaleIgnoreOutOfOrder, nil
	case StaleAccept:
		return StaleAccept, nil
	default:
		return "", fmt.Errorf("unknown stale policy %q (expected %q, %q or %q)",
			s, StaleIgnoreSuperseded, StaleIgnoreOutOfOrder, StaleAccept)
	}
}

// Attempt identifies one fetch cycle.
type Attempt struct {
	// RunID distinguishes attempts of different start/stop runs.
	RunID string

	// Token is a strictly increasing millisecond timestamp, used both for
	// cache busting and to detect superseded results.
	Token int64

	// URL is the cache-busted display URL.
	URL string

	// IssuedAt is when the attempt was issued.
	IssuedAt time.Time
}

// Resolution is the outcome reported for an attempt.
type Resolution struct {
	// Loaded is true when the resource resolved to an image.
	Loaded bool

	// Cause classifies a failure. Empty when Loaded.
	Cause Cause

	// Detail is a human-readable failure description. Empty when Loaded.
	Detail string

	// At is when the result arrived.
	At time.Time
}

// State is a read-only snapshot of the [Engine].
type State struct {
	Phase   Phase
	Running bool
	Loading bool
	Error   bool

	// Latest is the most recently issued attempt. Zero when never started.
	Latest Attempt

	// Attempts is the number of attempts issued in the current run.
	Attempts int

	// AppliedToken is the token of the last applied result in this run.
	AppliedToken int64

	// LastSuccess is when an attempt of this run last loaded.
	LastSuccess time.Time

	// LastCause and LastDetail describe the last applied failure.
	LastCause  Cause
	LastDetail string
}

// Engine is the refresh state machine.
//
// Start, Tick, Resolve and Stop are its only mutators; State exposes the
// current state. Engine performs no I/O and owns no timers: the [Scheduler]
// drives it. All methods are safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	loading LoadingPolicy
	stale   StalePolicy

	running  bool
	loadFlag bool
	errFlag  bool
	base     string
	runID    string
	latest   Attempt
	attempts int

	applied     int64
	lastToken   int64 // persists across runs: tokens never repeat
	lastSuccess time.Time
	lastCause   Cause
	lastDetail  string
}

// NewEngine creates a stopped [Engine] with the given policies.
func NewEngine(loading LoadingPolicy, stale StalePolicy) *Engine {
	if loading == "" {
		loading = LoadingOnStart
	}
	if stale == "" {
		stale = StaleIgnoreSuperseded
	}
	return &Engine{loading: loading, stale: stale}
}

// Start begins a run against baseURL and returns the first attempt, which
// should be fetched immediately. Starting a running engine restarts it with
// a fresh run id.
func (e *Engine) Start(baseURL string, now time.Time) Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.running = true
	e.errFlag = false
	e.loadFlag = true
	e.base = baseURL
	e.runID = uuid.NewString()
	e.attempts = 0
	e.applied = 0
	e.lastSuccess = time.Time{}
	e.lastCause = ""
	e.lastDetail = ""

	return e.issueLocked(now)
}

// Tick issues the next attempt of run runID, superseding any outstanding
// one. Returns false when the engine is stopped or has moved on to another
// run, so a ticker left over from a halted run cannot issue into the next.
func (e *Engine) Tick(runID string, now time.Time) (Attempt, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || runID != e.runID {
		return Attempt{}, false
	}
	if e.loading == LoadingEveryAttempt {
		e.loadFlag = true
	}
	return e.issueLocked(now), true
}

// issueLocked mints the next token. Caller must hold e.mu.
func (e *Engine) issueLocked(now time.Time) Attempt {
	token := now.UnixMilli()
	if token <= e.lastToken {
		token = e.lastToken + 1
	}
	e.lastToken = token
	e.attempts++

	e.latest = Attempt{
		RunID:    e.runID,
		Token:    token,
		URL:      DisplayURL(e.base, token),
		IssuedAt: now,
	}
	return e.latest
}

// Resolve applies the result of an attempt. It returns false, leaving the
// state untouched, when the engine is stopped, the attempt belongs to
// another run, or the stale policy rejects it.
func (e *Engine) Resolve(runID string, token int64, res Resolution) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || runID != e.runID || token <= 0 || token > e.latest.Token {
		return false
	}

	switch e.stale {
	case StaleIgnoreSuperseded:
		if token != e.latest.Token {
			return false
		}
	case StaleIgnoreOutOfOrder:
		if token <= e.applied {
			return false
		}
	}

	e.applied = token
	e.loadFlag = false
	if res.Loaded {
		e.errFlag = false
		e.lastSuccess = res.At
		e.lastCause = ""
		e.lastDetail = ""
	} else {
		e.errFlag = true
		e.lastCause = res.Cause
		e.lastDetail = res.Detail
	}
	return true
}

// Stop forces the engine to IDLE and discards the outstanding attempt.
// Returns false if it was already stopped.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return false
	}
	e.running = false
	e.loadFlag = false
	e.errFlag = false
	e.latest = Attempt{}
	return true
}

// Supersedes reports whether a newer attempt than token has been issued in
// the current run.
func (e *Engine) Supersedes(runID string, token int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running && runID == e.runID && e.latest.Token > token
}

// Policies returns the configured loading and stale policies.
func (e *Engine) Policies() (LoadingPolicy, StalePolicy) {
	return e.loading, e.stale
}

// State returns a snapshot of the engine.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return State{
		Phase:        e.phaseLocked(),
		Running:      e.running,
		Loading:      e.loadFlag,
		Error:        e.errFlag,
		Latest:       e.latest,
		Attempts:     e.attempts,
		AppliedToken: e.applied,
		LastSuccess:  e.lastSuccess,
		LastCause:    e.lastCause,
		LastDetail:   e.lastDetail,
	}
}

// phaseLocked derives the phase from the flags. Caller must hold e.mu.
func (e *Engine) phaseLocked() Phase {
	switch {
	case !e.running:
		return PhaseIdle
	case e.loadFlag:
		return PhaseLoading
	case e.errFlag:
		return PhaseError
	default:
		return PhaseDisplaying
	}
}
