package snapview

import "time"

// Status is the externally observable state of the stream.
//
// Exactly one of [StatusIdle], [StatusActive] or [StatusError] holds at any
// time. Using a string type allows for easy JSON serialization and
// human-readable logging.
type Status string

const (
	// StatusIdle indicates the stream is stopped.
	StatusIdle Status = "IDLE"

	// StatusActive indicates the stream is running and the latest applied
	// attempt loaded, or the first attempt is still loading.
	StatusActive Status = "ACTIVE"

	// StatusError indicates the stream is running and the latest applied
	// attempt failed. The next scheduled attempt retries.
	StatusError Status = "ERROR"
)

// String returns the string representation of the status.
// This implements the fmt.Stringer interface.
func (s Status) String() string {
	return string(s)
}

// Phase is the refresh engine's state.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseLoading    Phase = "LOADING"
	PhaseDisplaying Phase = "DISPLAYING"
	PhaseError      Phase = "ERROR"
)

// Mode selects who fetches the snapshot.
type Mode string

const (
	// ModeRelay fetches snapshots server-side and serves the last good frame
	// to the dashboard. This is the default.
	ModeRelay Mode = "relay"

	// ModeDirect lets the browser load the camera URL itself and report each
	// result back. Mixed-content and Private Network Access diagnostics only
	// apply in this mode.
	ModeDirect Mode = "direct"
)

// State is a snapshot of the viewer, passed to state callbacks and returned
// by [Viewer.State].
//
// State is a value type; it shares no memory with the viewer.
type State struct {
	// Status is the connection status.
	Status Status

	// Phase is the refresh engine's phase.
	Phase Phase

	// Running, Loading and Error are the raw flags behind Status and Phase.
	Running bool
	Loading bool
	Error   bool

	// Mode is the fetch mode.
	Mode Mode

	// URL is the configured snapshot URL, without cache busting.
	URL string

	// Interval is the configured refresh period.
	Interval time.Duration

	// RunID identifies the current run. Empty while idle.
	RunID string

	// Token and DisplayURL describe the latest issued attempt.
	Token      int64
	DisplayURL string

	// IssuedAt is when the latest attempt was issued. Zero while idle.
	IssuedAt time.Time

	// Attempts is the number of attempts issued in the current run.
	Attempts int

	// LastSuccess is when an attempt of this run last loaded.
	LastSuccess time.Time

	// Cause and Detail describe the last failure while Error is set.
	// Cause is one of the classification strings, e.g. "timeout" or
	// "auth_required".
	Cause  string
	Detail string

	// Revision increases with every published state.
	Revision uint64
}
