package store

import "time"

// Record is the published state of the viewer.
//
// Record is the storage representation of the stream state, optimized for
// JSON serialization (used by the REST API, the renderer and SSE). It is
// decoupled from the poller's internal types to allow independent evolution.
type Record struct {
	// Status is the connection status: "IDLE", "ACTIVE" or "ERROR".
	Status string `json:"status"`

	// Phase is the refresh engine's phase: "IDLE", "LOADING", "DISPLAYING"
	// or "ERROR".
	Phase string `json:"phase"`

	Running bool `json:"running"`
	Loading bool `json:"loading"`
	Error   bool `json:"error"`

	// Mode is the fetch mode, "relay" or "direct".
	Mode string `json:"mode"`

	// URL is the configured snapshot URL, without cache busting.
	URL string `json:"url"`

	// IntervalSeconds is the configured refresh period.
	IntervalSeconds float64 `json:"interval_seconds"`

	// RunID identifies the current run. Empty while idle.
	RunID string `json:"run_id,omitempty"`

	// Token and DisplayURL describe the latest issued attempt.
	Token      int64      `json:"token,omitempty"`
	DisplayURL string     `json:"display_url,omitempty"`
	IssuedAt   *time.Time `json:"issued_at,omitempty"`

	// Attempts is the number of attempts issued in the current run.
	Attempts int `json:"attempts"`

	// LastSuccess is when an attempt of this run last loaded.
	LastSuccess *time.Time `json:"last_success"`

	// FrameToken is the token of the stored frame (relay mode). Zero when
	// no frame is stored.
	FrameToken int64 `json:"frame_token,omitempty"`

	// Cause and Detail describe the last failure while in error.
	Cause  string `json:"cause,omitempty"`
	Detail string `json:"detail,omitempty"`

	// Revision increases with every published record. Assigned by the store.
	Revision uint64 `json:"revision"`

	// UpdatedAt is when the record was published. Assigned by the store.
	UpdatedAt time.Time `json:"updated_at"`
}

// Frame is the last snapshot that loaded in relay mode.
type Frame struct {
	Token       int64
	ContentType string
	Data        []byte
	CapturedAt  time.Time
}

// Store defines the interface for storing and subscribing to state updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Publish stores rec as the current record, assigning its revision and
	// publish time, and notifies all subscribers. It returns the stored record.
	Publish(rec Record) Record

	// Current returns the latest published record.
	Current() Record

	// SetFrame replaces the stored frame. Frames older than the stored one
	// are ignored.
	SetFrame(f Frame)

	// Frame returns the stored frame, if any.
	Frame() (Frame, bool)

	// Subscribe returns a channel that receives published records.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Record

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Record)
}
