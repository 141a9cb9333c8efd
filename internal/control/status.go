package control

// ConnectionStatus is the externally observable state of the stream.
type ConnectionStatus string

const (
	// StatusIdle means the stream is stopped.
	StatusIdle ConnectionStatus = "IDLE"

	// StatusActive means the stream is running and the latest applied
	// attempt did not fail (or the first attempt is still loading).
	StatusActive ConnectionStatus = "ACTIVE"

	// StatusError means the stream is running and the latest applied
	// attempt failed.
	StatusError ConnectionStatus = "ERROR"
)

// String implements fmt.Stringer.
func (s ConnectionStatus) String() string {
	return string(s)
}

// StatusOf derives the connection status from the run flag and the engine's
// error and loading flags. A visible spinner wins over a stale error.
func StatusOf(running, failed, loading bool) ConnectionStatus {
	switch {
	case !running:
		return StatusIdle
	case failed && !loading:
		return StatusError
	default:
		return StatusActive
	}
}
