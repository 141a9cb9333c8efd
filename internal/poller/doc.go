// Package poller provides the refresh engine that turns a camera snapshot URL
// into a stream of cache-busted fetch attempts.
//
// This package is internal to SnapView. The main components are:
//
//   - [Engine]: the IDLE / LOADING / DISPLAYING / ERROR state machine
//   - [Scheduler]: drives the engine from a recurring ticker and hands each
//     attempt to a [Loader]
//   - [Client]: HTTP client used by the relay loader, with timeout and size limits
//   - [DisplayURL]: cache-busting URL construction
//
// The engine never waits for a result before issuing the next attempt.
// Results may resolve in any order; the configured [StalePolicy] decides
// which of them are applied. Results that arrive after a stop are dropped.
//
// Users of the snapview library should not need to interact with this
// package directly. Configuration is done through the main snapview package.
package poller
