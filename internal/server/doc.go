// Package server provides the HTTP server for the SnapView dashboard and API.
//
// This package is internal to SnapView and handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: state, rendered view, configuration and run control under "/api"
//   - Server-Sent Events: Real-time rendered views at "/api/sse"
//   - Frame relay: the last good snapshot at "/api/frame"
//
// Views are rendered per request, so every client sees copy in its own
// language and diagnostics for its own page security.
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the snapview library should not need to interact with this
// package directly. The server is started automatically by [snapview.Viewer.Start].
package server
