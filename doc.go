// Package snapview turns an IP camera's still-image endpoint into a
// pseudo-live stream with an embeddable, real-time browser dashboard.
//
// Most cameras expose a snapshot URL (for example /image/jpeg.cgi) next to
// their video stream. SnapView re-fetches that URL on a configurable period,
// tags every fetch with a cache-busting token so no proxy or browser cache
// serves a stale frame, and tracks loading and error state in an explicit
// state machine. The dashboard renders that state with diagnostics for the
// usual failure modes: mixed content, Private Network Access blocks and
// authentication walls.
//
// # Quick Start
//
//	v, _ := snapview.New(snapview.WithURL("http://192.168.0.166/image/jpeg.cgi"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	v.Start(ctx) // blocks until context is cancelled
//
// Open http://localhost:8080, adjust the URL and interval, and press start.
//
// # Configuration
//
// Viewer uses the functional options pattern for configuration:
//
//	v, err := snapview.New(
//	    snapview.WithURL("http://10.0.0.20/snapshot.jpg"),
//	    snapview.WithInterval(500 * time.Millisecond),
//	    snapview.WithBasicAuth("admin", os.Getenv("CAMERA_PASSWORD")),
//	    snapview.WithAutostart(true),
//	    snapview.WithPort(9090),
//	)
//
// The URL and interval are start-up defaults: they can be edited from the
// dashboard while the stream is stopped and are never written back.
//
// # Fetch Modes
//
// In [ModeRelay] (the default) the server fetches every snapshot, judges it
// with a [FrameValidator] and serves the last good frame to the page. In
// [ModeDirect] the browser loads the camera URL itself, as a plain <img>
// would, and reports each result back.
//
// # Stale Results
//
// Attempts are issued on schedule, never waiting for the previous one. When
// a fetch outlives the interval, results can arrive out of order;
// [WithStalePolicy] decides which of them are applied.
//
// # Architecture
//
// SnapView consists of several internal packages (under internal/):
//
//   - internal/control: Stream configuration and the run flag
//   - internal/poller: Refresh state machine, ticker-driven scheduler and relay client
//   - internal/store: Latest state and frame, with pub/sub for real-time updates
//   - internal/render: Pure state-to-view rendering and the copy catalogs
//   - internal/netcheck: Local-address and mixed-content checks
//   - internal/server: HTTP server with REST API and Server-Sent Events
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package snapview
