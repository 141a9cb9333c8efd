package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/snapview"
)

func main() {
	// start mock camera (see mock_camera.go)
	go StartMockCamera(":9999")
	time.Sleep(100 * time.Millisecond)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	v, err := snapview.New(
		snapview.WithURL("http://localhost:9999/slow/jpeg.cgi"),
		snapview.WithInterval(time.Second),
		snapview.WithTimeout(5*time.Second),
		snapview.WithStalePolicy("ignore_out_of_order"),
		snapview.WithFrameValidator(snapview.AllOf(snapview.StatusValidator(), snapview.JPEGValidator)),
		snapview.WithAutostart(true),
		snapview.WithPort(8080),
		snapview.WithLogger(logger),
		snapview.WithStateCallback(func(s snapview.State) {
			if s.Status == snapview.StatusError {
				logger.Info("camera error", "cause", s.Cause, "attempt", s.Attempts)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create viewer", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  SnapView Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println()
	fmt.Println("  Mock camera on :9999:")
	fmt.Println("    /image/jpeg.cgi  fresh frame, offline 5s of every 45s")
	fmt.Println("    /auth/jpeg.cgi   basic auth admin/admin")
	fmt.Println("    /slow/jpeg.cgi   overlapping slow fetches (default)")
	fmt.Println("    /login           HTML instead of an image")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := v.Start(ctx); err != nil {
		slog.Error("snapview error", "error", err)
		os.Exit(1)
	}
}
