package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jpalmerr/snapview"
	"github.com/jpalmerr/snapview/config"
)

const (
	shutdownTimeout = 10 * time.Second

	envPrefix = "SNAPVIEW"
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// serveCmd starts the SnapView server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the viewer server",
	Long: `Start the SnapView server.

The server will:
  - Load configuration from the YAML file, if one is given
  - Apply flag and SNAPVIEW_* environment overrides
  - Serve the viewer UI on the configured port
  - Start streaming right away when autostart is set

Flags take precedence over environment variables, which take precedence
over the config file. For example SNAPVIEW_URL, SNAPVIEW_INTERVAL,
SNAPVIEW_PORT, SNAPVIEW_MODE, SNAPVIEW_AUTOSTART and SNAPVIEW_LOG_LEVEL.

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  snapview serve -c snapview.yaml
  snapview serve --url http://192.168.0.166/image/jpeg.cgi --interval 500ms --autostart`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd.Flags())
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "path to config file")
	fs.String("url", "", "camera snapshot URL")
	fs.String("interval", "", "refresh period in seconds (1, 0.5) or as a duration (500ms)")
	fs.Int("port", 0, "HTTP server port")
	fs.String("mode", "", "fetch mode: relay or direct")
	fs.Bool("autostart", false, "start streaming as soon as the server is up")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
}

// loadServeConfig reads the config file named by the flags, if any, and
// layers flag and environment overrides on top.
func loadServeConfig(fs *pflag.FlagSet) (*config.Config, slog.Level, error) {
	var level slog.Level

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, level, fmt.Errorf("failed to bind flags: %w", err)
	}

	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return nil, level, fmt.Errorf("invalid log level %q: %w", v.GetString("log-level"), err)
	}

	var (
		cfg *config.Config
		err error
	)
	if path := v.GetString("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		return nil, level, fmt.Errorf("failed to load config: %w", err)
	}

	if v.IsSet("url") {
		cfg.Stream.URL = v.GetString("url")
	}
	if v.IsSet("interval") {
		interval, err := config.ParseSeconds(v.GetString("interval"))
		if err != nil {
			return nil, level, err
		}
		cfg.Stream.Interval = interval
	}
	if v.IsSet("port") {
		cfg.Port = v.GetInt("port")
	}
	if v.IsSet("mode") {
		cfg.Mode = v.GetString("mode")
	}
	if v.IsSet("autostart") {
		cfg.Stream.Autostart = v.GetBool("autostart")
	}

	if err := cfg.Validate(); err != nil {
		return nil, level, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, level, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, level, err := loadServeConfig(cmd.Flags())
	if err != nil {
		return err
	}
	logger := newLogger(level)

	logger.Info("starting server",
		"port", cfg.Port,
		"mode", cfg.Mode,
		"url", cfg.Stream.URL,
		"interval", cfg.Stream.Interval.Duration().String(),
		"autostart", cfg.Stream.Autostart,
	)

	opts := append(config.BuildOptions(cfg), snapview.WithLogger(logger))
	v, err := snapview.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create viewer: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- v.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return serveResult(logger, err)

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			return serveResult(logger, err)
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

func serveResult(logger *slog.Logger, err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
