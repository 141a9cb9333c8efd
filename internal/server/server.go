package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/snapview/internal/control"
	"github.com/jpalmerr/snapview/internal/netcheck"
	"github.com/jpalmerr/snapview/internal/render"
	"github.com/jpalmerr/snapview/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// maxBodyBytes limits JSON request bodies.
	maxBodyBytes = 64 << 10

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "SnapView"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Controller is the control surface the API drives. The root snapview
// Viewer implements it.
type Controller interface {
	SetURL(url string) error
	SetInterval(seconds float64) error
	RequestStart() error
	RequestStop()

	// ResolveAttempt reports a browser-side image result. It returns
	// control.ErrNotDirect unless the viewer runs in direct mode.
	ResolveAttempt(runID string, token int64, loaded bool) (bool, error)
}

// Config holds the presentation settings of a [Server].
type Config struct {
	// Port is the TCP port to listen on. Zero picks a free port.
	Port int

	// Assets is the embedded filesystem containing dashboard assets (may be nil).
	Assets fs.FS

	// Title is the dashboard title (defaults to "SnapView" if empty).
	Title string

	// Locale forces the UI language. Empty follows Accept-Language.
	Locale string

	// Detection selects the local-address check used by the renderer.
	Detection netcheck.Detection

	// Location is the time zone of displayed times. Nil means local time.
	Location *time.Location
}

// Server handles HTTP requests for the SnapView dashboard and API.
//
// Server provides these endpoints:
//   - GET /: Serves the embedded dashboard HTML
//   - GET /api/state: Returns the current state record as JSON
//   - GET /api/view: Returns the rendered view model for the request
//   - GET /api/sse: Server-Sent Events stream of rendered views
//   - PUT /api/config: Edits the URL and interval while stopped
//   - POST /api/start, POST /api/stop: Run control
//   - POST /api/attempts/resolve: Browser-reported attempt results
//   - GET /api/frame: Last good frame (relay mode)
//   - GET /healthz: Liveness
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	ctl        Controller
	cfg        Config
	httpServer *http.Server
	logger     *slog.Logger

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store implementation for state data
//   - ctl: Control surface for config, start/stop and attempt results
//   - cfg: Listening and presentation settings
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, ctl Controller, cfg Config, logger *slog.Logger) *Server {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Server{
		store:  st,
		ctl:    ctl,
		cfg:    cfg,
		logger: logger,
	}
}

// Handler returns the request multiplexer serving every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/view", s.handleView)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/attempts/resolve", s.handleResolve)
	mux.HandleFunc("/api/frame", s.handleFrame)
	mux.HandleFunc("/healthz", s.handleHealth)

	// serve dashboard assets
	if s.cfg.Assets != nil {
		// serve index.html at root
		mux.HandleFunc("/", s.handleDashboard)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before [Server.Start].
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.cfg.Assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// read index.html from embedded assets
	content, err := fs.ReadFile(s.cfg.Assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.cfg.Title
	if title == "" {
		title = defaultTitle
	}
	safeTitle := html.EscapeString(title)
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, safeTitle)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleState returns the current state record as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Current())
}

// handleView returns the view model rendered for this request.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.render(r, s.store.Current()))
}

// configRequest is the body of PUT /api/config. Absent fields are unchanged.
type configRequest struct {
	URL             *string  `json:"url"`
	IntervalSeconds *float64 `json:"interval_seconds"`
}

// handleConfig edits the stream configuration; 409 while running.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req configRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.URL != nil {
		if err := s.ctl.SetURL(*req.URL); err != nil {
			s.writeControlError(w, r, err)
			return
		}
	}
	if req.IntervalSeconds != nil {
		if err := s.ctl.SetInterval(*req.IntervalSeconds); err != nil {
			s.writeControlError(w, r, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, s.store.Current())
}

// handleStart requests a start; 422 with a localized message on invalid input.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.ctl.RequestStart(); err != nil {
		s.writeControlError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Current())
}

// handleStop requests a stop. Stopping an idle stream is not an error.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.ctl.RequestStop()
	s.writeJSON(w, http.StatusOK, s.store.Current())
}

// resolveRequest is the body of POST /api/attempts/resolve.
type resolveRequest struct {
	RunID  string `json:"run_id"`
	Token  int64  `json:"token"`
	Loaded bool   `json:"loaded"`
}

// handleResolve accepts a browser-side image load result (direct mode).
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req resolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.RunID == "" || req.Token <= 0 {
		s.writeError(w, http.StatusBadRequest, "run_id and a positive token are required", nil)
		return
	}

	applied, err := s.ctl.ResolveAttempt(req.RunID, req.Token, req.Loaded)
	if err != nil {
		s.writeControlError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

// handleFrame serves the last good frame. The query string only busts
// browser caches; the stored frame is always the newest.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frame, ok := s.store.Frame()
	if !ok {
		http.Error(w, "No frame available", http.StatusNotFound)
		return
	}

	contentType := frame.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(frame.Data)))
	w.Header().Set("X-Frame-Token", strconv.FormatInt(frame.Token, 10))
	if !frame.CapturedAt.IsZero() {
		w.Header().Set("Last-Modified", frame.CapturedAt.UTC().Format(http.TimeFormat))
	}
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(frame.Data); err != nil {
		s.logger.Debug("failed to write frame", "error", err)
	}
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleSSE streams rendered views via Server-Sent Events.
//
// Each client gets views rendered for its own request (language, page
// security). The event id is the record revision.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// ResponseController provides deadline-aware write and flush operations.
	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	// writeAndFlush writes SSE data with a deadline to prevent blocking forever.
	writeAndFlush := func(id uint64, data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", id, data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	// set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before reading the current record so no update is lost
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	send := func(rec store.Record) error {
		data, err := json.Marshal(s.render(r, rec))
		if err != nil {
			return nil
		}
		return writeAndFlush(rec.Revision, data)
	}

	cur := s.store.Current()
	if err := send(cur); err != nil {
		return
	}
	last := cur.Revision

	// stream updates
	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if rec.Revision <= last && rec.Revision != 0 {
				continue
			}
			last = rec.Revision
			if err := send(rec); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}

// render builds the view for rec as seen by the requesting page.
func (s *Server) render(r *http.Request, rec store.Record) render.View {
	return render.Render(render.Input{
		Record:         rec,
		PageSecure:     pageSecure(r),
		Locale:         s.cfg.Locale,
		AcceptLanguage: r.Header.Get("Accept-Language"),
		Detection:      s.cfg.Detection,
		Location:       s.cfg.Location,
		Title:          s.cfg.Title,
	})
}

// pageSecure reports whether the page was served over HTTPS, directly or
// behind a TLS-terminating proxy.
func pageSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i >= 0 {
		proto = proto[:i]
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}

// errorResponse is the JSON body of failed API calls.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeControlError maps controller errors to status codes.
func (s *Server) writeControlError(w http.ResponseWriter, r *http.Request, err error) {
	cat := render.CatalogFor(s.cfg.Locale, r.Header.Get("Accept-Language"))

	switch {
	case control.ValidationError.Has(err):
		msg := err.Error()
		switch {
		case errors.Is(err, control.ErrIntervalTooShort):
			msg = cat.IntervalTooShort
		case errors.Is(err, control.ErrEmptyURL):
			msg = cat.URLRequired
		}
		s.writeError(w, http.StatusUnprocessableEntity, msg, err)
	case errors.Is(err, control.ErrRunning):
		s.writeError(w, http.StatusConflict, cat.ConfigLockedWarning, err)
	case errors.Is(err, control.ErrNotDirect):
		s.writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		s.logger.Error("control request failed", "path", r.URL.Path, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Detail = err.Error()
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}
	return nil
}
