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
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jpalmerr/clipwatch/formguard"
	"github.com/jpalmerr/clipwatch/internal/metrics"
)

const (
	// sseWriteTimeout bounds a single SSE write so a stalled client cannot
	// pin its handler goroutine. Must be <= shutdownTimeout.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	defaultTitle       = "Clip progress"
	titlePlaceholder   = "{{.Title}}"
	messagePlaceholder = "{{.GuardMessage}}"
	indexAsset         = "assets/index.html"
)

// Options holds the dependencies of a [Server].
type Options struct {
	// Port is the TCP port to listen on.
	Port int

	// Title is shown in the page header. Defaults to "Clip progress".
	Title string

	// Upstream is the clip application. Form submissions and every route
	// the server does not own are proxied to it. May be nil, in which case
	// those routes return 502.
	Upstream *url.URL

	// Guard validates form submissions before they are proxied.
	Guard formguard.Guard

	// Start begins polling a session. Required.
	Start StartFunc

	// Metrics receives guard and session events and is served at /metrics.
	// May be nil.
	Metrics *metrics.Metrics

	// Assets holds assets/index.html. May be nil.
	Assets fs.FS

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server hosts the progress page and its live updates.
//
// Routes:
//   - GET /: the progress page
//   - GET /healthz: liveness
//   - GET /metrics: Prometheus metrics (when configured)
//   - POST /process: guarded form submission, proxied upstream
//   - GET /api/sessions/{sessionID}: element snapshot of an open session
//   - GET /api/sessions/{sessionID}/events: SSE stream, opens the session
//   - DELETE /api/sessions/{sessionID}: stop a session's poll loop
//   - anything else: proxied upstream
//
// The server shuts down gracefully when the Start context is cancelled,
// stopping every running poll loop.
type Server struct {
	opts       Options
	logger     *slog.Logger
	httpServer *http.Server
	sessions   *sessions
	proxy      http.Handler
	done       chan struct{}
}

// NewServer creates a [Server]. ctx bounds the lifetime of every poll loop
// the server starts. The server is not listening until [Server.Start].
func NewServer(ctx context.Context, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Guard.Logger == nil {
		opts.Guard.Logger = logger
	}

	s := &Server{
		opts:   opts,
		logger: logger,
		done:   make(chan struct{}),
	}

	var onOpen, onClose func()
	if opts.Metrics != nil {
		onOpen = opts.Metrics.SessionsActive.Inc
		onClose = opts.Metrics.SessionsActive.Dec

		alert := opts.Guard.Alert
		opts.Guard.Alert = func(msg string) {
			opts.Metrics.GuardRejections.Inc()
			if alert != nil {
				alert(msg)
			}
		}
		s.opts.Guard = opts.Guard
	}
	s.sessions = newSessions(ctx, opts.Start, onOpen, onClose)
	s.proxy = s.newProxy()

	return s
}

// Handler returns the router. Useful for tests and for embedding.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handlePage)
	r.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}

	r.Method(http.MethodPost, "/process", s.opts.Guard.Middleware(s.proxy))

	r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.handleSnapshot)
		r.Delete("/", s.handleStop)
		r.Get("/events", s.handleEvents)
	})

	r.NotFound(s.proxy.ServeHTTP)
	r.MethodNotAllowed(s.proxy.ServeHTTP)

	return r
}

// Start binds the port and serves in the background until ctx is cancelled.
//
// Returns an error if the port cannot be bound.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.opts.Port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.opts.Port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so SSE handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		defer close(s.done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
		s.sessions.closeAll()
	}()

	return nil
}

// Done is closed once the server has shut down and every poll loop it
// started has stopped. It never closes if Start was not called or failed.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// newProxy builds the reverse proxy to the upstream application.
func (s *Server) newProxy() http.Handler {
	if s.opts.Upstream == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusBadGateway, "NO_UPSTREAM", "No upstream application configured")
		})
	}

	proxy := httputil.NewSingleHostReverseProxy(s.opts.Upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.Error("upstream request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Upstream application unavailable")
	}
	return proxy
}

// handlePage serves the progress page with the configured title and guard
// message.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if s.opts.Assets == nil {
		http.Error(w, "Page not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.opts.Assets, indexAsset)
	if err != nil {
		http.Error(w, "Page not found", http.StatusInternalServerError)
		return
	}

	title := s.opts.Title
	if title == "" {
		title = defaultTitle
	}
	message := s.opts.Guard.Message
	if message == "" {
		message = formguard.DefaultMessage
	}
	rendered := strings.NewReplacer(
		titlePlaceholder, html.EscapeString(title),
		messagePlaceholder, html.EscapeString(message),
	).Replace(string(content))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write page response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.count(),
	})
}

// snapshotResponse is the body of GET /api/sessions/{sessionID}.
type snapshotResponse struct {
	SessionID string `json:"session_id"`
	Ended     bool   `json:"ended"`
	Elements  any    `json:"elements"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	doc, ended, ok := s.sessions.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Session is not being watched")
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, snapshotResponse{
		SessionID: id,
		Ended:     ended,
		Elements:  doc.Snapshot(),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !s.sessions.stop(id) {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Session is not being watched")
		return
	}
	s.logger.Info("session stopped", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams element changes of one session via Server-Sent
// Events. The first subscriber starts the session's poll loop; when the last
// one disconnects the loop is stopped.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "sessionID")
	sess, err := s.sessions.acquire(id)
	if err != nil {
		s.logger.Error("failed to open session", "session_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "SESSION_UNAVAILABLE", "Session could not be watched")
		return
	}
	defer s.sessions.release(id, sess)
	doc := sess.doc

	// subscribe before the initial snapshot so no change falls in between
	ch := doc.Subscribe()
	defer doc.Unsubscribe(ch)

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for _, el := range doc.Snapshot() {
		data, err := json.Marshal(el)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case change, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(change.Element)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown
			return
		}
	}
}

// requestLogger logs one line per request at Debug, or Info for errors.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		}
		if ww.Status() >= http.StatusBadRequest {
			s.logger.Info("request", attrs...)
			return
		}
		s.logger.Debug("request", attrs...)
	})
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
