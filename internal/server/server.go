// Package server exposes a recap client over HTTP.
//
// Routes:
//
//	GET /ls/{url}        children of url as a JSON list
//	GET /schema/{url}    schema of url; ?dialect= selects the output dialect
//	GET /healthz         liveness
//	GET /metrics         Prometheus metrics
//
// The location may also be passed as ?url=, which avoids path cleaning by
// proxies for URLs such as file:///data.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/pithecene-io/recap/internal/config"
	"github.com/pithecene-io/recap/recap"
	"github.com/pithecene-io/recap/recap/convert"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server serves ls and schema requests for a client.
type Server struct {
	client  *recap.Client
	logger  zerolog.Logger
	metrics *Metrics
	router  chi.Router
}

// New creates a server for client.
func New(client *recap.Client, logger zerolog.Logger) *Server {
	s := &Server{
		client:  client,
		logger:  logger,
		metrics: NewMetrics(),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Get("/ls", s.handleList)
	r.Get("/ls/*", s.handleList)
	r.Get("/schema", s.handleSchema)
	r.Get("/schema/*", s.handleSchema)

	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// listResponse is the body of a successful ls request.
type listResponse struct {
	URL      string   `json:"url"`
	Children []string `json:"children"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	url, ok := target(r)
	if !ok {
		s.fail(w, r, recap.ActionList, start, http.StatusBadRequest, "bad_request", "missing url")
		return
	}

	children, err := s.client.Ls(r.Context(), url)
	if err != nil {
		s.failErr(w, r, recap.ActionList, start, err)
		return
	}
	if children == nil {
		children = []string{}
	}
	s.metrics.Observe(string(recap.ActionList), "ok", time.Since(start))
	writeJSON(w, http.StatusOK, listResponse{URL: url, Children: children})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	url, ok := target(r)
	if !ok {
		s.fail(w, r, recap.ActionSchema, start, http.StatusBadRequest, "bad_request", "missing url")
		return
	}
	dialect := r.URL.Query().Get("dialect")
	if dialect == "" {
		dialect = convert.DialectCanonical
	}
	if !slices.Contains(convert.Dialects(), dialect) {
		msg := fmt.Sprintf("%v: %q", convert.ErrUnknownDialect, dialect)
		s.fail(w, r, recap.ActionSchema, start, http.StatusBadRequest, "bad_request", msg)
		return
	}

	t, err := s.client.Schema(r.Context(), url)
	if err != nil {
		s.failErr(w, r, recap.ActionSchema, start, err)
		return
	}
	body, err := convert.ExportJSON(t, dialect)
	if err != nil {
		s.failErr(w, r, recap.ActionSchema, start, err)
		return
	}

	s.metrics.Observe(string(recap.ActionSchema), "ok", time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// target returns the requested location from ?url= or the path wildcard.
func target(r *http.Request) (string, bool) {
	if u := r.URL.Query().Get("url"); u != "" {
		return u, true
	}
	u := chi.URLParam(r, "*")
	return u, u != ""
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// errorResponse is the body of a failed request.
type errorResponse struct {
	Error     string `json:"error"`
	Class     string `json:"class"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusFor maps an error class to an HTTP status.
func StatusFor(class recap.ErrorClass) int {
	switch class {
	case recap.ClassNoMatch, recap.ClassAmbiguous, recap.ClassInvalidPath:
		return http.StatusBadRequest
	case recap.ClassNotFound:
		return http.StatusNotFound
	case recap.ClassUnsupportedFormat, recap.ClassUnsupportedSchema, recap.ClassInvalidFormat:
		return http.StatusUnprocessableEntity
	case recap.ClassNoStorage:
		return http.StatusNotImplemented
	case recap.ClassConflict, recap.ClassInvalidTemplate:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) failErr(w http.ResponseWriter, r *http.Request, action recap.Action, start time.Time, err error) {
	class := recap.Classify(err)
	status := StatusFor(class)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", RequestID(r.Context())).Str("action", string(action)).Msg("request failed")
	}
	s.fail(w, r, action, start, status, string(class), err.Error())
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, action recap.Action, start time.Time, status int, class, msg string) {
	s.metrics.Observe(string(action), class, time.Since(start))
	writeJSON(w, status, errorResponse{Error: msg, Class: class, RequestID: RequestID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

type requestIDKey struct{}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID propagates the caller's request id or assigns a new UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// logRequests logs one line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.RequestsInFlight.Inc()
		defer s.metrics.RequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			return
		}
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", RequestID(r.Context())).
			Msg("http request")
	})
}
