// Package api exposes the shared message over HTTP.  Each request is
// decoded into exactly one command.Command, executed once, and the
// Result is encoded back; nothing is retried.
package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"piapi/internal/command"
	"piapi/internal/metrics"
	"piapi/util"
)

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-Id"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server is the HTTP front of one command.Router.
type Server struct {
	router  *command.Router
	hub     *Hub
	logger  *util.Logger
	metrics *metrics.Collector
	handler http.Handler
}

// NewServer builds the route table.  hub may be nil, in which case
// /api/watch is not served.
func NewServer(r *command.Router, hub *Hub, logger *util.Logger, m *metrics.Collector) *Server {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	s := &Server{router: r, hub: hub, logger: logger.With("api"), metrics: m}

	mx := mux.NewRouter()
	mx.HandleFunc("/TP_reaseau", s.handleHello).Methods(http.MethodGet)

	mx.HandleFunc("/api/welcome/", s.handleWelcomeText).Methods(http.MethodGet)
	mx.HandleFunc("/api/welcome", s.handleGetAll).Methods(http.MethodGet)
	mx.HandleFunc("/api/welcome", s.handleReplaceAll).Methods(http.MethodPost)
	mx.HandleFunc("/api/welcome", s.handleDeleteAll).Methods(http.MethodDelete)

	mx.HandleFunc("/api/welcome/{x:[0-9]+}", s.handleGetChar).Methods(http.MethodGet)
	mx.HandleFunc("/api/welcome/{x:[0-9]+}", s.handleReplaceAll).Methods(http.MethodPost)
	mx.HandleFunc("/api/welcome/{x:[0-9]+}", s.handleInsert).Methods(http.MethodPut)
	mx.HandleFunc("/api/welcome/{x:[0-9]+}", s.handleReplaceChar).Methods(http.MethodPatch)
	mx.HandleFunc("/api/welcome/{x:[0-9]+}", s.handleDeleteChar).Methods(http.MethodDelete)

	mx.HandleFunc("/api/request/", s.handleEcho).Methods(http.MethodGet, http.MethodPost)
	mx.HandleFunc("/api/request/{path}", s.handleEcho).Methods(http.MethodGet, http.MethodPost)

	mx.HandleFunc("/api/metrics", s.handleMetrics).Methods(http.MethodGet)
	if hub != nil {
		mx.HandleFunc("/api/watch", s.handleWatch).Methods(http.MethodGet)
	}

	mx.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	mx.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	s.handler = s.withRequestID(s.withAccessLog(mx))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ── middleware ───────────────────────────────────────────────────────

type ctxKey struct{}

// RequestID returns the id assigned to the request, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// withRequestID keeps a well-formed incoming id and mints one otherwise.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.RequestStarted()
		defer s.metrics.RequestFinished()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Verbose("%s %s %d %s id=%s", r.Method, r.URL.RequestURI(), rec.status,
			time.Since(start).Truncate(time.Microsecond), RequestID(r.Context()))
	})
}

// statusRecorder remembers the status code.  It passes Hijack through
// so /api/watch can upgrade.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.status, r.wrote = code, true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(p)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status, r.wrote = http.StatusSwitchingProtocols, true
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
