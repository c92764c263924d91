// Package server exposes a tool registry over HTTP.
//
// Every invocation answers 200 with the wire envelope, whatever its status.
// Transport problems such as an undecodable or oversized body, a bad
// signature or the rate limit use plain HTTP status codes with a JSON error body.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/factkit/internal/metrics"
	"github.com/harun/factkit/internal/tracing"
	"github.com/harun/factkit/pkg/tool"
)

const tracerName = "github.com/harun/factkit/internal/server"

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Options configures a Server.
type Options struct {
	Host               string
	Port               int
	RateLimitPerMinute int // 0 disables rate limiting
	MaxBody            int64
	ShutdownTimeout    time.Duration
	// Secret, when set, requires a valid SignatureHeader on invoke requests.
	Secret string
}

// Server is the HTTP adapter in front of a tool registry
type Server struct {
	options        Options
	registry       *tool.Registry
	metrics        *metrics.Metrics
	rateLimiter    *RateLimiter
	logger         zerolog.Logger
	server         *http.Server
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
}

// NewServer creates a new HTTP adapter. m may be nil.
func NewServer(options Options, registry *tool.Registry, m *metrics.Metrics, logger zerolog.Logger) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}

	// Set defaults
	if options.Host == "" {
		options.Host = "127.0.0.1"
	}
	if options.Port == 0 {
		options.Port = 8080
	}
	if options.MaxBody <= 0 {
		options.MaxBody = 1 << 20 // 1 MB
	}
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		options:   options,
		registry:  registry,
		metrics:   m,
		logger:    logger,
		startTime: time.Now(),
	}
	if options.RateLimitPerMinute > 0 {
		s.rateLimiter = NewRateLimiter(options.RateLimitPerMinute)
	}

	return s, nil
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.options.Host, strconv.Itoa(s.options.Port))
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/tools", s.handleListTools)
	mux.HandleFunc("GET /v1/tools/{name}", s.handleGetTool)
	mux.HandleFunc("POST /v1/tools/{name}/invoke", s.handleInvoke)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = s.rateLimitMiddleware(handler)
	handler = s.requestMiddleware(handler)

	return handler
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Int("tools", s.registry.Count()).
		Msg("Starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop gracefully stops the server, waiting up to ShutdownTimeout for in-flight requests
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down HTTP server")

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	if err := tracing.ForceFlush(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to flush request spans")
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.shuttingDown() {
		status = "shutting_down"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"uptime":    time.Since(s.startTime).Seconds(),
		"tools":     s.registry.Count(),
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": s.registry.List(),
	})
}

func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	info, ok := s.registry.Get(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, tool.CodeUnknownTool, fmt.Sprintf("unknown tool: %s", r.PathValue("name")))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleInvoke decodes the body as tool arguments and always answers with the envelope
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	logger := tracing.LoggerFromContext(r.Context(), s.logger)

	if s.shuttingDown() {
		writeError(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "server is shutting down")
		return
	}

	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.options.MaxBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "failed to read request body")
		return
	}

	if s.options.Secret != "" && !verifySignature(rawBody, r.Header.Get(SignatureHeader), s.options.Secret) {
		logger.Warn().Str("tool", name).Str("ip", clientIP(r)).Msg("Rejected invoke with bad signature")
		writeError(w, http.StatusUnauthorized, "BAD_SIGNATURE", "missing or invalid request signature")
		return
	}

	args, err := decodeArgs(rawBody)
	if err != nil {
		logger.Debug().Err(err).Str("tool", name).Msg("Rejected undecodable invoke body")
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}

	ctx, span := tracing.StartSpan(r.Context(), tracerName, "http.invoke",
		attribute.String("tool.name", name),
		attribute.String("http.request_id", tracing.GetRequestID(r.Context())),
	)
	defer span.End()

	env := s.registry.Invoke(ctx, name, args)

	logger.Info().
		Str("tool", name).
		Str("status", string(env.Status())).
		Str("code", env.Code()).
		Msg("Tool invoked over HTTP")

	writeJSON(w, http.StatusOK, env)
}

// decodeArgs maps an empty or null body to absent args and a non-object to
// something the invocation template rejects as BAD_ARGS.
func decodeArgs(body []byte) (tool.Args, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, nil
	}
	return tool.Args(obj), nil
}

// requestMiddleware assigns request IDs, logs requests and counts them
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := tracing.NewRequestContext(r.Context(), r.Header.Get(RequestIDHeader))
		w.Header().Set(RequestIDHeader, tracing.GetRequestID(ctx))
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if s.metrics != nil {
			s.metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		}

		lg := tracing.LoggerFromContext(ctx, s.logger)
		lg.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("ip", clientIP(r)).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request completed")
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.rateLimiter.CheckLimit(ip) {
			retryAfter := s.rateLimiter.RetryAfter(ip)
			s.logger.Warn().
				Str("ip", ip).
				Str("path", r.URL.Path).
				Int("retryAfter", retryAfter).
				Msg("Rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: apiErrorBody{Code: code, Message: message}})
}
