package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/khanhnv2901/webharden/internal/api/middleware"
	"github.com/khanhnv2901/webharden/internal/checker"
	"github.com/khanhnv2901/webharden/internal/metrics"
	"github.com/khanhnv2901/webharden/internal/report"
	consts "github.com/khanhnv2901/webharden/internal/shared/constants"
	sharederrors "github.com/khanhnv2901/webharden/internal/shared/errors"
)

// AuditService runs one audit with the given per-probe timeout.
type AuditService interface {
	RunAudit(ctx context.Context, url string, timeout time.Duration) checker.AuditResult
}

// AuditorService adapts a checker.Auditor template to AuditService.
type AuditorService struct {
	Base checker.Auditor
}

func (s *AuditorService) RunAudit(ctx context.Context, url string, timeout time.Duration) checker.AuditResult {
	a := s.Base
	if timeout > 0 {
		a.Timeout = timeout
	}
	return a.Run(ctx, url)
}

type Config struct {
	Audits         AuditService
	Jobs           *JobManager
	AuthToken      string
	Logger         *zap.Logger
	CORSOrigins    []string      // Allowed CORS origins (empty = allow all)
	RateLimit      int           // Requests per second per IP (0 = disabled)
	RateBurst      int           // Burst size for rate limiter
	DefaultTimeout time.Duration // Used when a request omits timeout_secs
	MaxTimeout     time.Duration // Upper bound accepted from clients; zero means one minute
	Metrics        http.Handler  // Served at /metrics; nil uses metrics.Handler()
}

type Server struct {
	cfg      Config
	router   chi.Router
	limiters *rateLimiterMap
	mu       sync.Mutex // Orders wg.Add against Shutdown
	wg       sync.WaitGroup
	baseCtx  context.Context
	cancel   context.CancelFunc
}

func NewServer(cfg Config) *Server {
	if cfg.Jobs == nil {
		cfg.Jobs = NewJobManager(consts.DefaultStoredAudits)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = consts.DefaultTimeout
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = time.Minute
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Handler()
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		cfg:      cfg,
		limiters: newRateLimiterMap(),
		baseCtx:  ctx,
		cancel:   cancel,
	}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Shutdown cancels background audits and waits for them to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) routes() {
	r := chi.NewRouter()
	// RequestID -> Logging -> RateLimit -> CORS -> Auth -> Handler
	r.Use(middleware.RequestID, s.withLogging, s.withRateLimit, s.withCORS)
	r.MethodNotAllowed(s.methodNotAllowed)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, errors.New("not found"))
	})

	r.Get("/api/v1/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.cfg.Metrics)

	r.Group(func(r chi.Router) {
		r.Use(s.withAuth)
		r.Post("/api/v1/audits", s.handleCreateAudit)
		r.Get("/api/v1/audits", s.handleListAudits)
		r.Get("/api/v1/audits/{id}", s.handleGetAudit)
		r.Get("/api/v1/audits/{id}/report.html", s.handleAuditReport)
		r.Get("/api/v1/audits-stream", s.handleAuditStream)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateAudit(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Audits == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errors.New("audit service not available"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, consts.MaxRequestBodyBytes)
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: %v", sharederrors.ErrInvalidInput, err))
		return
	}
	timeout, err := s.requestTimeout(req)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, r, http.StatusBadRequest, sharederrors.ErrEmptyTarget)
		return
	}

	if !s.track() {
		s.writeError(w, r, http.StatusServiceUnavailable, errors.New("server is shutting down"))
		return
	}

	job := s.cfg.Jobs.CreateJob(req.URL)
	s.requestLogger(r).Info("audit_queued", zap.String("audit_id", job.ID), zap.String("target", req.URL))

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		defer s.wg.Done()
		done := s.runJob(r.Context(), job.ID, req.URL, timeout)
		writeJSON(w, http.StatusOK, done)
		return
	}

	go func() {
		defer s.wg.Done()
		s.runJob(s.baseCtx, job.ID, req.URL, timeout)
	}()
	writeJSON(w, http.StatusAccepted, job)
}

// track registers one audit with the shutdown wait group. It reports false
// once Shutdown has begun.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) runJob(ctx context.Context, id, url string, timeout time.Duration) *Job {
	s.cfg.Jobs.Start(id)
	result := s.cfg.Audits.RunAudit(ctx, url, timeout)
	return s.cfg.Jobs.Finish(id, result)
}

func (s *Server) requestTimeout(req JobRequest) (time.Duration, error) {
	if req.TimeoutSecs < 0 {
		return 0, fmt.Errorf("%w: timeout_secs must not be negative", sharederrors.ErrValidation)
	}
	if req.TimeoutSecs == 0 {
		return s.cfg.DefaultTimeout, nil
	}
	timeout := time.Duration(req.TimeoutSecs) * time.Second
	if timeout > s.cfg.MaxTimeout {
		return 0, fmt.Errorf("%w: timeout_secs exceeds %d", sharederrors.ErrValidation, int(s.cfg.MaxTimeout/time.Second))
	}
	return timeout, nil
}

func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	limit := 25
	if q := r.URL.Query().Get("limit"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	writeJSON(w, http.StatusOK, s.cfg.Jobs.ListJobs(limit))
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	job := s.cfg.Jobs.GetJob(chi.URLParam(r, "id"))
	if job == nil {
		s.writeError(w, r, http.StatusNotFound, sharederrors.ErrAuditNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleAuditReport(w http.ResponseWriter, r *http.Request) {
	job := s.cfg.Jobs.GetJob(chi.URLParam(r, "id"))
	if job == nil {
		s.writeError(w, r, http.StatusNotFound, sharederrors.ErrAuditNotFound)
		return
	}
	if job.Result == nil {
		s.writeError(w, r, http.StatusConflict, fmt.Errorf("audit %s is %s", job.ID, job.Status))
		return
	}

	page, err := report.RenderHTML(*job.Result)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		s.requestLogger(r).Error("failed to write response", zap.Error(err))
	}
}

func (s *Server) handleAuditStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, unsubscribe := s.cfg.Jobs.Subscribe()
	defer unsubscribe()
	ctx := r.Context()
	for {
		select {
		case job, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(job)
			if err != nil {
				s.requestLogger(r).Error("failed to marshal audit", zap.Error(err))
				continue
			}
			if !s.writeStreamChunk(w, []byte("event: audit\ndata: ")) ||
				!s.writeStreamChunk(w, payload) ||
				!s.writeStreamChunk(w, []byte("\n\n")) {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		case <-s.baseCtx.Done():
			return
		}
	}
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		limiter := s.limiters.getLimiter(ip, s.cfg.RateLimit, s.cfg.RateBurst)
		if !limiter.Allow() {
			s.requestLogger(r).Warn("rate_limit_exceeded", zap.String("client_ip", ip))
			s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, then RemoteAddr without port.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := "*"
		if len(s.cfg.CORSOrigins) > 0 {
			allowOrigin = ""
			for _, allowed := range s.cfg.CORSOrigins {
				if allowed == origin {
					allowOrigin = origin
					break
				}
			}
		}

		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Auth-Token, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.ObserveAPIRequest(r.Method, route, lrw.statusCode)

		s.cfg.Logger.Info("http_request",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", route),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int64("bytes", lrw.bytesWritten),
		)
	})
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code and bytes written
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

// Flush keeps the event stream working through the wrapper.
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()

	// 5xx details stay in the server log.
	if status >= 500 {
		s.requestLogger(r).Error("internal_server_error",
			zap.Error(err),
			zap.Int("status", status),
		)
		msg = "internal server error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger creates a logger with request context (request ID, method, path)
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	logger := s.cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (s *Server) writeStreamChunk(w http.ResponseWriter, data []byte) bool {
	if _, err := w.Write(data); err != nil {
		if s.cfg.Logger != nil {
			s.cfg.Logger.Error("failed to write stream chunk", zap.Error(err))
		}
		return false
	}
	return true
}

// rateLimiterMap keeps one limiter per client IP and forgets idle ones.
type rateLimiterMap struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	lastSweep time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdleTTL = 5 * time.Minute

func newRateLimiterMap() *rateLimiterMap {
	return &rateLimiterMap{
		limiters:  make(map[string]*ipLimiter),
		lastSweep: time.Now(),
	}
}

func (m *rateLimiterMap) getLimiter(ip string, rps, burst int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Sub(m.lastSweep) > time.Minute {
		for key, l := range m.limiters {
			if now.Sub(l.lastSeen) > limiterIdleTTL {
				delete(m.limiters, key)
			}
		}
		m.lastSweep = now
	}

	if burst <= 0 {
		burst = rps
	}
	l, exists := m.limiters[ip]
	if !exists {
		l = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		m.limiters[ip] = l
	}
	l.lastSeen = now
	return l.limiter
}
