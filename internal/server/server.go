package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/deal-tracker/internal/config"
	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/ingestion"
	"github.com/jonathan/deal-tracker/internal/observability"
	"github.com/jonathan/deal-tracker/internal/pipeline"
	"github.com/jonathan/deal-tracker/internal/server/middleware"
	"github.com/jonathan/deal-tracker/internal/server/ratelimit"
	"github.com/jonathan/deal-tracker/internal/triage"
	"github.com/jonathan/deal-tracker/internal/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Triage is the decision surface the API exposes.
type Triage interface {
	Accept(ctx context.Context, itemID int64, fields types.AcceptRequest) (triage.Result, error)
	Reject(ctx context.Context, itemID int64, reason *string, by string) (triage.Result, error)
	UndoReject(ctx context.Context, itemID int64) (bool, error)
	Detail(ctx context.Context, itemID int64) (*triage.ItemDetail, error)
	ListPending(ctx context.Context, limit int) ([]db.Item, error)
	ListApproved(ctx context.Context) ([]db.ApprovedRecord, error)
	ListRejected(ctx context.Context, limit int) ([]db.RejectedRecord, error)
	ApplyAction(ctx context.Context, token string) (*triage.ActionOutcome, error)
}

// Submitter admits manually submitted URLs.
type Submitter interface {
	IngestOne(ctx context.Context, rawURL, title string, summary *string) (ingestion.Result, error)
}

// Store serves read-only listings and counts.
type Store interface {
	ListItems(ctx context.Context, filter db.ItemFilter) ([]db.Item, error)
	QueueStats(ctx context.Context) (*db.QueueStats, error)
	OriginStats(ctx context.Context) ([]db.OriginStats, error)
}

// CycleRunner triggers a pipeline cycle on demand.
type CycleRunner interface {
	RunNow(ctx context.Context, trigger string, onProgress pipeline.ProgressCallback) (*pipeline.CycleReport, error)
}

// Config holds server configuration
type Config struct {
	Port int
	// JWT enables operator auth on the triage endpoints. Nil leaves them open.
	JWT       *config.JWTConfig
	Passwords *config.PasswordConfig
	Operator  Operator
	// RateLimit nil uses ratelimit defaults.
	RateLimit *ratelimit.Config
}

// Deps are the components behind the API. Cycles may be nil.
type Deps struct {
	Store     Store
	Triage    Triage
	Submitter Submitter
	Cycles    CycleRunner
	Logger    *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	store       Store
	triage      Triage
	submitter   Submitter
	cycles      CycleRunner
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	authHandler *AuthHandler
	logger      *zap.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Triage == nil || deps.Submitter == nil {
		return nil, errors.New("server requires a store, triage engine and submitter")
	}

	s := &Server{
		store:       deps.Store,
		triage:      deps.Triage,
		submitter:   deps.Submitter,
		cycles:      deps.Cycles,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		logger:      observability.OrNop(deps.Logger),
	}

	if cfg.JWT != nil {
		if cfg.Passwords == nil {
			return nil, errors.New("operator auth requires a password config")
		}
		s.jwtService = NewJWTService(cfg.JWT)
		s.authHandler = NewAuthHandler(cfg.Operator, cfg.Passwords, s.jwtService, s.logger)
	} else {
		s.logger.Warn("JWT_SECRET not set: triage API is unauthenticated")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/action", s.handleAction)

	mux.Handle("GET /items/pending", s.protected(s.handleListPending))
	mux.Handle("GET /items", s.protected(s.handleListItems))
	mux.Handle("POST /items", s.protected(s.handleSubmit))
	mux.Handle("GET /items/{id}", s.protected(s.handleGetItem))
	mux.Handle("POST /items/{id}/accept", s.protected(s.handleAccept))
	mux.Handle("POST /items/{id}/reject", s.protected(s.handleReject))
	mux.Handle("DELETE /items/{id}/rejection", s.protected(s.handleUndoReject))
	mux.Handle("GET /approved", s.protected(s.handleListApproved))
	mux.Handle("GET /rejected", s.protected(s.handleListRejected))
	mux.Handle("GET /stats", s.protected(s.handleStats))
	mux.Handle("POST /cycles", s.protected(s.handleRunCycle))
	mux.Handle("POST /cycles/stream", s.protected(s.handleRunCycleStream))

	s.handler = middleware.RequestID(s.withLogging(s.withRateLimit(s.withCORS(mux))))
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      10 * time.Minute, // cycle streams run a full pipeline
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer s.rateLimiter.Stop()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// protected wraps h with operator auth when it is configured.
func (s *Server) protected(h http.HandlerFunc) http.Handler {
	if s.jwtService == nil {
		return h
	}
	return middleware.AuthMiddleware(s.jwtService.AsTokenValidator())(h)
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging logs each request and records HTTP metrics.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		observability.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		observability.HTTPDuration.WithLabelValues(r.Method).Observe(elapsed.Seconds())

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("remote", r.RemoteAddr),
		}
		if rec.status >= http.StatusInternalServerError {
			s.logger.Error("request failed", fields...)
		} else {
			s.logger.Info("request", fields...)
		}
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID extracts the client IP from RemoteAddr. Forwarded headers are ignored.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		retry := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = retry
		w.Header().Set("Retry-After", strconv.Itoa(retry))
	}

	s.logger.Warn("rate limit exceeded", zap.Int("limit", info.Limit), zap.Duration("retry_after", info.RetryAfter))
	jsonResponse(w, http.StatusTooManyRequests, response)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogin handles operator login requests.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.authHandler == nil {
		writeError(w, &ErrFeatureDisabled{Feature: "operator login"})
		return
	}
	s.authHandler.Login(w, r)
}

// jsonResponse writes a JSON response
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps err to a status and writes {"error": message}. Internal
// errors are not echoed to the client.
func writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	jsonResponse(w, status, map[string]string{"error": message})
}

// fail logs internal errors with the request id before writing them.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if HTTPStatus(err) >= http.StatusInternalServerError {
		s.logger.Error("handler error",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
	}
	writeError(w, err)
}
