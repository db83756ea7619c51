// Package http exposes the upload lifecycle over a JSON API.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"homeinspect/internal/capture"
	"homeinspect/internal/identity"
	"homeinspect/internal/log"
	"homeinspect/internal/metrics"
	"homeinspect/internal/services"
)

// Options tunes limits and caching.
type Options struct {
	MaxUploadBytes  int64
	RateLimitRPS    float64
	RateLimitBurst  int
	MatrixCacheSize int
	MatrixCacheTTL  time.Duration
}

// ReadinessCheck reports whether a backing store is reachable.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	http.Server
	uploads     *services.UploadCoordinator
	identity    *identity.Provider
	normalizer  *capture.Normalizer
	checks      map[string]ReadinessCheck
	rateLimiter *rateLimiter
	matrices    *matrixCache
	logger      *log.Logger
	httpLog     *log.StructuredLogger
	maxUpload   int64
	now         func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, uploads *services.UploadCoordinator, ident *identity.Provider, normalizer *capture.Normalizer, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if normalizer == nil {
		normalizer = capture.NewNormalizer(nil, nil)
	}

	s := &Server{
		uploads:     uploads,
		identity:    ident,
		normalizer:  normalizer,
		checks:      make(map[string]ReadinessCheck),
		rateLimiter: newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		matrices:    newMatrixCache(opts.MatrixCacheSize, opts.MatrixCacheTTL),
		logger:      logger.WithComponent(log.ComponentHTTP),
		maxUpload:   opts.MaxUploadBytes,
		now:         time.Now,
	}
	s.httpLog = log.NewStructuredLogger(s.logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(requestID))
	r.Use(s.logRequests)
	r.Use(metricsMiddleware)
	r.Use(withSecurityHeaders)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.With(s.rateLimit).Post("/signup", s.handleSignUp)
		r.With(s.rateLimit).Post("/signin", s.handleSignIn)
		r.With(s.requireSession).Post("/signout", s.handleSignOut)
		r.With(s.requireSession).Get("/session", s.handleSession)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/checklist", s.handleChecklist)
		r.Get("/slots", s.handleSlots)
		r.With(s.rateLimit).Post("/uploads", s.handleCreateUpload)
		r.Get("/uploads", s.handleListUploads)
		r.Delete("/uploads/{id}", s.handleDeleteUpload)
		r.Get("/matrix", s.handleMatrix)
		r.Get("/owners/{ownerID}/matrix", s.handleOwnerMatrix)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// AddReadinessCheck registers a named dependency checked by /readyz.
func (s *Server) AddReadinessCheck(name string, check ReadinessCheck) {
	s.checks[name] = check
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.httpLog.LogHTTPEnd(r.Context(), r, rw.statusCode, time.Since(start).Milliseconds(), extractClientIP(r))
	})
}

// metricsMiddleware labels requests with the matched route pattern so ids
// in paths do not blow up label cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		if !s.rateLimiter.allow(clientIP) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Kind: "rate_limited", Message: "Too many requests. Please try again shortly."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	ready := true
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			ready = false
			continue
		}
		status[name] = "ok"
	}
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
