// Package http serves the detection service as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bankcal/internal/cache"
	"bankcal/internal/core"
	applog "bankcal/internal/log"
	"bankcal/internal/middleware/ratelimit"
	"bankcal/internal/middleware/security"
	"bankcal/internal/middleware/trace"
	"bankcal/internal/recurrence"
	"bankcal/internal/services"
)

// maxBodyBytes bounds import and detect payloads.
const maxBodyBytes = 8 << 20

// DetectionAPI is what the handlers need from services.DetectionService.
type DetectionAPI interface {
	Defaults() recurrence.Options
	ImportTransactions(ctx context.Context, txs []core.Transaction) (int, error)
	Detect(ctx context.Context, txs []core.Transaction, opts recurrence.Options) (recurrence.Result, error)
	RunDetection(ctx context.Context, opts recurrence.Options) (recurrence.Result, int, error)
	SeriesForMonth(ctx context.Context, year, month int) ([]recurrence.Series, error)
	Upcoming(ctx context.Context, year, month int) ([]services.UpcomingPayment, error)
	MonthSummary(ctx context.Context, year, month int) (core.MonthOverview, error)
	ExportMonth(ctx context.Context, year, month int) (int, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	http.Server
	svc      DetectionAPI
	logger   *applog.Logger
	checks   map[string]ReadinessCheck
	stats    func() cache.Stats
	now      func() time.Time
	started  time.Time
	rateCfg  ratelimit.Config
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithReadinessCheck adds a named check to /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithCacheStats exposes result cache counters on /metrics.
func WithCacheStats(stats func() cache.Stats) Option {
	return func(s *Server) { s.stats = stats }
}

// WithRateLimit replaces the default POST budget.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(s *Server) { s.rateCfg = cfg }
}

// WithTrustedProxy trusts forwarding headers from cidr.
func WithTrustedProxy(cidr string) Option {
	return func(s *Server) {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc DetectionAPI, logger *applog.Logger, opts ...Option) *Server {
	s := &Server{
		svc:      svc,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		checks:   make(map[string]ReadinessCheck),
		now:      time.Now,
		started:  time.Now(),
		rateCfg:  ratelimit.DefaultConfig(),
		detector: security.NewDetector(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = ratelimit.NewLimiter(s.rateCfg)
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/transactions", s.handleImport)
	mux.HandleFunc("POST /api/detect", s.handleDetect)
	mux.HandleFunc("POST /api/detections", s.handleRunDetection)
	mux.HandleFunc("GET /api/series", s.handleSeries)
	mux.HandleFunc("GET /api/upcoming", s.handleUpcoming)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("POST /api/export", s.handleExport)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited, http.MethodPost)(h)
	h = s.withSuspiciousLogging(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// withSuspiciousLogging records scanner-looking requests; they are still served.
func (s *Server) withSuspiciousLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				applog.FieldClientIP, s.detector.ExtractClientIP(r),
				"user_agent", r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r))
	writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
