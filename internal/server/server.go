// Package server provides the web application: marketing pages, the signed-in
// workspace and the JSON API behind it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jonathan/resume-optimizer/internal/analytics"
	"github.com/jonathan/resume-optimizer/internal/backend"
	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/fetch"
	"github.com/jonathan/resume-optimizer/internal/identity"
	"github.com/jonathan/resume-optimizer/internal/jobs"
	"github.com/jonathan/resume-optimizer/internal/observability"
	"github.com/jonathan/resume-optimizer/internal/server/middleware"
	"github.com/jonathan/resume-optimizer/internal/server/ratelimit"
	"github.com/jonathan/resume-optimizer/internal/state"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/jonathan/resume-optimizer/internal/web"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// Backend is the part of the optimization backend the handlers call directly.
// Job traffic goes through jobs.Service.
type Backend interface {
	SessionBackend
	TestConnection(ctx context.Context, cfg types.ProviderConfig) (*types.ConnectionTestResponse, error)
	Providers(ctx context.Context) ([]types.ProviderInfo, error)
	Dashboard(ctx context.Context, token string) (*types.Dashboard, error)
	Download(ctx context.Context, token, ref string) (*backend.Download, error)
	AnalyzeATS(ctx context.Context, token string, req *types.ATSRequest) (*types.ATSAnalysis, error)
	BreakerState() string
}

// Deps are the collaborators of a Server.
type Deps struct {
	Config    *config.ServerConfig
	JWTConfig *config.JWTConfig
	Store     *state.Store
	Backend   Backend
	Jobs      *jobs.Service
	Importer  fetch.JobImporter
	Users     UserStore
	Google    *identity.Google // optional
	Analytics analytics.Client
	Metrics   *observability.Metrics
	Renderer  *web.Renderer
	Blog      *web.Blog
	Limiter   *ratelimit.Limiter
	Logger    *slog.Logger
	// Ping checks the database, when there is one.
	Ping func(context.Context) error
	// Close releases resources after the listeners stop.
	Close func()
}

// Server represents the HTTP server
type Server struct {
	cfg       *config.ServerConfig
	store     *state.Store
	backend   Backend
	jobs      *jobs.Service
	importer  fetch.JobImporter
	analytics analytics.Client
	metrics   *observability.Metrics
	renderer  *web.Renderer
	blog      *web.Blog
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	ping      func(context.Context) error
	closeFn   func()

	users       *UserService
	jwtService  *JWTService
	authHandler *AuthHandler
	cookieName  string

	handler http.Handler
}

// New creates a new server instance
func New(d Deps) (*Server, error) {
	if d.Config == nil || d.JWTConfig == nil {
		return nil, errors.New("server and session configuration are required")
	}
	if d.Store == nil || d.Backend == nil || d.Jobs == nil || d.Users == nil {
		return nil, errors.New("state store, backend, job service and user store are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Analytics == nil {
		d.Analytics = analytics.Noop{}
	}
	if d.Limiter == nil {
		d.Limiter = ratelimit.NewLimiter(ratelimit.LoadConfig())
	}
	if d.Renderer == nil {
		r, err := web.NewRenderer()
		if err != nil {
			return nil, err
		}
		d.Renderer = r
	}
	if d.Blog == nil {
		b, err := web.LoadBlog()
		if err != nil {
			return nil, fmt.Errorf("failed to load blog: %w", err)
		}
		d.Blog = b
	}

	s := &Server{
		cfg:        d.Config,
		store:      d.Store,
		backend:    d.Backend,
		jobs:       d.Jobs,
		importer:   d.Importer,
		analytics:  d.Analytics,
		metrics:    d.Metrics,
		renderer:   d.Renderer,
		blog:       d.Blog,
		limiter:    d.Limiter,
		logger:     d.Logger,
		ping:       d.Ping,
		closeFn:    d.Close,
		jwtService: NewJWTService(d.JWTConfig),
		cookieName: d.JWTConfig.CookieName,
	}
	s.users = NewUserService(d.Users, d.Backend, d.Store, d.Analytics, d.Logger)
	s.authHandler = NewAuthHandler(s.users, s.jwtService, d.JWTConfig, d.Google,
		d.Config.DevAuthBypass, d.Renderer, d.Logger)

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.withRateLimit(h)
	h = s.withMetrics(h)
	h = s.withLogging(h)
	s.handler = otelhttp.NewHandler(h, "resume-optimizer",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))

	return s, nil
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes(mux *http.ServeMux) {
	validator := s.jwtService.AsTokenValidator()
	optional := middleware.Optional(validator, s.cookieName)
	page := middleware.RequirePage(validator, s.cookieName)
	api := middleware.RequireAPI(validator, s.cookieName)

	pageFn := func(pattern string, fn http.HandlerFunc) { mux.Handle(pattern, page(fn)) }
	apiFn := func(pattern string, fn http.HandlerFunc) { mux.Handle(pattern, api(fn)) }

	// Public pages
	mux.Handle("GET /{$}", optional(http.HandlerFunc(s.handleHome)))
	mux.Handle("GET /features", optional(http.HandlerFunc(s.handleFeatures)))
	mux.Handle("GET /pricing", optional(http.HandlerFunc(s.handlePricing)))
	mux.Handle("GET /blog", optional(http.HandlerFunc(s.handleBlog)))
	mux.Handle("GET /blog/{slug}", optional(http.HandlerFunc(s.handlePost)))
	mux.Handle("GET /ats", optional(http.HandlerFunc(s.handleATSPage)))
	mux.Handle("POST /api/ats", optional(http.HandlerFunc(s.handleAnalyzeATS)))
	mux.Handle("GET /sign-in", optional(http.HandlerFunc(s.authHandler.SignInPage)))
	mux.Handle("GET /static/", http.StripPrefix("/static/", web.StaticHandler()))
	mux.Handle("/", optional(http.HandlerFunc(s.handleNotFound)))

	// Authentication
	mux.HandleFunc("GET /auth/google/start", s.authHandler.GoogleStart)
	mux.HandleFunc("GET /auth/google/callback", s.authHandler.GoogleCallback)
	mux.HandleFunc("POST /auth/dev", s.authHandler.DevSignIn)
	mux.Handle("POST /auth/sign-out", optional(http.HandlerFunc(s.authHandler.SignOut)))

	// Signed-in pages
	pageFn("GET /app", s.handleWorkspace)
	pageFn("GET /app/jobs/{id}", s.handleJobPage)
	pageFn("GET /app/dashboard", s.handleDashboardPage)
	pageFn("GET /app/settings", s.handleSettingsPage)

	// Session
	apiFn("GET /api/session", s.handleSession)

	// Templates
	apiFn("GET /api/templates", s.handleListTemplates)
	apiFn("POST /api/templates", s.handleUploadTemplate)
	apiFn("GET /api/templates/{id}", s.handleGetTemplate)
	apiFn("DELETE /api/templates/{id}", s.handleDeleteTemplate)
	apiFn("POST /api/templates/{id}/select", s.handleSelectTemplate)
	apiFn("PUT /api/draft", s.handleSaveDraft)

	// Provider
	apiFn("GET /api/providers", s.handleListProviders)
	apiFn("GET /api/provider", s.handleGetProvider)
	apiFn("PUT /api/provider", s.handleSaveProvider)
	apiFn("DELETE /api/provider", s.handleDisconnectProvider)
	apiFn("POST /api/provider/test", s.handleTestProvider)

	// Jobs
	apiFn("POST /api/jobs", s.handleSubmitJob)
	apiFn("GET /api/jobs", s.handleListJobs)
	apiFn("GET /api/jobs/{id}/status", s.handleJobStatus)
	apiFn("GET /api/jobs/{id}/events", s.handleJobEvents)
	apiFn("GET /api/jobs/{id}/result", s.handleJobResult)
	apiFn("POST /api/jobs/{id}/compile", s.handleRecompile)
	apiFn("GET /api/jobs/{id}/pdf", s.handleDownloadPDF)
	apiFn("GET /api/jobs/{id}/latex", s.handleDownloadLatex)
	apiFn("DELETE /api/jobs/{id}", s.handleDeleteJob)

	// Import and usage
	apiFn("POST /api/import", s.handleImport)
	apiFn("GET /api/stats", s.handleStats)

	mux.HandleFunc("GET /health", s.handleHealth)
	if s.cfg.MetricsPort == "" && s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Run serves until ctx is cancelled, then shuts everything down in order:
// listeners, job subscriptions, rate limiter, analytics, then Deps.Close.
func (s *Server) Run(ctx context.Context) error {
	servers := []*http.Server{s.newHTTPServer(":"+s.cfg.Port, s.handler)}
	if s.cfg.MetricsPort != "" && s.metrics != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", s.metrics.Handler())
		servers = append(servers, s.newHTTPServer(":"+s.cfg.MetricsPort, metricsMux))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			s.logger.Info("server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Event streams end when their subscriptions stop.
		s.jobs.Close()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	err := g.Wait()

	s.limiter.Stop()
	if cerr := s.analytics.Close(); cerr != nil {
		s.logger.Warn("failed to flush analytics", "error", cerr)
	}
	if s.closeFn != nil {
		s.closeFn()
	}
	s.logger.Info("server stopped")
	return err
}

func (s *Server) newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // event streams stay open until the job ends
		IdleTimeout:       60 * time.Second,
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		switch {
		case rec.code() >= 500:
			level = slog.LevelError
		case r.URL.Path == "/health" || r.URL.Path == "/metrics":
			level = slog.LevelDebug
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.code(),
			"duration", time.Since(start),
			"remote", s.extractClientID(r),
		)
	})
}

// withMetrics records request counts and latency by route pattern.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		// The mux sets Pattern on the request it was handed.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTPRequest(route, rec.code(), time.Since(start))
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract client identifier (IP address)
		clientID := s.extractClientID(r)

		// Check rate limit
		allowed, info := s.limiter.Allow(clientID, r.URL.Path, r.Method)

		if !allowed {
			// Set rate limit headers
			s.setRateLimitHeaders(w, info)
			// Return 429 Too Many Requests
			s.rateLimitResponse(w, info)
			return
		}

		// Set rate limit headers for successful requests
		s.setRateLimitHeaders(w, info)
		next.ServeHTTP(w, r)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{
		"status":  "ok",
		"backend": s.backend.BreakerState(),
	}
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "unreachable"
		} else {
			body["database"] = "ok"
		}
	}
	s.jsonResponse(w, status, body)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("error encoding JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// failAPI maps err onto a status and a user-facing message.
func (s *Server) failAPI(w http.ResponseWriter, r *http.Request, err error) {
	if backend.IsUnauthorized(err) {
		s.endSession(w, r)
	}
	status := HTTPStatus(err)
	if status >= 500 {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	s.errorResponse(w, status, UserMessage(err))
}

// endSession forgets a backend credential the backend no longer accepts and
// clears the session cookie, so the sign-in page does not bounce the user
// straight back.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.GetUserID(r)
	if err != nil {
		return
	}
	if err := s.store.ClearSession(r.Context(), Owner(id)); err != nil {
		s.logger.Warn("failed to clear rejected backend session", "user_id", id, "error", err)
	}
	s.authHandler.clearSessionCookie(w)
}

// decodeJSON reads a bounded JSON body into dst.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 2<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// extractClientID extracts the client identifier from the request.
// For MVP, this uses the IP address from RemoteAddr.
// In the future, this could use X-Forwarded-For header (only from trusted proxies).
func (s *Server) extractClientID(r *http.Request) string {
	// Get IP from RemoteAddr (format: "IP:port")
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// If parsing fails, use the whole RemoteAddr
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "Too many requests. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	s.logger.Warn("rate limit exceeded",
		"limit", info.Limit, "remaining", info.Remaining, "reset", info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
