// Package web provides the HTTP server, JSON API and review pages for bulk
// farmer imports.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/farmerimport/internal/config"
	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/JonMunkholm/farmerimport/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the import application.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	limiters []*rateLimiter
}

// NewServer creates a Server. cfg must have passed Validate.
func NewServer(service *core.Service, cfg *config.Config) (*Server, error) {
	keys, err := cfg.Security.Keys()
	if err != nil {
		return nil, err
	}

	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware(keys)
	s.setupRoutes()
	return s, nil
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware(keys []config.APIKey) {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}

	s.router.Use(middleware.APIKeyAuth(keys, s.cfg.Security.RequireAPIKey))
	s.router.Use(middleware.Annotate)
}

// setupRoutes configures all HTTP routes.
//
// File uploads and commits run under their own parse and commit timeouts,
// so only the remaining routes get the request timeout.
func (s *Server) setupRoutes() {
	timeout := chimw.Timeout(s.cfg.Server.RequestTimeout)
	upload := s.uploadLimit()
	admin := middleware.RequireRole(config.RoleAdmin)

	// Pages
	s.router.With(timeout).Get("/", s.handleDashboard)
	s.router.With(timeout).Post("/imports", s.handleCreateImportForm)
	s.router.Route("/imports/{id}", func(r chi.Router) {
		r.Use(middleware.Annotate)
		r.With(timeout).Get("/", s.handleReviewPage)
		r.With(upload).Post("/file", s.handleUploadForm)
		r.With(timeout).Post("/file/remove", s.handleRemoveFileForm)
		r.With(admin).Post("/commit", s.handleCommitForm)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.With(timeout).Get("/status", s.handleStatus)
		r.With(timeout).Get("/template", s.handleTemplate)
		r.With(timeout).Get("/reference-data", s.handleReferenceData)
		r.With(timeout).Get("/imports/history", s.handleImportHistory)
		r.With(timeout, admin).Post("/farmers", s.handleCreateFarmer)

		r.With(timeout).Post("/imports", s.handleCreateImport)
		r.Route("/imports/{id}", func(r chi.Router) {
			r.Use(middleware.Annotate)

			r.With(timeout).Get("/", s.handleGetImport)
			r.With(timeout).Delete("/", s.handleDeleteImport)

			r.With(upload).Post("/file", s.handleUpload)
			r.With(timeout).Delete("/file", s.handleRemoveFile)

			r.With(timeout).Get("/farmers", s.handleListFarmers)
			r.With(timeout).Get("/farms", s.handleListFarms)
			r.With(timeout).Patch("/farmers/{farmerID}", s.handleUpdateFarmer)
			r.With(timeout).Delete("/farmers/{farmerID}", s.handleDeleteFarmer)
			r.With(timeout).Patch("/farmers/{farmerID}/farms/{farmID}", s.handleUpdateFarm)
			r.With(timeout).Delete("/farmers/{farmerID}/farms/{farmID}", s.handleDeleteFarm)

			r.With(timeout).Post("/validate", s.handleValidate)
			r.With(admin).Post("/commit", s.handleCommit)
		})
	})
}

func (s *Server) uploadLimit() func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute).middleware
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	c := s.cfg.Server
	s.server = &http.Server{
		Addr:         c.Addr(),
		Handler:      s.router,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		IdleTimeout:  c.IdleTimeout,
	}

	slog.Info("starting server", "addr", c.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limiters {
		l.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

const contentSecurityPolicy = "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'"

// securityHeaders adds security headers to all responses.
func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if csp {
				// Pages carry their stylesheet inline.
				h.Set("Content-Security-Policy", contentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter implements a fixed-window request limit per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a limiter owned by the server, stopped on Shutdown.
func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		done:     make(chan struct{}),
	}
	s.limiters = append(s.limiters, rl)
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries once per window.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if now.Sub(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rate limits by client IP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(middleware.ClientIP(r), time.Now()) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			respondErrorJSON(w, core.MapError(errRateLimited), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
