package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coinscribe/coinscribe/internal/market"
	"github.com/coinscribe/coinscribe/internal/ratelimit"
	"github.com/coinscribe/coinscribe/internal/storage"
	"github.com/coinscribe/coinscribe/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// RateLimitConfig is the per-client request budget enforced at the HTTP
// boundary. This is user-facing fairness, separate from the runner's
// submission throttle.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// Server represents the API server.
type Server struct {
	router   *chi.Mux
	handlers *Handlers
	addr     string
	server   *http.Server
}

// NewServer creates a new API server.
func NewServer(store *storage.Store, runner *worker.Runner, collector *market.Collector, limiter ratelimit.Limiter, rl RateLimitConfig, addr string) *Server {
	handlers := NewHandlers(store, runner, collector)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(rateLimitMiddleware(limiter, rl))

	// Routes
	r.Route("/api", func(r chi.Router) {
		// Health
		r.Get("/health", handlers.HealthCheck)
		r.Get("/stats", handlers.GetStats)

		// Generation pipeline
		r.Post("/generate", handlers.SubmitGeneration)
		r.Get("/jobs/{id}", handlers.GetJobStatus)

		// Articles
		r.Route("/articles", func(r chi.Router) {
			r.Get("/", handlers.GetArticles)
			r.Get("/{id}", handlers.GetArticle)
		})

		// Topics and templates
		r.Get("/topics", handlers.GetTopics)
		r.Get("/templates", handlers.GetTemplates)

		// Market data
		r.Get("/market/global", handlers.GetGlobalMarket)
	})

	return &Server{
		router:   r,
		handlers: handlers,
		addr:     addr,
	}
}

// rateLimitMiddleware enforces the per-client budget keyed by remote IP.
// The limiter fails open, so a backend outage never blocks traffic.
func rateLimitMiddleware(limiter ratelimit.Limiter, rl RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := limiter.Check(r.Context(), "api:"+r.RemoteAddr, rl.Limit, rl.Window)
			if !result.Allowed {
				w.Header().Set("Retry-After", result.ResetTime.UTC().Format(http.TimeFormat))
				respondError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Start starts the API server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
