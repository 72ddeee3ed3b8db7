package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jiangkunoa/chat-practise/internal/api/middleware"
	"github.com/jiangkunoa/chat-practise/internal/handlers"
	"github.com/jiangkunoa/chat-practise/internal/store"
	"github.com/jiangkunoa/chat-practise/internal/token"
)

// NewRouter creates and configures the HTTP router. redisClient may be nil,
// which disables rate limiting.
func NewRouter(logger zerolog.Logger, st store.DataStore, tokens *token.Manager, redisClient *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (optional)
	if redisClient != nil {
		limiter := middleware.NewRateLimiter(redisClient, logger)
		r.Use(limiter.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(st, tokens)
	auth := middleware.NewAuthMiddleware(st, tokens)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Post("/update_password", h.UpdatePassword)
	})

	return r
}
