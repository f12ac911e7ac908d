package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"ecopunto-backend/internal/metrics"
	"ecopunto-backend/internal/middleware"
	"ecopunto-backend/internal/simulation"
	"ecopunto-backend/internal/storage"
	"ecopunto-backend/internal/websocket"
)

// RouterConfig carries everything the HTTP layer depends on.
type RouterConfig struct {
	Store     storage.Store
	Hub       *websocket.Hub
	Simulator *simulation.Simulator

	// StreamInterval is the tick period of every stream subscriber.
	StreamInterval time.Duration

	DemoUserID     string
	AllowedOrigins []string
	// RateLimitRPM limits /api requests per client IP; 0 disables it.
	RateLimitRPM int
}

// NewRouter builds the REST API, the container stream and the ops endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.DemoUser(cfg.DemoUserID))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	// Container stream
	stream := websocket.HandleWebSocket(cfg.Hub, cfg.Simulator, cfg.StreamInterval)
	r.Get("/ws/containers", stream)
	r.Get("/ws", stream)

	// API routes
	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimitRPM > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitRPM, time.Minute))
		}

		r.Get("/containers", GetContainers(cfg.Store))
		r.Get("/containers/nearby", GetNearbyContainers(cfg.Store))
		r.Get("/containers/{id}", GetContainer(cfg.Store))

		r.Get("/stats", GetStats(cfg.Store))
		r.Post("/stats/update", UpdateStats(cfg.Store))

		r.Get("/notifications", GetNotifications(cfg.Store))
		r.Patch("/notifications/{id}/read", MarkNotificationRead(cfg.Store))
	})

	return r
}
