package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nicoschmidtj/nicofit2/internal/catalog"
	"github.com/nicoschmidtj/nicofit2/internal/history"
	"github.com/nicoschmidtj/nicofit2/internal/metrics"
	"github.com/nicoschmidtj/nicofit2/internal/storage"
	"github.com/nicoschmidtj/nicofit2/internal/workout"
)

// Config holds the dependencies of a Server.
type Config struct {
	// Store holds the mirror slots.
	Store   storage.KV
	Catalog *catalog.Catalog
	// Cache is optional; it memoizes history for the read API.
	Cache   *history.Cache
	Metrics *metrics.Manager
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
	APIKey   string
	// Profile, Weeks and MinWeightKg are the progression defaults of the read API.
	Profile     string
	Weeks       int
	MinWeightKg float64
	Now         func() time.Time
	Logger      *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store          storage.KV
	advisor        *workout.Advisor
	metrics        *metrics.Manager
	log            *slog.Logger
	apiKey         string
	router         chi.Router
	metricsHandler http.Handler
}

// New creates a new Server with all routes configured.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.New(nil, nil)
	}
	handler := promhttp.Handler()
	if cfg.Gatherer != nil {
		handler = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
	}

	s := &Server{
		store: cfg.Store,
		advisor: &workout.Advisor{
			Catalog:     cat,
			Cache:       cfg.Cache,
			Profile:     cfg.Profile,
			Weeks:       cfg.Weeks,
			MinWeightKg: cfg.MinWeightKg,
			Metrics:     cfg.Metrics,
			Now:         cfg.Now,
		},
		metrics:        cfg.Metrics,
		log:            log,
		apiKey:         cfg.APIKey,
		router:         chi.NewRouter(),
		metricsHandler: handler,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(Instrument(s.metrics))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metricsHandler)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))

		r.Get("/mirror/{key}", s.handleMirrorGet)
		r.Put("/mirror/{key}", s.handleMirrorPut)
		r.Delete("/mirror/{key}", s.handleMirrorDelete)

		r.Get("/users/{userID}/exercises/{exerciseID}/history", s.handleExerciseHistory)
		r.Get("/users/{userID}/exercises/{exerciseID}/suggestion", s.handleExerciseSuggestion)
		r.Get("/users/{userID}/routines", s.handleRoutines)
		r.Get("/users/{userID}/sessions", s.handleSessions)

		r.Get("/stats", s.handleStats)
	})
}
