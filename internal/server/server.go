// Package server exposes the operator-facing HTTP surface (§6): a
// liveness/readiness pair, runtime settings inspection, and trigger
// endpoints over the distribution, migration, and fund-monitor
// components. Routes and payloads are an implementation detail; the
// chi router, middleware stack, and health/status convention follow
// the teacher's server.go.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/ai"
	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/distribution"
	"github.com/aristath/arbitrage-platform/internal/enhancement"
	"github.com/aristath/arbitrage-platform/internal/fundmonitor"
	"github.com/aristath/arbitrage-platform/internal/infra"
	"github.com/aristath/arbitrage-platform/internal/ingestion"
	"github.com/aristath/arbitrage-platform/internal/migration"
	"github.com/aristath/arbitrage-platform/internal/modules/settings"
	"github.com/aristath/arbitrage-platform/internal/repository"
)

// NotificationHub is the connection registry the WebSocket upgrade
// endpoint feeds; the distribution engine's NotificationSender
// implementation behind it is responsible for actual delivery.
type NotificationHub interface {
	Register(chatID string, conn *websocket.Conn)
	Unregister(chatID string, conn *websocket.Conn)
}

// Config holds the dependencies the HTTP surface needs to serve
// operator requests.
type Config struct {
	Log          zerolog.Logger
	Port         int
	DevMode      bool
	Infra        *infra.Coordinator
	Settings     *settings.Service
	Distribution *distribution.Engine
	Migration    *migration.Manager
	FundMonitor  *fundmonitor.Monitor
	Ingestion    *ingestion.Manager
	Enhancer     *enhancement.Enhancer
	Hub          NotificationHub
	AICoordinator     *ai.Coordinator
	AIInteractionRepo *repository.AIInteractionRepository
}

// Server is the platform's operator-facing HTTP surface.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	infraCoord   *infra.Coordinator
	settingsH    *settings.Handler
	distribution *distribution.Engine
	migration    *migration.Manager
	fundMonitor  *fundmonitor.Monitor
	ingestion    *ingestion.Manager
	enhancer     *enhancement.Enhancer
	hub          NotificationHub
	upgrader     websocket.Upgrader
	aiCoordinator     *ai.Coordinator
	aiInteractionRepo *repository.AIInteractionRepository
}

// New builds and wires the HTTP server, but does not start listening.
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		infraCoord:   cfg.Infra,
		settingsH:    settings.NewHandler(cfg.Settings, cfg.Log),
		distribution: cfg.Distribution,
		migration:    cfg.Migration,
		fundMonitor:  cfg.FundMonitor,
		ingestion:    cfg.Ingestion,
		enhancer:     cfg.Enhancer,
		hub:          cfg.Hub,
		upgrader:     websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		aiCoordinator:     cfg.AICoordinator,
		aiInteractionRepo: cfg.AIInteractionRepo,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ws/{chatID}", s.handleWebSocket)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.settingsH.HandleGetAll)
			r.Put("/{key}", s.settingsH.HandleUpdate)
		})

		r.Route("/distribution", func(r chi.Router) {
			r.Post("/opportunities", s.handleDistributeOpportunity)
		})

		r.Route("/enhancement", func(r chi.Router) {
			r.Post("/opportunities", s.handleEnhanceOpportunities)
		})

		r.Route("/interactions", func(r chi.Router) {
			r.Post("/", s.handleRecordInteraction)
			r.Get("/{userID}", s.handleListInteractions)
		})

		r.Route("/migrations", func(r chi.Router) {
			r.Post("/", s.handleCreateRollout)
			r.Get("/{id}", s.handleGetRollout)
			r.Post("/{id}/start", s.handleStartRollout)
			r.Post("/{id}/progress", s.handleProgressRollout)
			r.Post("/{id}/rollback", s.handleRollbackRollout)
			r.Post("/{id}/metrics", s.handleUpdateRolloutMetrics)
		})

		r.Route("/funds", func(r chi.Router) {
			r.Get("/{userID}/{venue}", s.handleGetFundSnapshot)
		})

		r.Route("/ingestion", func(r chi.Router) {
			r.Get("/metrics", s.handleIngestionMetrics)
			r.Post("/flush", s.handleIngestionFlush)
		})

		r.Route("/infra", func(r chi.Router) {
			r.Post("/services/{name}/restart", s.handleRestartService)
		})
	})
}

// loggingMiddleware logs every HTTP request at info level, mirroring
// the teacher's request-logging convention.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError writes the shared {error:{kind,message}} envelope and
// maps the classified apperr.Kind to an HTTP status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.ValidationError, apperr.ConfigError:
		status = http.StatusBadRequest
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.ServiceUnavailable, apperr.CircuitBreakerOpen:
		status = http.StatusServiceUnavailable
	case apperr.RateLimitExceeded:
		status = http.StatusTooManyRequests
	case apperr.Timeout:
		status = http.StatusGatewayTimeout
	}

	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"kind":    string(kind),
			"message": err.Error(),
		},
	})
}
