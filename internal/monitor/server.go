package monitor

import (
	"context"
	"fmt"

	"github.com/biodoia/gocareerflow/internal/gateway"
	"github.com/biodoia/gocareerflow/internal/stats"
	"github.com/biodoia/gocareerflow/pkg/config"
	"github.com/biodoia/gocareerflow/pkg/database"
	"github.com/biodoia/gocareerflow/pkg/middleware"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// Server espone lo stato del gateway e dei workflow via HTTP
type Server struct {
	config    *config.Config
	db        *database.DB
	app       *fiber.App
	gateway   *gateway.Gateway
	collector *stats.Collector
}

// New crea un nuovo server di monitoring
func New(cfg *config.Config, db *database.DB, gw *gateway.Gateway, collector *stats.Collector) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "CareerFlow Monitor",
		ServerHeader: "CareerFlow/1.0",
		ErrorHandler: customErrorHandler,
	})

	s := &Server{
		config:    cfg,
		db:        db,
		app:       app,
		gateway:   gw,
		collector: collector,
	}

	s.setupMiddlewares()
	s.setupRoutes()

	return s
}

// customErrorHandler gestisce gli errori globali
func customErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":      message,
		"request_id": middleware.GetRequestID(c),
	})
}

// setupMiddlewares configura i middleware globali
func (s *Server) setupMiddlewares() {
	// Recovery per primo, per catturare tutti i panic
	s.app.Use(middleware.Recovery())

	s.app.Use(middleware.RequestID())

	s.app.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	s.app.Use(middleware.Logging(middleware.LoggingConfig{
		SkipPaths: []string{"/health", "/ready", "/metrics"},
	}))
}

// setupRoutes configura le route HTTP
func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/ready", s.handleReady)

	// Metrics (Prometheus)
	if s.config.Monitoring.Prometheus.Enabled {
		s.app.Get("/metrics", middleware.PrometheusHandler())
	}

	api := s.app.Group("/v1")
	api.Get("/providers", s.handleProviders)
	api.Get("/stats", s.handleStats)
	api.Get("/runs", s.handleRuns)
	api.Get("/logs", s.handleLogs)
}

// Start avvia il server di monitoring
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Monitoring.Server.Host, s.config.Monitoring.Server.Port)

	log.Info().Str("addr", addr).Msg("Monitor server starting")

	return s.app.Listen(addr)
}

// Shutdown esegue lo shutdown graceful del server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	log.Info().Msg("Monitor server shutdown completed")
	return nil
}
