package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biodoia/gocareerflow/internal/monitor"
	"github.com/biodoia/gocareerflow/internal/stats"
	"github.com/biodoia/gocareerflow/pkg/database"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	devMode     bool
	verbose     bool
	autoMigrate bool
)

// ServeCmd rappresenta il comando serve
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CareerFlow monitor server",
	Long: `Start the CareerFlow monitor server.

This command starts the HTTP server that exposes gateway health,
provider status, request statistics and Prometheus metrics.`,
	Example: `  # Start server with default settings
  careerflow serve

  # Start in development mode with verbose logging
  careerflow serve --dev --verbose

  # Start with custom config
  careerflow serve -c /path/to/config.yaml`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (pretty logging)")
	ServeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (debug level)")
	ServeCmd.Flags().BoolVar(&autoMigrate, "migrate", true, "Auto-run database migrations on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if verbose {
		setupLogger("debug", cfg.Monitoring.Logging.Format)
	}
	if devMode {
		setupLogger(cfg.Monitoring.Logging.Level, "console")
	}

	log.Info().Msg("Starting CareerFlow monitor")

	// Initialize database
	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	log.Info().
		Str("type", cfg.Database.Type).
		Str("connection", cfg.Database.Connection).
		Msg("Database connected")

	if autoMigrate {
		log.Info().Msg("Running database migrations...")
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("Database migrations completed")
	}

	// Build the gateway stack
	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}

	collector := stats.NewCollector(db, 0)
	collector.Start(30 * time.Second)
	defer collector.Stop()

	var exporter *stats.PrometheusExporter
	if cfg.Monitoring.Prometheus.Enabled {
		exporter = stats.NewPrometheusExporter(cfg.Monitoring.Prometheus.Namespace)
	}

	gw, err := buildGateway(cfg, registry, collector, exporter)
	if err != nil {
		return err
	}

	server := monitor.New(cfg, db, gw, collector)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Monitor server failed to start")
		}
	}()

	log.Info().Msgf("Monitor running on http://%s:%d", cfg.Monitoring.Server.Host, cfg.Monitoring.Server.Port)
	log.Info().Msgf("Health check: http://%s:%d/health", cfg.Monitoring.Server.Host, cfg.Monitoring.Server.Port)
	if cfg.Monitoring.Prometheus.Enabled {
		log.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Monitoring.Server.Host, cfg.Monitoring.Server.Port)
	}
	log.Info().Msg("Press Ctrl+C to stop")

	return waitForShutdown(server)
}

func waitForShutdown(server *monitor.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("CareerFlow monitor stopped cleanly")
	return nil
}
