package monitor

import (
	"strconv"
	"time"

	"github.com/biodoia/gocareerflow/pkg/models"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// handleHealth endpoint di health check
func (s *Server) handleHealth(c fiber.Ctx) error {
	status := s.gateway.Health()

	return c.JSON(fiber.Map{
		"status":    "healthy",
		"mode":      status.Mode,
		"providers": len(status.Providers),
		"timestamp": time.Now().Unix(),
		"version":   "1.0.0",
	})
}

// handleReady endpoint di readiness check
func (s *Server) handleReady(c fiber.Ctx) error {
	if s.db != nil {
		sqlDB, err := s.db.DB.DB()
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"ready": false,
				"error": "database connection failed",
			})
		}

		if err := sqlDB.Ping(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"ready": false,
				"error": "database ping failed",
			})
		}
	}

	return c.JSON(fiber.Map{
		"ready":     true,
		"timestamp": time.Now().Unix(),
	})
}

// handleProviders lista i provider registrati con disponibilità e utilizzi
func (s *Server) handleProviders(c fiber.Ctx) error {
	status := s.gateway.Health()

	return c.JSON(fiber.Map{
		"mode":      status.Mode,
		"providers": status.Providers,
	})
}

// handleStats restituisce le statistiche aggregate per provider
func (s *Server) handleStats(c fiber.Ctx) error {
	resp := fiber.Map{
		"providers": s.collector.GetAllMetrics(),
	}

	if status := s.gateway.Health(); status.CacheStats != nil {
		resp["cache"] = status.CacheStats
	}

	if s.db != nil {
		completed, err := s.db.CountRunsByStatus(models.WorkflowStatusCompleted)
		if err == nil {
			degraded, _ := s.db.CountRunsByStatus(models.WorkflowStatusDegraded)
			resp["workflows"] = fiber.Map{
				"completed": completed,
				"degraded":  degraded,
			}
		}
	}

	return c.JSON(resp)
}

// handleRuns restituisce i run di workflow più recenti
func (s *Server) handleRuns(c fiber.Ctx) error {
	if s.db == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "persistence not configured",
		})
	}

	limit := queryLimit(c, 20)

	runs, err := s.db.GetRecentRuns(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load workflow runs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to retrieve workflow runs",
		})
	}

	return c.JSON(fiber.Map{
		"runs": runs,
	})
}

// handleLogs restituisce i log delle richieste più recenti
func (s *Server) handleLogs(c fiber.Ctx) error {
	if s.db == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "persistence not configured",
		})
	}

	limit := queryLimit(c, 50)

	logs, err := s.db.GetRecentLogs(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load request logs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to retrieve request logs",
		})
	}

	return c.JSON(fiber.Map{
		"logs": logs,
	})
}

// queryLimit legge il parametro limit con un default e un tetto massimo
func queryLimit(c fiber.Ctx, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return def
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}
