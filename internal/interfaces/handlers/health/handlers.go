package health

import (
	healthsvc "campus-market/internal/application/health"
	"campus-market/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const errorLogLimit = 50

// Handlers holds dependencies for health endpoints.
type Handlers struct {
	Rdb            *redis.Client
	DB             healthsvc.DBPinger
	Conns          healthsvc.ConnCounter
	HealthAdminKey string
}

// JSON GET /health/json
func (h *Handlers) JSON(c *fiber.Ctx) error {
	result := healthsvc.CollectHealth(c.Context(), h.Rdb, h.DB, h.Conns)
	return c.JSON(fiber.Map{
		"service":      "campus-market-api",
		"status":       result.Status,
		"runtime":      result.Runtime,
		"traffic":      result.Traffic,
		"dependencies": result.Dependencies,
		"realtime":     result.Realtime,
	})
}

// Reset GET /health/reset?key=HEALTH_ADMIN_KEY
func (h *Handlers) Reset(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" || key != h.HealthAdminKey {
		return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
	}
	if err := healthsvc.ResetStats(c.Context(), h.Rdb); err != nil {
		log.Error().Err(err).Msg("health: reset failed")
		return response.Internal(c)
	}
	return response.Success(c, "Stats reset successfully", fiber.Map{"success": true}, nil)
}

// Errors GET /health/errors?key=HEALTH_ADMIN_KEY returns the latest 5xx entries.
func (h *Handlers) Errors(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" || key != h.HealthAdminKey {
		return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
	}
	entries, err := healthsvc.RecentErrors(c.Context(), h.Rdb, errorLogLimit)
	if err != nil {
		log.Error().Err(err).Msg("health: error log read failed")
		return response.Internal(c)
	}
	return c.JSON(entries)
}
