package bootstrap

import (
	"campus-market/internal/config"
	"campus-market/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for serverless deployments (api/index.go imports this package, not internal).
// The realtime gateway needs a long-lived listener and is only served by cmd/api.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	srv, err := router.CreateApp(cfg)
	if err != nil {
		return nil, err
	}
	return srv.App, nil
}
