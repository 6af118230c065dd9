package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"campus-market/internal/middleware"
	"campus-market/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthApp(t *testing.T) (*fiber.App, *Handlers) {
	rdb, _ := testutil.NewRedis(t)
	h := &Handlers{Rdb: rdb, HealthAdminKey: "test-admin-key"}
	app := fiber.New()
	app.Get("/health/json", h.JSON)
	app.Get("/health/reset", h.Reset)
	app.Get("/health/errors", h.Errors)
	return app, h
}

func TestJSON(t *testing.T) {
	app, _ := healthApp(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "campus-market-api", out["service"])
	assert.Equal(t, "issue", out["status"])
	deps := out["dependencies"].(map[string]interface{})
	assert.Equal(t, "connected", deps["redis"].(map[string]interface{})["status"])
}

func TestReset(t *testing.T) {
	app, h := healthApp(t)
	ctx := context.Background()
	require.NoError(t, h.Rdb.Set(ctx, middleware.KeyReqTotal, "7", 0).Err())

	resp, err := app.Test(httptest.NewRequest("GET", "/health/reset?key=wrong", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/health/reset?key=test-admin-key", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	n, err := h.Rdb.Exists(ctx, middleware.KeyReqTotal).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestErrors(t *testing.T) {
	app, h := healthApp(t)
	require.NoError(t, h.Rdb.LPush(context.Background(), middleware.KeyErrorLog, `{"status":500,"path":"/x"}`).Err())

	resp, err := app.Test(httptest.NewRequest("GET", "/health/errors?key=test-admin-key", nil))
	require.NoError(t, err)
	var out []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, "/x", out[0]["path"])
}
