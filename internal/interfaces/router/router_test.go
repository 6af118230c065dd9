package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"campus-market/internal/config"
	"campus-market/internal/middleware"
	"campus-market/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)
	cfg := &config.Config{
		Env:                 "test",
		RealtimeSecret:      "router-secret",
		ListingImagesBucket: "listing-images",
		MessageImagesBucket: "message-images",
	}
	srv := Build(cfg, db, rdb, testutil.NewMemoryStore())
	t.Cleanup(srv.Gateway.Shutdown)
	return srv
}

func request(method, path string, body interface{}, cookie *http.Cookie) *http.Request {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func signUp(t *testing.T, app *fiber.App, email string) *http.Cookie {
	t.Helper()
	resp, err := app.Test(request("POST", "/api/v1/auth/sign-up", map[string]string{
		"email":      email,
		"password":   "secret123",
		"first_name": "Ana",
		"last_name":  "Pop",
	}, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRoutes_PublicAndProtected(t *testing.T) {
	srv := setupServer(t)

	resp, err := srv.App.Test(request("GET", "/api/v1/listings", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-Id"))

	for _, path := range []string{
		"/api/v1/conversations",
		"/api/v1/listings/mine",
		"/api/v1/preferences/favorites",
		"/api/v1/realtime/ticket",
	} {
		resp, err := srv.App.Test(request("GET", path, nil, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestRoutes_ListingLifecycle(t *testing.T) {
	srv := setupServer(t)
	cookie := signUp(t, srv.App, "ana@campus.test")

	resp, err := srv.App.Test(request("POST", "/api/v1/listings", map[string]interface{}{
		"title":    "Calculus I notes",
		"category": "books",
		"price":    12.5,
	}, cookie))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decode(t, resp)["data"].(map[string]interface{})
	id := created["id"].(string)

	resp, err = srv.App.Test(request("GET", "/api/v1/listings/mine", nil, cookie))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, decode(t, resp)["data"], 1)

	resp, err = srv.App.Test(request("GET", "/api/v1/listings/"+id, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	other := signUp(t, srv.App, "bob@campus.test")
	resp, err = srv.App.Test(request("DELETE", "/api/v1/listings/"+id, nil, other))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = srv.App.Test(request("POST", "/api/v1/conversations", map[string]string{"listing_id": id}, cookie))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = srv.App.Test(request("DELETE", "/api/v1/listings/"+id, nil, cookie))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = srv.App.Test(request("POST", "/api/v1/conversations", map[string]string{"listing_id": id}, other))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRoutes_HealthReportsRealtime(t *testing.T) {
	srv := setupServer(t)

	resp, err := srv.App.Test(request("GET", "/health/json", nil, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	ts := httptest.NewServer(srv.RealtimeServer(":0").Handler)
	defer ts.Close()
	rt, err := http.Get(ts.URL + "/realtime/health")
	require.NoError(t, err)
	defer rt.Body.Close()
	assert.Equal(t, http.StatusOK, rt.StatusCode)
}
