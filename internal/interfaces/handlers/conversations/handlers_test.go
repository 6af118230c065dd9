package conversations

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	convsvc "campus-market/internal/application/conversations"
	"campus-market/internal/application/profiles"
	"campus-market/internal/domain"
	"campus-market/internal/infrastructure/realtime"
	"campus-market/internal/middleware"
	"campus-market/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	h       *Handlers
	seller  domain.Profile
	buyer   domain.Profile
	listing domain.Listing
}

func setup(t *testing.T) env {
	t.Helper()
	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)
	seller := testutil.CreateProfile(t, db, "Sam", "Seller")
	buyer := testutil.CreateProfile(t, db, "Bea", "Buyer")
	return env{
		h: &Handlers{Service: &convsvc.Service{
			DB:       db,
			Profiles: &profiles.Service{DB: db},
			Store:    testutil.NewMemoryStore(),
			Bucket:   "message-images",
			Broker:   &realtime.RedisBroker{Rdb: rdb},
		}},
		seller:  seller,
		buyer:   buyer,
		listing: testutil.CreateListing(t, db, seller.ID, nil),
	}
}

func (e env) app(caller uuid.UUID) *fiber.App {
	app := fiber.New()
	app.Use(middleware.WithUser(&middleware.SessionUser{UserID: caller}))
	app.Post("/conversations", e.h.Create)
	app.Get("/conversations", e.h.List)
	app.Get("/conversations/:id", e.h.Get)
	app.Post("/conversations/:id/messages", e.h.SendMessage)
	return app
}

func jsonReq(method, path string, body interface{}) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e env) open(t *testing.T) string {
	t.Helper()
	resp, err := e.app(e.buyer.ID).Test(jsonReq("POST", "/conversations", map[string]string{"listing_id": e.listing.ID.String()}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return decode(t, resp)["data"].(map[string]interface{})["id"].(string)
}

func TestCreate_OwnListingRejected(t *testing.T) {
	e := setup(t)
	resp, err := e.app(e.seller.ID).Test(jsonReq("POST", "/conversations", map[string]string{"listing_id": e.listing.ID.String()}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Cannot message your own listing", decode(t, resp)["error"].(map[string]interface{})["message"])
}

func TestConversationFlow(t *testing.T) {
	e := setup(t)
	id := e.open(t)

	resp, err := e.app(e.buyer.ID).Test(httptest.NewRequest("GET", "/conversations", nil))
	require.NoError(t, err)
	assert.Empty(t, decode(t, resp)["data"])

	resp, err = e.app(e.buyer.ID).Test(jsonReq("POST", "/conversations/"+id+"/messages", map[string]string{"content": "  "}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = e.app(e.buyer.ID).Test(jsonReq("POST", "/conversations/"+id+"/messages", map[string]string{"content": "Hello"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	msg := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, true, msg["is_from_current_user"])

	resp, err = e.app(e.seller.ID).Test(httptest.NewRequest("GET", "/conversations", nil))
	require.NoError(t, err)
	inbox := decode(t, resp)["data"].([]interface{})
	require.Len(t, inbox, 1)
	assert.Equal(t, "active", inbox[0].(map[string]interface{})["state"])

	resp, err = e.app(e.seller.ID).Test(httptest.NewRequest("GET", "/conversations/"+id, nil))
	require.NoError(t, err)
	detail := decode(t, resp)["data"].(map[string]interface{})
	assert.Len(t, detail["messages"], 1)
}

func TestSendMessage_MultipartImage(t *testing.T) {
	e := setup(t)
	id := e.open(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "photo.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg"))
	require.NoError(t, w.Close())
	req := httptest.NewRequest("POST", "/conversations/"+id+"/messages", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := e.app(e.buyer.ID).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	msg := decode(t, resp)["data"].(map[string]interface{})
	assert.Nil(t, msg["content"])
	assert.NotEmpty(t, msg["image_url"])
}

func TestOutsiderForbidden(t *testing.T) {
	e := setup(t)
	id := e.open(t)

	resp, err := e.app(uuid.New()).Test(httptest.NewRequest("GET", "/conversations/"+id, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = e.app(uuid.New()).Test(jsonReq("POST", "/conversations/"+id+"/messages", map[string]string{"content": "hi"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
