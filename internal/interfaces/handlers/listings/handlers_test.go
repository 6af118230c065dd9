package listings

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	listsvc "campus-market/internal/application/listings"
	"campus-market/internal/domain"
	"campus-market/internal/middleware"
	"campus-market/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type listingsEnv struct {
	db    *gorm.DB
	store *testutil.MemoryStore
	owner domain.Profile
	h     *Handlers
}

func setupListings(t *testing.T) listingsEnv {
	t.Helper()
	db := testutil.NewDB(t)
	store := testutil.NewMemoryStore()
	return listingsEnv{
		db:    db,
		store: store,
		owner: testutil.CreateProfile(t, db, "Ana", "Pop"),
		h:     &Handlers{Service: &listsvc.Service{DB: db, Store: store, Bucket: "listing-images"}},
	}
}

// app mounts the listings routes as caller; uuid.Nil mounts them anonymously.
func (e listingsEnv) app(caller uuid.UUID) *fiber.App {
	app := fiber.New()
	if caller != uuid.Nil {
		app.Use(middleware.WithUser(&middleware.SessionUser{UserID: caller}))
	}
	app.Get("/listings", e.h.GetListings)
	app.Get("/listings/mine", e.h.GetMine)
	app.Get("/listings/:id", e.h.GetListing)
	app.Post("/listings", e.h.CreateListing)
	app.Patch("/listings/:id", e.h.UpdateListing)
	app.Delete("/listings/:id", e.h.DeleteListing)
	return app
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, images ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, name := range images {
		part, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("image-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestGetListings_FiltersAndMetadata(t *testing.T) {
	e := setupListings(t)
	testutil.CreateListing(t, e.db, e.owner.ID, func(l *domain.Listing) { l.Title = "Cheap"; l.Price = 5 })
	testutil.CreateListing(t, e.db, e.owner.ID, func(l *domain.Listing) { l.Title = "Pricey"; l.Price = 50 })

	resp, err := e.app(uuid.Nil).Test(httptest.NewRequest("GET", "/listings?min_price=10&sort=price&order=asc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := decode(t, resp)
	data := out["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "Pricey", data[0].(map[string]interface{})["title"])
	assert.Equal(t, float64(1), out["metadata"].(map[string]interface{})["total"])
	profile := data[0].(map[string]interface{})["profile"].(map[string]interface{})
	assert.Equal(t, "Ana", profile["first_name"])
}

func TestGetListings_BadQuery(t *testing.T) {
	e := setupListings(t)
	for _, q := range []string{"min_price=abc", "limit=x", "user_id=nope", "sort=password"} {
		resp, err := e.app(uuid.Nil).Test(httptest.NewRequest("GET", "/listings?"+q, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestCreateListing_Multipart(t *testing.T) {
	e := setupListings(t)
	req := multipartRequest(t, "POST", "/listings", map[string]string{
		"title":            "Physics book",
		"category":         "books",
		"price":            "12.50",
		"contact_by_email": "true",
		"attributes":       `{"isbn":"978-0"}`,
	}, "front.jpg", "back.jpg")

	resp, err := e.app(e.owner.ID).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "Physics book", data["title"])
	assert.Equal(t, 12.5, data["price"])
	assert.Equal(t, true, data["contact_by_email"])
	assert.Equal(t, "978-0", data["attributes"].(map[string]interface{})["isbn"])
	assert.Len(t, data["images"], 2)
	assert.Len(t, e.store.Keys(), 2)
}

func TestCreateListing_RequiresAuthAndFields(t *testing.T) {
	e := setupListings(t)
	body, _ := json.Marshal(map[string]interface{}{"title": "x", "category": "y"})

	req := httptest.NewRequest("POST", "/listings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.app(uuid.Nil).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	body, _ = json.Marshal(map[string]interface{}{"category": "y"})
	req = httptest.NewRequest("POST", "/listings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = e.app(e.owner.ID).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Title is required", decode(t, resp)["error"].(map[string]interface{})["message"])
}

func TestUpdateListing_NotOwner(t *testing.T) {
	e := setupListings(t)
	l := testutil.CreateListing(t, e.db, e.owner.ID, nil)
	body, _ := json.Marshal(map[string]interface{}{"title": "Mine now"})

	req := httptest.NewRequest("PATCH", "/listings/"+l.ID.String(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.app(uuid.New()).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Not your listing", decode(t, resp)["error"].(map[string]interface{})["message"])
}

func TestUpdateListing_KeepImageIDs(t *testing.T) {
	e := setupListings(t)
	resp, err := e.app(e.owner.ID).Test(multipartRequest(t, "POST", "/listings",
		map[string]string{"title": "Desk", "category": "furniture"}, "a.jpg", "b.jpg"))
	require.NoError(t, err)
	created := decode(t, resp)["data"].(map[string]interface{})
	id := created["id"].(string)
	keep := created["images"].([]interface{})[1].(map[string]interface{})["id"].(string)

	resp, err = e.app(e.owner.ID).Test(multipartRequest(t, "PATCH", "/listings/"+id,
		map[string]string{"keep_image_ids": keep, "status": "inactive"}, "c.jpg"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "inactive", data["status"])
	images := data["images"].([]interface{})
	require.Len(t, images, 2)
	assert.Equal(t, keep, images[0].(map[string]interface{})["id"])
}

func TestDeleteListing(t *testing.T) {
	e := setupListings(t)
	l := testutil.CreateListing(t, e.db, e.owner.ID, nil)

	resp, err := e.app(uuid.New()).Test(httptest.NewRequest("DELETE", "/listings/"+l.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = e.app(e.owner.ID).Test(httptest.NewRequest("DELETE", "/listings/"+l.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = e.app(uuid.Nil).Test(httptest.NewRequest("GET", "/listings/"+l.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetMine(t *testing.T) {
	e := setupListings(t)
	testutil.CreateListing(t, e.db, e.owner.ID, func(l *domain.Listing) { l.Status = domain.ListingStatusInactive })

	resp, err := e.app(e.owner.ID).Test(httptest.NewRequest("GET", "/listings/mine", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, decode(t, resp)["data"], 1)
}
