package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method, path, apikey, auth, contentType, upsert string
	body                                            []byte
}

func newSupabase(t *testing.T, status int, respBody string) (*SupabaseClient, *recorded) {
	t.Helper()
	rec := &recorded{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.apikey = r.Header.Get("apikey")
		rec.auth = r.Header.Get("Authorization")
		rec.contentType = r.Header.Get("Content-Type")
		rec.upsert = r.Header.Get("x-upsert")
		rec.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(ts.Close)
	return &SupabaseClient{BaseURL: ts.URL + "/", SecretKey: "service-key"}, rec
}

func TestSupabase_Upload(t *testing.T) {
	c, rec := newSupabase(t, http.StatusOK, `{}`)
	err := c.Upload(context.Background(), "listing-images", "l1/0.jpg", strings.NewReader("jpeg"), 4, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/storage/v1/object/listing-images/l1/0.jpg", rec.path)
	assert.Equal(t, "service-key", rec.apikey)
	assert.Equal(t, "Bearer service-key", rec.auth)
	assert.Equal(t, "image/jpeg", rec.contentType)
	assert.Equal(t, "false", rec.upsert)
	assert.Equal(t, "jpeg", string(rec.body))
}

func TestSupabase_UploadDefaultsContentType(t *testing.T) {
	c, rec := newSupabase(t, http.StatusOK, `{}`)
	require.NoError(t, c.Upload(context.Background(), "b", "k", strings.NewReader("x"), 0, ""))
	assert.Equal(t, "application/octet-stream", rec.contentType)
}

func TestSupabase_Remove(t *testing.T) {
	c, rec := newSupabase(t, http.StatusOK, `[]`)
	require.NoError(t, c.Remove(context.Background(), "listing-images", "a.jpg", "b.png"))

	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/storage/v1/object/listing-images", rec.path)
	assert.Equal(t, "application/json", rec.contentType)
	var payload struct {
		Prefixes []string `json:"prefixes"`
	}
	require.NoError(t, json.Unmarshal(rec.body, &payload))
	assert.Equal(t, []string{"a.jpg", "b.png"}, payload.Prefixes)
}

func TestSupabase_RemoveNothingSkipsRequest(t *testing.T) {
	c, rec := newSupabase(t, http.StatusOK, `[]`)
	require.NoError(t, c.Remove(context.Background(), "listing-images"))
	assert.Empty(t, rec.method)
}

func TestSupabase_CreateSignedUploadURL(t *testing.T) {
	cases := []struct {
		name string
		resp string
		want string
	}{
		{"camel", `{"signedUrl":"https://cdn.test/signed?token=1"}`, "https://cdn.test/signed?token=1"},
		{"snake", `{"signed_url":"https://cdn.test/signed?token=2"}`, "https://cdn.test/signed?token=2"},
		{"relative", `{"url":"object/upload/sign/message-images/m.png?token=3"}`, "/storage/v1/object/upload/sign/message-images/m.png?token=3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newSupabase(t, http.StatusOK, tc.resp)
			got, err := c.CreateSignedUploadURL(context.Background(), "message-images", "m.png")
			require.NoError(t, err)

			assert.Equal(t, http.MethodPost, rec.method)
			assert.Equal(t, "/storage/v1/object/upload/sign/message-images/m.png", rec.path)
			assert.Equal(t, "Bearer service-key", rec.auth)
			if tc.name == "relative" {
				assert.Equal(t, strings.TrimRight(c.BaseURL, "/")+tc.want, got)
			} else {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestSupabase_CreateSignedUploadURLWithoutURL(t *testing.T) {
	c, _ := newSupabase(t, http.StatusOK, `{}`)
	_, err := c.CreateSignedUploadURL(context.Background(), "b", "k")
	assert.ErrorContains(t, err, "no signed URL")
}

func TestSupabase_ErrorStatuses(t *testing.T) {
	c, _ := newSupabase(t, http.StatusInternalServerError, `boom`)
	err := c.Upload(context.Background(), "b", "k", strings.NewReader("x"), 1, "")
	assert.ErrorContains(t, err, "status 500")

	c, _ = newSupabase(t, http.StatusForbidden, `{"message":"Invalid Compact JWS"}`)
	err = c.Remove(context.Background(), "b", "k")
	assert.ErrorContains(t, err, "service_role")

	c, _ = newSupabase(t, http.StatusNotFound, `{"error":"Bucket not found"}`)
	_, err = c.CreateSignedUploadURL(context.Background(), "b", "k")
	assert.ErrorContains(t, err, "status 404")
}

func TestSupabase_RequiresCredentials(t *testing.T) {
	c := &SupabaseClient{BaseURL: "http://localhost"}
	assert.Error(t, c.Upload(context.Background(), "b", "k", strings.NewReader("x"), 1, ""))
	assert.Equal(t, "https://proj.supabase.co/storage/v1/object/public/b/k",
		(&SupabaseClient{BaseURL: "https://proj.supabase.co/"}).PublicURL("b", "k"))
}
