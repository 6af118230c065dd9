package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseClient is an ObjectStore backed by the Supabase storage HTTP API.
type SupabaseClient struct {
	BaseURL   string
	SecretKey string
	Client    *http.Client
}

type signedUploadResponse struct {
	SignedURL      string `json:"signedUrl"`
	SignedURLSnake string `json:"signed_url"`
	URL            string `json:"url"` // relative path returned by upload/sign API
}

func (c *SupabaseClient) httpClient() *http.Client {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return c.Client
}

func (c *SupabaseClient) base() (string, error) {
	if c.BaseURL == "" {
		return "", fmt.Errorf("supabase: SUPABASE_URL is not set")
	}
	if c.SecretKey == "" {
		return "", fmt.Errorf("supabase: SUPABASE_SECRET_KEY is not set")
	}
	return strings.TrimRight(c.BaseURL, "/"), nil
}

// do sends an authenticated request and returns the body of a 2xx response.
func (c *SupabaseClient) do(req *http.Request) ([]byte, error) {
	// apikey and Bearer carry the same service key.
	req.Header.Set("apikey", c.SecretKey)
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s := string(body)
		if (resp.StatusCode == 400 || resp.StatusCode == 403) &&
			(strings.Contains(s, "Invalid Compact JWS") || strings.Contains(s, "Unauthorized")) {
			return nil, fmt.Errorf("supabase storage requires the service_role key, not the anon key (raw body: %s)", s)
		}
		return nil, fmt.Errorf("supabase error: status %d body: %s", resp.StatusCode, s)
	}
	return body, nil
}

func (c *SupabaseClient) Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	base, err := c.base()
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", base, bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	if size > 0 {
		req.ContentLength = size
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")
	_, err = c.do(req)
	return err
}

func (c *SupabaseClient) Remove(ctx context.Context, bucket string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	base, err := c.base()
	if err != nil {
		return err
	}
	payload, _ := json.Marshal(map[string]interface{}{"prefixes": keys})
	url := fmt.Sprintf("%s/storage/v1/object/%s", base, bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}

func (c *SupabaseClient) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", strings.TrimRight(c.BaseURL, "/"), bucket, key)
}

func (c *SupabaseClient) CreateSignedUploadURL(ctx context.Context, bucket, key string) (string, error) {
	base, err := c.base()
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/storage/v1/object/upload/sign/%s/%s", base, bucket, key)
	payload, _ := json.Marshal(map[string]interface{}{
		"expiresIn": 3600,
		"upsert":    false,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var data signedUploadResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("supabase response decode: %w", err)
	}
	switch {
	case data.SignedURL != "":
		return data.SignedURL, nil
	case data.SignedURLSnake != "":
		return data.SignedURLSnake, nil
	case data.URL != "":
		u := data.URL
		if u[0] != '/' {
			u = "/" + u
		}
		return base + "/storage/v1" + u, nil
	}
	return "", fmt.Errorf("supabase returned no signed URL, body: %s", string(body))
}
