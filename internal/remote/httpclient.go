package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stridehq/stride/internal/types"
)

// HTTPClient talks JSON over HTTP to the remote system of record.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// HTTPConfig holds transport configuration.
type HTTPConfig struct {
	// BaseURL of the remote API, without trailing slash.
	BaseURL string

	// Token is the bearer token for authentication.
	Token string

	// Timeout is the per-request transport timeout (default: 15s).
	Timeout time.Duration
}

// NewHTTPClient creates a client for the remote API.
func NewHTTPClient(config HTTPConfig) (*HTTPClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		token:   config.Token,
		http:    &http.Client{Timeout: config.Timeout},
	}, nil
}

// Query implements Client.Query.
func (c *HTTPClient) Query(ctx context.Context, domain types.Domain, f Filter) ([]Record, error) {
	body := map[string]interface{}{}
	if f.EditedSince != nil {
		body["edited_since"] = f.EditedSince.UTC().Format(time.RFC3339Nano)
	}

	var resp struct {
		Records []struct {
			ID             string                 `json:"id"`
			LastEditedTime string                 `json:"last_edited_time"`
			Fields         map[string]interface{} `json:"fields"`
		} `json:"records"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/%ss/query", domain), body, "", &resp); err != nil {
		return nil, fmt.Errorf("failed to query %ss: %w", domain, err)
	}

	records := make([]Record, 0, len(resp.Records))
	for _, r := range resp.Records {
		edited, err := time.Parse(time.RFC3339Nano, r.LastEditedTime)
		if err != nil {
			return nil, fmt.Errorf("invalid last_edited_time %q for %s %s: %w", r.LastEditedTime, domain, r.ID, err)
		}
		records = append(records, Record{
			ID:           r.ID,
			LastEditedAt: edited,
			Fields:       r.Fields,
		})
	}
	return records, nil
}

// Create implements Client.Create. Each create carries a fresh
// Idempotency-Key so a retried request cannot mint a second remote record.
func (c *HTTPClient) Create(ctx context.Context, domain types.Domain, fields map[string]interface{}) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	idempotencyKey := uuid.NewString()
	body := map[string]interface{}{"fields": fields}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/%ss", domain), body, idempotencyKey, &resp); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", domain, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("remote create returned empty id for %s", domain)
	}
	return resp.ID, nil
}

// Update implements Client.Update.
func (c *HTTPClient) Update(ctx context.Context, remoteID string, fields map[string]interface{}) error {
	body := map[string]interface{}{"fields": fields}
	if err := c.do(ctx, http.MethodPatch, "/v1/records/"+remoteID, body, "", nil); err != nil {
		return fmt.Errorf("failed to update record %s: %w", remoteID, err)
	}
	return nil
}

// do issues one JSON request and decodes the response into out (if non-nil).
func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, idempotencyKey string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
