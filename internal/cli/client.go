package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/stride/internal/domain/model"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 4 << 10

// Client talks to the stride HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

// PostEvent submits one raw event.
func (c *Client) PostEvent(ctx context.Context, raw model.RawEvent) (model.IngestResult, error) {
	var res model.IngestResult
	body, err := json.Marshal(raw)
	if err != nil {
		return res, fmt.Errorf("failed to marshal event: %w", err)
	}
	err = c.do(ctx, http.MethodPost, "/events", bytes.NewReader(body), &res)
	return res, err
}

// ConsistencyScore fetches the score for userID.
func (c *Client) ConsistencyScore(ctx context.Context, userID string) (model.ConsistencyScoreResult, error) {
	var res model.ConsistencyScoreResult
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/consistency", nil, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(apiErr)
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
