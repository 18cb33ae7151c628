package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
)

// Client is the API client for the compatibility service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// APIError is a non-200 reply from the service
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error: %d %s - %s", e.StatusCode, e.Code, e.Detail)
	}
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Detail)
}

// Analyze requests the compatibility report for two users, authenticating
// with the caller's GitHub token
func (c *Client) Analyze(ctx context.Context, token, username1, username2 string) (*domain.CompatibilityResult, error) {
	params := url.Values{}
	params.Set("username1", username1)
	params.Set("username2", username2)

	var result domain.CompatibilityResult
	if err := c.get(ctx, "/analyze-compatibility", params, token, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/health", nil, "", &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, token string, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func decodeError(status int, body []byte) error {
	var payload struct {
		Detail string `json:"detail"`
		Error  struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: status, Detail: strings.TrimSpace(string(body))}
	if json.Unmarshal(body, &payload) == nil && payload.Detail != "" {
		apiErr.Detail = payload.Detail
		apiErr.Code = payload.Error.Code
	}
	return apiErr
}
