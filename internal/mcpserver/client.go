package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the Solsentry API.
type Config struct {
	APIURL    string // Base URL, e.g. "http://localhost:8080"
	SecretRef string // Optional secret reference forwarded with analyze calls
}

// APIClient is a pure HTTP client for the Solsentry API.
type APIClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewAPIClient creates a new client for the Solsentry API.
func NewAPIClient(cfg Config) *APIClient {
	return &APIClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *APIClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// Analyze submits a transaction analysis context for assessment.
func (c *APIClient) Analyze(ctx context.Context, wallet, signature string, analysisCtx map[string]any) (json.RawMessage, error) {
	body := map[string]any{
		"wallet":  wallet,
		"context": analysisCtx,
	}
	if signature != "" {
		body["signature"] = signature
	}
	if c.cfg.SecretRef != "" {
		body["secretRef"] = c.cfg.SecretRef
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/analyze", nil, body)
}

// ListRules returns the configured custom rules.
func (c *APIClient) ListRules(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/rules", nil, nil)
}

// AddRule creates or replaces a custom rule from its declarative spec.
func (c *APIClient) AddRule(ctx context.Context, spec map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/rules", nil, spec)
}

// RemoveRule deletes a custom rule by name.
func (c *APIClient) RemoveRule(ctx context.Context, name string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodDelete, "/v1/rules/"+url.PathEscape(name), nil, nil)
}

// RecentAssessments returns the assessment history for a wallet.
func (c *APIClient) RecentAssessments(ctx context.Context, wallet string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/assessments/"+url.PathEscape(wallet), q, nil)
}
