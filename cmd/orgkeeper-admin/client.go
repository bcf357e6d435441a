// ABOUTME: HTTP client for the orgkeeper organization API
// ABOUTME: Decodes the success/message/data envelope and surfaces server messages as errors

package main

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

	"github.com/2389/orgkeeper/internal/api"
)

// apiError carries the server's status and message.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends body as JSON and returns the status and raw response body.
func (c *apiClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// call performs a request against an enveloped endpoint and decodes data into out.
func (c *apiClient) call(ctx context.Context, method, path string, body, out any) (string, error) {
	status, raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return "", err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", &apiError{Status: status, Message: strings.TrimSpace(string(raw))}
	}
	if status >= 400 || !env.Success {
		return "", &apiError{Status: status, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("decoding response: %w", err)
		}
	}
	return env.Message, nil
}

func orgPath(action, name string) string {
	return "/org/" + action + "/" + url.PathEscape(name)
}

func (c *apiClient) Create(ctx context.Context, req api.CreateOrgRequest) (*api.OrgResponse, error) {
	var out api.OrgResponse
	if _, err := c.call(ctx, http.MethodPost, "/org/create", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Get(ctx context.Context, name string) (*api.OrgResponse, error) {
	var out api.OrgResponse
	if _, err := c.call(ctx, http.MethodGet, orgPath("get", name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Update(ctx context.Context, name string, req api.UpdateOrgRequest) (*api.UpdateOrgResponse, error) {
	var out api.UpdateOrgResponse
	if _, err := c.call(ctx, http.MethodPut, orgPath("update", name), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Delete(ctx context.Context, name string) (*api.DeleteOrgResponse, error) {
	var out api.DeleteOrgResponse
	if _, err := c.call(ctx, http.MethodDelete, orgPath("delete", name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login is not enveloped: the token sits at the top level of the body.
func (c *apiClient) Login(ctx context.Context, email, password string) (*api.LoginResponse, error) {
	status, raw, err := c.do(ctx, http.MethodPost, "/admin/login", api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	var out api.LoginResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &apiError{Status: status, Message: strings.TrimSpace(string(raw))}
	}
	if status >= 400 || !out.Success {
		return nil, &apiError{Status: status, Message: out.Message}
	}
	return &out, nil
}

// Health checks liveness then readiness.
func (c *apiClient) Health(ctx context.Context) error {
	for _, path := range []string{"/health", "/health/ready"} {
		status, raw, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			var env envelope
			_ = json.Unmarshal(raw, &env)
			return &apiError{Status: status, Message: env.Message}
		}
	}
	return nil
}
