// Package apiclient is the HTTP client for the TaskPilot API. It satisfies
// the recon engine's TaskStore and Generator interfaces so the same
// reconciliation logic runs against a live server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taskpilot/api/internal/recon"
)

// APIError carries the structured error payload the server returns.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken attaches the bearer token sent on every subsequent request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Credentials is the token pair returned by sign-in and refresh.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// SignIn authenticates with email and password and stores the access token
// on the client.
func (c *Client) SignIn(ctx context.Context, email, password string) (Credentials, error) {
	var creds Credentials
	err := c.do(ctx, http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	}, &creds)
	if err != nil {
		return Credentials{}, err
	}
	c.token = creds.AccessToken
	return creds, nil
}

// Refresh rotates the refresh token and stores the new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	var creds Credentials
	err := c.do(ctx, http.MethodPost, "/api/session/refresh", map[string]string{
		"refreshToken": refreshToken,
	}, &creds)
	if err != nil {
		return Credentials{}, err
	}
	c.token = creds.AccessToken
	return creds, nil
}

// SessionInfo describes the identity behind the current token.
type SessionInfo struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId"`
	UserName      string `json:"userName"`
	Email         string `json:"email"`
}

func (c *Client) Session(ctx context.Context) (SessionInfo, error) {
	var info SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &info); err != nil {
		return SessionInfo{}, err
	}
	return info, nil
}

// List implements recon.TaskStore. The server scopes tasks to the token's
// user; userID is accepted for interface compatibility only.
func (c *Client) List(ctx context.Context, userID string) ([]recon.Task, error) {
	var payload struct {
		Tasks []recon.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Tasks, nil
}

// Create implements recon.TaskStore.
func (c *Client) Create(ctx context.Context, title, userID, topic string, completed bool) (recon.Task, error) {
	var payload struct {
		Task recon.Task `json:"task"`
	}
	err := c.do(ctx, http.MethodPost, "/api/tasks", map[string]string{
		"title": title,
		"topic": topic,
	}, &payload)
	if err != nil {
		return recon.Task{}, err
	}
	return payload.Task, nil
}

// Patch implements recon.TaskStore.
func (c *Client) Patch(ctx context.Context, id int64, patch recon.TaskPatch) (recon.Task, error) {
	body := make(map[string]any, 3)
	if patch.Title != nil {
		body["title"] = *patch.Title
	}
	if patch.Topic != nil {
		body["topic"] = *patch.Topic
	}
	if patch.Completed != nil {
		body["completed"] = *patch.Completed
	}

	var payload struct {
		Task recon.Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/tasks/%d", id), body, &payload); err != nil {
		return recon.Task{}, err
	}
	return payload.Task, nil
}

// Delete implements recon.TaskStore.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", id), nil, nil)
}

// Generate implements recon.Generator by asking the server for suggestions.
func (c *Client) Generate(ctx context.Context, topic string) ([]string, error) {
	var payload struct {
		Suggestions []string `json:"suggestions"`
	}
	err := c.do(ctx, http.MethodPost, "/api/suggestions", map[string]string{
		"topic": topic,
	}, &payload)
	if err != nil {
		return nil, err
	}
	return payload.Suggestions, nil
}

// Stats fetches the server-side completion summary.
func (c *Client) Stats(ctx context.Context) (recon.Stats, error) {
	var stats recon.Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &stats); err != nil {
		return recon.Stats{}, err
	}
	return stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Code: "SERVER_ERROR"}
		var payload struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Code != "" {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if target != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, target); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
