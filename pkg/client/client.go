// Package client is the Go SDK for the fractal API. It wraps the HTTP
// surface and layers the two stateful views an application embeds: an
// auth context tracking the signed-in user and their active workspace,
// and a project context tracking one workspace's project list.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnauthorized is returned when the server rejects the credentials.
var ErrUnauthorized = errors.New("client: unauthorized")

// CredentialStore holds the token pair between calls. Implementations
// must be safe for concurrent use.
type CredentialStore interface {
	AccessToken() string
	SetTokens(accessToken, refreshToken string)
	Clear()
}

// MemoryStore is an in-process CredentialStore.
type MemoryStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func (s *MemoryStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// RefreshToken returns the stored refresh token.
func (s *MemoryStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *MemoryStore) SetTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = accessToken
	s.refresh = refreshToken
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API origin, e.g. "https://fractal.app".
	BaseURL string
	// Store holds credentials. Defaults to an in-memory store.
	Store CredentialStore
	// HTTPClient defaults to one with a 10s timeout.
	HTTPClient *http.Client
}

// Client is a low-level fractal API client.
type Client struct {
	baseURL string
	store   CredentialStore
	http    *http.Client
}

// New creates a new API client.
func New(cfg Config) *Client {
	store := cfg.Store
	if store == nil {
		store = &MemoryStore{}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: cfg.BaseURL,
		store:   store,
		http:    httpClient,
	}
}

// BaseURL returns the configured API origin.
func (c *Client) BaseURL() string { return c.baseURL }

// apiError is the server's error envelope.
type apiError struct {
	Error       string `json:"error"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// do executes a request and decodes the JSON response into out (when out
// is non-nil). A 401 maps to ErrUnauthorized so callers can distinguish
// expired credentials from other failures.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("X-Client-Type", "api")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.store.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("client: %s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("client: request failed with status %d", resp.StatusCode)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// User is the signed-in principal.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	AvatarURL *string   `json:"avatarUrl,omitempty"`
}

// Workspace is a workspace the user belongs to, with their role.
type Workspace struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	PlanType string    `json:"planType"`
	Role     string    `json:"role,omitempty"`
}

// Project is one node of a workspace's project tree.
type Project struct {
	ID          uuid.UUID  `json:"id"`
	WorkspaceID uuid.UUID  `json:"workspaceId"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	Name        string     `json:"name"`
	Color       string     `json:"color"`
	IsArchived  bool       `json:"isArchived"`
}
