// Package api is the HTTP client for the chat persistence and generation
// endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"cortex/internal/domain/models"
)

// DefaultTimeout bounds a single request. It is longer than the server's
// total retry budget for generation.
const DefaultTimeout = 90 * time.Second

// Error is a non-2xx response
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status
func (e *Error) StatusCode() int { return e.Status }

// StatusOf returns the HTTP status of an API error, or 0 for transport
// failures and other errors.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsAuthError reports 401 and 403 responses
func IsAuthError(err error) bool {
	s := StatusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

// IsNotFound reports 404 responses
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// ChatUpdate is a partial update. Absent fields are not sent; a present Mode
// with a nil value clears the mode.
type ChatUpdate struct {
	Title      *string
	Mode       models.Optional[string]
	IsFavorite *bool
}

// GenerateRequest is the body of POST /api/chat
type GenerateRequest struct {
	ChatID     string  `json:"chatId"`
	Message    string  `json:"message"`
	Mode       *string `json:"mode"`
	DeepSearch bool    `json:"deepSearch,omitempty"`
	// Regenerate asks for a new reply to a message the server already stored
	Regenerate bool `json:"regenerate,omitempty"`
}

// GenerateResponse is the reply of POST /api/chat
type GenerateResponse struct {
	Response      string `json:"response"`
	MessageID     string `json:"messageId"`
	UserMessageID string `json:"userMessageId,omitempty"`
	Degraded      bool   `json:"degraded,omitempty"`
}

// Option configures a Client
type Option func(*Client)

// WithToken sets the bearer token sent with every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client talks to the chat server
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu    sync.RWMutex
	token string
}

// New creates a client for the server at baseURL (e.g. http://localhost:8080)
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken swaps the session token; "" logs out
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// CreateChat creates a chat. POST /api/chats
func (c *Client) CreateChat(ctx context.Context, title string, mode *string) (*models.Chat, error) {
	body := map[string]any{"title": title, "mode": mode}
	var out struct {
		Chat models.Chat `json:"chat"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chats", body, &out); err != nil {
		return nil, err
	}
	return &out.Chat, nil
}

// ListChats returns the user's chats with their first message. GET /api/chats
func (c *Client) ListChats(ctx context.Context) ([]models.Chat, error) {
	var out struct {
		Chats []models.Chat `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

// GetChat returns a chat with its full transcript. GET /api/chats/{id}
func (c *Client) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	var out struct {
		Chat models.Chat `json:"chat"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Chat, nil
}

// UpdateChat applies a partial update. PATCH /api/chats/{id}
func (c *Client) UpdateChat(ctx context.Context, id string, update ChatUpdate) (*models.Chat, error) {
	body := map[string]any{}
	if update.Title != nil {
		body["title"] = *update.Title
	}
	if update.Mode.Present {
		body["mode"] = update.Mode.Value
	}
	if update.IsFavorite != nil {
		body["isFavorite"] = *update.IsFavorite
	}

	var out struct {
		Chat models.Chat `json:"chat"`
	}
	if err := c.do(ctx, http.MethodPatch, "/api/chats/"+url.PathEscape(id), body, &out); err != nil {
		return nil, err
	}
	return &out.Chat, nil
}

// DeleteChat removes a chat. DELETE /api/chats/{id}
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/chats/"+url.PathEscape(id), nil, nil)
}

// Generate asks the server for the assistant's reply. POST /api/chat
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var out GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, Message: errorMessage(data)}
		c.logger.Debug("api request failed", "method", method, "path", path, "status", resp.StatusCode)
		return apiErr
	}

	if dest == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} or falls back to the raw body
func errorMessage(data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
