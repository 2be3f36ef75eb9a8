// Package gateway is the HTTP client for the chat API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"dm-chat/internal/models"
)

// APIError is a non-2xx response from the chat API. Message is empty when
// the server did not supply one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat api: status %d", e.Status)
	}
	return fmt.Sprintf("chat api: status %d: %s", e.Status, e.Message)
}

// Session is the result of signup or login.
type Session struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

// Client calls the chat API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient constructs a chat API client. Requests are traced through otelhttp.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Signup creates an account and stores the returned token.
func (c *Client) Signup(ctx context.Context, fullName, email, password string) (Session, error) {
	payload := map[string]string{"fullName": fullName, "email": email, "password": password}
	return c.authRequest(ctx, "/auth/signup", payload)
}

// Login authenticates and stores the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	payload := map[string]string{"email": email, "password": password}
	return c.authRequest(ctx, "/auth/login", payload)
}

func (c *Client) authRequest(ctx context.Context, path string, payload any) (Session, error) {
	var session Session
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &session); err != nil {
		return Session{}, err
	}
	c.SetToken(session.Token)
	return session, nil
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, http.MethodGet, "/auth/check", nil, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// ListUsers returns every contact except the caller.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.doJSON(ctx, http.MethodGet, "/messages/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetMessages returns the conversation history with userID, oldest first.
func (c *Client) GetMessages(ctx context.Context, userID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := c.doJSON(ctx, http.MethodGet, "/messages/"+url.PathEscape(userID), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage posts a message to receiverID and returns the stored message.
func (c *Client) SendMessage(ctx context.Context, receiverID string, req models.SendRequest) (models.Message, error) {
	var msg models.Message
	if err := c.doJSON(ctx, http.MethodPost, "/messages/send/"+url.PathEscape(receiverID), req, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(errResp.Message)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
