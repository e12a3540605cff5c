// Package apiclient talks to the chat vault HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go-chat-vault/internal/model"
)

const defaultTimeout = 15 * time.Second

// ErrUnavailable marks failures where the server could not answer: transport
// errors and 503 responses.
var ErrUnavailable = errors.New("remote store unavailable")

// RemoteError is a success=false envelope returned by the server.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrUnavailable && e.StatusCode == http.StatusServiceUnavailable
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(parsed.String(), "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResult, error) {
	var result model.AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", req, &result); err != nil {
		return model.AuthResult{}, err
	}
	c.SetToken(result.Token)
	return result, nil
}

func (c *Client) Login(ctx context.Context, email string, password string) (model.AuthResult, error) {
	var result model.AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", model.LoginRequest{Email: email, Password: password}, &result); err != nil {
		return model.AuthResult{}, err
	}
	c.SetToken(result.Token)
	return result, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (model.PasswordReset, error) {
	var reset model.PasswordReset
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/forgot-password", model.ForgotPasswordRequest{Email: email}, &reset)
	return reset, err
}

func (c *Client) ResetPassword(ctx context.Context, resetToken string, password string) (model.AuthResult, error) {
	var result model.AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/reset-password", model.ResetPasswordRequest{Token: resetToken, Password: password}, &result); err != nil {
		return model.AuthResult{}, err
	}
	c.SetToken(result.Token)
	return result, nil
}

func (c *Client) ChangePassword(ctx context.Context, current string, next string) error {
	return c.do(ctx, http.MethodPut, "/api/v1/auth/change-password", model.ChangePasswordRequest{CurrentPassword: current, NewPassword: next}, nil)
}

func (c *Client) Me(ctx context.Context) (model.PublicUser, error) {
	var out struct {
		User model.PublicUser `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &out)
	return out.User, err
}

// SaveThread, ListThreads and DeleteThread make Client usable as the remote
// side of chatsync.Coordinator. The owner is always the token's principal.
func (c *Client) SaveThread(ctx context.Context, thread model.ChatThread) (model.ChatThread, error) {
	var saved model.ChatThread
	if err := c.do(ctx, http.MethodPost, "/api/v1/chats", thread, &saved); err != nil {
		return model.ChatThread{}, err
	}
	return saved, nil
}

func (c *Client) ListThreads(ctx context.Context) ([]model.ChatThread, error) {
	var list model.ChatList
	if err := c.do(ctx, http.MethodGet, "/api/v1/chats", nil, &list); err != nil {
		return nil, err
	}
	return list.Chats, nil
}

func (c *Client) GetThread(ctx context.Context, chatID string) (model.ChatThread, error) {
	var thread model.ChatThread
	err := c.do(ctx, http.MethodGet, "/api/v1/chats/"+url.PathEscape(chatID), nil, &thread)
	return thread, err
}

func (c *Client) DeleteThread(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/chats/"+url.PathEscape(chatID), nil, nil)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
}

func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return &RemoteError{StatusCode: resp.StatusCode, Code: "INTERNAL_ERROR", Message: resp.Status}
		}
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}

	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		remoteErr := &RemoteError{StatusCode: resp.StatusCode, Message: env.Message}
		if env.Error != nil {
			remoteErr.Code = env.Error.Code
			remoteErr.Message = env.Error.Message
		}
		return remoteErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}
