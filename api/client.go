// Package api is the typed HTTP client for the farm-box backend's auth and
// profile endpoints. It attaches the bearer token from an injected token
// source and decodes the backend's {message} error envelope.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials"
	"github.com/pkg/errors"
)

// TokenSource supplies the current access token, or "" when unauthenticated.
type TokenSource func() string

// APIError is a server-reported failure: the HTTP status plus the message
// from the response body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Registration is the payload for creating an account.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// ProfileUpdate carries the editable profile fields; nil fields are omitted.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// AuthResponse is the common shape of login, register and refresh responses.
type AuthResponse struct {
	User         *credentials.User `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type profileResponse struct {
	User *credentials.User `json:"user"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Client talks to the backend REST API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource TokenSource
}

// Option defines a function type to modify a Client instance.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTokenSource attaches the access-token provider used for the
// Authorization header.
func WithTokenSource(source TokenSource) Option {
	return func(c *Client) {
		c.tokenSource = source
	}
}

// New initializes a Client for the given base URL (including the API path
// prefix, e.g. "https://api.cajasdelcampo.com/api").
func New(baseURL string, options ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[api.New] base URL is required")
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// SetTokenSource attaches the access-token provider after construction.
func (c *Client) SetTokenSource(source TokenSource) {
	c.tokenSource = source
}

// WrapTransport layers rt over the client's current transport. Used to
// install the CSRF transport once the coordinator exists.
func (c *Client) WrapTransport(wrap func(base http.RoundTripper) http.RoundTripper) {
	c.httpClient.Transport = wrap(c.httpClient.Transport)
}

// Login exchanges credentials for a token pair and the user record.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Login]")
	}
	return &out, nil
}

// Register creates an account; the response behaves like a login response.
func (c *Client) Register(ctx context.Context, registration Registration) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", registration, &out)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Register]")
	}
	return &out, nil
}

// Refresh mints a new access token from the refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &out)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Refresh]")
	}
	return &out, nil
}

// Logout notifies the server that the session ends.
func (c *Client) Logout(ctx context.Context) error {
	return errors.Wrap(c.do(ctx, http.MethodPost, "/auth/logout", nil, nil), "[Client.Logout]")
}

// UpdateProfile persists profile changes and returns the updated user.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*credentials.User, error) {
	var out profileResponse
	err := c.do(ctx, http.MethodPut, "/users/profile", update, &out)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.UpdateProfile]")
	}
	return out.User, nil
}

// FetchCSRFToken obtains a fresh anti-forgery token.
func (c *Client) FetchCSRFToken(ctx context.Context) (string, error) {
	var out csrfResponse
	err := c.do(ctx, http.MethodGet, "/csrf-token", nil, &out)
	if err != nil {
		return "", errors.Wrap(err, "[Client.FetchCSRFToken]")
	}
	return out.CSRFToken, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokenSource != nil {
		if token := c.tokenSource(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<10)).Decode(&envelope); err == nil {
		apiErr.Message = envelope.Message
	}
	return apiErr
}
