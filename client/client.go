package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// APIError is a structured failure returned by the platform API
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// envelope mirrors the server's response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Timestamp string `json:"timestamp"`
}

type loginData struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    int64   `json:"expires_in"`
	User         Profile `json:"user"`
}

type refreshData struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Identity is the decoded-claims payload returned by the verify endpoint
type Identity struct {
	UserID         string `json:"user_id"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id"`
	DepartmentID   string `json:"department_id"`
	IssuedAt       string `json:"issued_at"`
	ExpiresAt      string `json:"expires_at"`
}

// Client is the platform API client. It carries the server's http-only
// access_token cookie in its jar and keeps the SessionStore in sync with
// authentication state. A 401 from any protected call logs the session
// out client-side; no automatic refresh is attempted — callers that want
// to refresh proactively use Refresh.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      *SessionStore
	refresh    string
}

// New creates a Client for the given base URL
func New(baseURL string, store *SessionStore) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
		store: store,
	}, nil
}

// Store returns the session store backing this client
func (c *Client) Store() *SessionStore {
	return c.store
}

// Login exchanges credentials for tokens and populates the session store
func (c *Client) Login(ctx context.Context, username, password string) (*Profile, error) {
	var data loginData
	err := c.post(ctx, "/api/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &data, false)
	if err != nil {
		return nil, err
	}

	c.refresh = data.RefreshToken
	c.store.SetToken(data.AccessToken)
	user := data.User
	c.store.SetUser(&user)
	return &user, nil
}

// Refresh mints a new access token from the held refresh token
func (c *Client) Refresh(ctx context.Context) error {
	if c.refresh == "" {
		return &APIError{Status: http.StatusUnauthorized, Code: "AUTH_TOKEN_INVALID", Message: "no refresh token held"}
	}

	var data refreshData
	err := c.post(ctx, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": c.refresh,
	}, &data, false)
	if err != nil {
		return err
	}

	c.store.SetToken(data.AccessToken)
	return nil
}

// Verify asks the server to validate a token and return its identity
func (c *Client) Verify(ctx context.Context, token string) (*Identity, error) {
	var identity Identity
	err := c.post(ctx, "/api/v1/auth/verify", map[string]string{
		"token": token,
	}, &identity, false)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// Me fetches the current user's profile
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.get(ctx, "/api/v1/auth/me", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Logout tells the server to clear its cookie and clears the local
// session. The local session is cleared even when the server call fails:
// discarding both tokens is the client's contract.
func (c *Client) Logout(ctx context.Context) error {
	err := c.post(ctx, "/api/v1/auth/logout", nil, nil, true)
	c.refresh = ""
	c.store.Logout()

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		// Already logged out server-side; locally we are done either way
		return nil
	}
	return err
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}, protected bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out, protected)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out, true)
}

func (c *Client) do(req *http.Request, out interface{}, protected bool) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures stay distinguishable from definitive
		// 401/403 rejections; retrying them is the caller's call.
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	env := &envelope{}
	if err := json.Unmarshal(body, env); err != nil {
		// Unshaped errors are normalized so callers never see a raw body
		return &APIError{Status: http.StatusInternalServerError, Code: "UNKNOWN_ERROR", Message: "unexpected response from server"}
	}

	if resp.StatusCode >= 400 || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode, Code: "UNKNOWN_ERROR", Message: "unexpected response from server"}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		if protected && resp.StatusCode == http.StatusUnauthorized {
			c.refresh = ""
			c.store.Logout()
		}
		return apiErr
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &APIError{Status: http.StatusInternalServerError, Code: "UNKNOWN_ERROR", Message: "malformed response payload"}
		}
	}
	return nil
}
