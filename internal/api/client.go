// Package api is the HTTP client for the school-information-system
// backend: login, the two-folder message listing, message detail and
// logout, all JSON over HTTP with a bearer token.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Error is a non-2xx backend response, carrying the server-provided
// message when one was decodable and the HTTP status otherwise.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Unauthorized reports whether the failure means the session expired.
func (e *Error) Unauthorized() bool {
	if e.StatusCode == http.StatusUnauthorized {
		return true
	}
	return strings.Contains(e.Message, "Unauthorized") || strings.Contains(e.Message, "401")
}

type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	TokenSource func() string
}

func NewClient(baseURL string, tokenSource func() string) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		TokenSource: tokenSource,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type messagesResponse struct {
	Messages []MessageSummary `json:"messages"`
}

type messageResponse struct {
	Message MessageDetail `json:"message"`
}

func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out loginResponse
	err := c.request(ctx, http.MethodPost, "/api/login", loginRequest{
		Username: username,
		Password: password,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *Client) ListMessages(ctx context.Context, folder Folder) ([]MessageSummary, error) {
	var out messagesResponse
	path := "/api/messages?folder=" + url.QueryEscape(string(folder))
	if err := c.request(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) GetMessage(ctx context.Context, id string) (MessageDetail, error) {
	var out messageResponse
	path := "/api/messages/" + url.PathEscape(id)
	if err := c.request(ctx, http.MethodGet, path, nil, &out); err != nil {
		return MessageDetail{}, err
	}
	return out.Message, nil
}

// Logout tells the backend to end the session. Failures are swallowed:
// logout is always locally effective regardless of server reachability.
func (c *Client) Logout(ctx context.Context) {
	_ = c.request(ctx, http.MethodPost, "/api/logout", nil, nil)
}

func (c *Client) request(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.TokenSource != nil {
		if token := c.TokenSource(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var serverErr struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&serverErr); err == nil {
			apiErr.Message = serverErr.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
