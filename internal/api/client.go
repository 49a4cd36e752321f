// Package api is the HTTP client for the storefront backends: the AI chat
// service (chat, streaming, history) and the commerce service (cart, orders,
// profile, auth).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/shopchat/internal/logging"
)

// ErrNoCredential short-circuits credential-requiring calls client-side
// instead of issuing a request expected to fail.
var ErrNoCredential = errors.New("no stored credential")

// StatusError is a non-2xx backend response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Code, e.Body)
}

// IsAuthError reports whether err is an HTTP 401/403 response.
func IsAuthError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden
	}
	return false
}

// BackendError is a structured {success:false, message} failure.
// Its message is surfaced to the user verbatim.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string { return e.Message }

// Client talks to the chat service and commerce backend.
type Client struct {
	chatBase     string
	commerceBase string
	token        func() string
	http         *http.Client
	log          *logging.Logger
}

// NewClient creates a backend client. token is consulted per request so a
// login during the process lifetime is picked up; it may return "".
func NewClient(chatBase, commerceBase string, token func() string, log *logging.Logger) *Client {
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		chatBase:     strings.TrimSuffix(chatBase, "/"),
		commerceBase: strings.TrimSuffix(commerceBase, "/"),
		token:        token,
		http:         &http.Client{Timeout: 120 * time.Second},
		log:          log.Sub("api"),
	}
}

// newRequest builds a request with JSON and bearer headers. A nil body
// produces a bodyless request.
func (c *Client) newRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// doJSON executes a request and decodes a 2xx JSON response into out.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
