// Package backend is the single HTTP client for the retail REST backend.
// Every call attaches the caller's credentials from the context and every
// non-2xx response is normalized into *Error.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

type credentialsKey struct{}

type credentials struct {
	token     string
	requestID string
}

// WithCredentials stores the bearer token and request id forwarded to the backend.
func WithCredentials(ctx context.Context, token, requestID string) context.Context {
	return context.WithValue(ctx, credentialsKey{}, credentials{token: token, requestID: requestID})
}

func TokenFromContext(ctx context.Context) string {
	c, _ := ctx.Value(credentialsKey{}).(credentials)
	return c.token
}

type callOption func(*http.Request)

func withHeader(key, value string) callOption {
	return func(r *http.Request) {
		if value != "" {
			r.Header.Set(key, value)
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, opts ...callOption) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds, ok := ctx.Value(credentialsKey{}).(credentials); ok {
		if creds.token != "" {
			req.Header.Set("Authorization", "Bearer "+creds.token)
		}
		if creds.requestID != "" {
			req.Header.Set("X-Request-ID", creds.requestID)
		}
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := decodeBody(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeBody accepts both bare payloads and {"data": ...} envelopes. A null
// data field leaves out at its zero value.
func decodeBody(data []byte, out any) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(data, &env); err == nil {
			if raw, ok := env["data"]; ok {
				if string(bytes.TrimSpace(raw)) == "null" {
					return nil
				}
				return json.Unmarshal(raw, out)
			}
		}
	}
	return json.Unmarshal(data, out)
}
