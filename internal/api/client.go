// Package api is the wire client for the loopchat authentication backend.
// It owns JSON encoding, bearer-token transport, request-id stamping, and
// status-code classification; session semantics stay in the root package.
package api

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

	"github.com/google/uuid"
)

const maxErrorBody = 4 << 10

// Paths names the authentication endpoints relative to the base URL.
type Paths struct {
	Login    string
	Register string
	Refresh  string
	Revoke   string
}

// Config configures a wire client.
type Config struct {
	BaseURL   string
	Paths     Paths
	UserAgent string
}

// Client issues JSON requests against the backend.
type Client struct {
	base      *url.URL
	http      *http.Client
	paths     Paths
	userAgent string
}

// New parses the base URL and returns a wire client using httpClient.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		base:      base,
		http:      httpClient,
		paths:     cfg.Paths,
		userAgent: cfg.UserAgent,
	}, nil
}

// BaseURL returns the parsed backend origin.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// StatusError is a non-2xx response. Detail carries the backend's
// user-facing "detail" message when the body had one.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Detail)
}

// IsAuthStatus reports whether err is a StatusError carrying an
// authorization-failure status.
func IsAuthStatus(err error) bool {
	se, ok := AsStatus(err)
	return ok && (se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden)
}

// AsStatus unwraps err into a StatusError when it carries one.
func AsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// JSON sends one request and decodes a 2xx JSON body into out (skipped when
// out is nil). bearer, when non-empty, is sent as an Authorization header.
// Non-2xx responses return *StatusError; everything else is a transport
// error.
func (c *Client) JSON(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("X-Request-ID", RequestIDFromContext(ctx))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Detail: ReadDetail(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// ReadDetail extracts the backend's {"detail": "..."} message, falling back
// to a body snippet.
func ReadDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(raw))
}

type requestIDContextKey struct{}

// WithRequestID attaches a caller-chosen request id to ctx; it is sent as
// X-Request-ID on every wire call under that context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the attached request id, minting a fresh one
// when the context carries none.
func RequestIDFromContext(ctx context.Context) string {
	if ctx != nil {
		if id, _ := ctx.Value(requestIDContextKey{}).(string); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
