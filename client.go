package authkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/loopchat/authkit/internal/api"
)

// Do sends req with a bearer access token, refreshing and retrying exactly
// once when the backend answers 401 or 403. A second authorization failure
// signs the manager out and returns ErrUnauthorized; the retry never loops.
//
// The token is read from the store per attempt and never cached in the
// request. Non-authorization responses, including other 4xx/5xx, are
// returned to the caller unconsumed.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	ctx := req.Context()

	start := m.now()
	defer func() {
		m.metrics.Observe(MetricRequestLatency, m.now().Sub(start))
	}()

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	token, err := m.ensureAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := m.send(req, getBody, token)
	if err != nil {
		return nil, mapTransportError(err)
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}
	drain(resp)

	// One refresh, one retry. refreshAccess coalesces with any concurrent
	// refresh and has already signed out on terminal failures.
	token, err = m.refreshAccess(ctx)
	if err != nil {
		return nil, err
	}
	m.metrics.Inc(MetricRequestRetried)

	resp, err = m.send(req, getBody, token)
	if err != nil {
		return nil, mapTransportError(err)
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}
	drain(resp)

	// Fresh token, still rejected. Do not refresh again.
	m.metrics.Inc(MetricRequestAuthFailed)
	m.mu.Lock()
	sockets, prior := m.forceSignOutLocked(ctx)
	m.mu.Unlock()
	m.finishForcedSignOut(ctx, sockets, prior)

	return nil, ErrUnauthorized
}

// Get issues an authenticated GET against a backend path and decodes the
// JSON response into out.
func (m *Manager) Get(ctx context.Context, path string, out any) error {
	return m.JSON(ctx, http.MethodGet, path, nil, out)
}

// Post issues an authenticated POST with a JSON body and decodes the JSON
// response into out. out may be nil.
func (m *Manager) Post(ctx context.Context, path string, in, out any) error {
	return m.JSON(ctx, http.MethodPost, path, in, out)
}

// JSON issues an authenticated JSON request against a path relative to the
// configured base URL. Non-2xx responses that survive the retry machinery
// come back as *APIError.
func (m *Manager) JSON(ctx context.Context, method, path string, in, out any) error {
	if err := m.ready(); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	u := m.api.BaseURL().JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Detail: api.ReadDetail(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// ensureAccessToken returns a non-expired access token, refreshing first
// when the stored one is within the expiry skew.
func (m *Manager) ensureAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	expired := m.session.AccessExpired(m.now(), m.config.Tokens.ExpirySkew)
	m.mu.Unlock()

	if expired {
		return m.refreshAccess(ctx)
	}

	pair, err := m.currentPair(ctx)
	if err != nil {
		return "", err
	}
	if pair == nil || pair.AccessToken == "" {
		m.mu.Lock()
		sockets, prior := m.forceSignOutLocked(ctx)
		m.mu.Unlock()
		m.finishForcedSignOut(ctx, sockets, prior)
		return "", ErrUnauthorized
	}
	return pair.AccessToken, nil
}

// send issues one attempt. The request is cloned so the stamped token never
// outlives the attempt and the body can be replayed.
func (m *Manager) send(req *http.Request, getBody func() (io.ReadCloser, error), token string) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, err
		}
		attempt.Body = body
	}
	attempt.Header.Set("Authorization", "Bearer "+token)
	if m.config.API.UserAgent != "" && attempt.Header.Get("User-Agent") == "" {
		attempt.Header.Set("User-Agent", m.config.API.UserAgent)
	}
	attempt.Header.Set("X-Request-ID", api.RequestIDFromContext(req.Context()))

	return m.httpClient.Do(attempt)
}

// replayableBody makes the request body re-readable for the retry attempt,
// buffering it when the request has no GetBody.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return req.GetBody, nil
	}

	raw, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("buffering request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
}
