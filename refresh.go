package authkit

import (
	"context"
	"fmt"

	"github.com/loopchat/authkit/internal/api"
	"github.com/loopchat/authkit/internal/events"
	"github.com/loopchat/authkit/internal/flows"
	"github.com/loopchat/authkit/tokenstore"
)

// refreshTicket is one in-flight refresh. Every caller that needs a new
// access token while it runs waits on done and shares the outcome.
type refreshTicket struct {
	done  chan struct{}
	token string
	err   error
}

func (t *refreshTicket) resolve(token string, err error) {
	t.token = token
	t.err = err
	close(t.done)
}

// refreshAccess returns a usable access token, running at most one backend
// refresh regardless of how many goroutines ask concurrently. Any refresh
// failure (rejected token, unusable grant, or a failed wire call) is
// terminal: the manager signs out and returns ErrUnauthorized. Only store
// failures leave the session in place.
func (m *Manager) refreshAccess(ctx context.Context) (string, error) {
	m.mu.Lock()

	if m.session == nil {
		m.mu.Unlock()
		return "", ErrNotAuthenticated
	}

	if t := m.inflight; t != nil {
		m.mu.Unlock()
		m.metrics.Inc(MetricRefreshCoalesced)
		select {
		case <-t.done:
			return t.token, t.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	prior, err := m.store.Read(ctx)
	if err != nil {
		m.mu.Unlock()
		m.metrics.Inc(MetricStoreFailure)
		m.metrics.Inc(MetricRefreshFailure)
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if prior == nil || prior.RefreshToken == "" {
		// Session says signed in but the store disagrees. The session is
		// unrecoverable.
		sockets, priorSess := m.forceSignOutLocked(ctx)
		m.mu.Unlock()
		m.finishForcedSignOut(ctx, sockets, priorSess)
		m.metrics.Inc(MetricRefreshFailure)
		return "", ErrUnauthorized
	}

	ticket := &refreshTicket{done: make(chan struct{})}
	m.inflight = ticket
	epoch := m.epoch
	refreshToken := prior.RefreshToken
	m.mu.Unlock()

	res := flows.RunRefresh(ctx, refreshToken, flows.RefreshDeps{
		Refresh:      m.refreshGrant,
		IsAuthStatus: api.IsAuthStatus,
		MetricInc:    m.metricInc,
		Metrics: flows.RefreshMetrics{
			Success: int(MetricRefreshSuccess),
			Failure: int(MetricRefreshFailure),
		},
	})

	m.mu.Lock()
	m.inflight = nil

	// A sign-out won the race while the wire call ran. Whatever came back
	// belongs to the old session and must not be persisted.
	if m.epoch != epoch {
		m.mu.Unlock()
		m.metrics.Inc(MetricRefreshStale)
		ticket.resolve("", ErrNotAuthenticated)
		return "", ErrNotAuthenticated
	}

	if res.Failure != flows.RefreshFailureNone {
		// Rejected token, unusable grant, or a failed wire call. Without a
		// completed refresh the session cannot continue.
		sockets, priorSess := m.forceSignOutLocked(ctx)
		m.mu.Unlock()
		m.finishForcedSignOut(ctx, sockets, priorSess)
		m.log.Info().Err(res.Err).Msg("authkit: refresh failed, signed out")
		ticket.resolve("", ErrUnauthorized)
		return "", ErrUnauthorized
	}

	pair := mergeGrant(res.Grant, prior)
	if err := m.store.Write(ctx, pair); err != nil {
		m.mu.Unlock()
		m.metrics.Inc(MetricStoreFailure)
		wrapped := fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		ticket.resolve("", wrapped)
		return "", wrapped
	}

	m.session.AccessExpiresAt = pair.AccessExpiresAt
	m.session.RefreshExpiresAt = pair.RefreshExpiresAt
	m.emitLocked(ctx, events.TypeTokenRefreshed)
	m.mu.Unlock()

	ticket.resolve(pair.AccessToken, nil)
	return pair.AccessToken, nil
}

// forceSignOutLocked drops the session without a server-side revoke; it is
// used when the backend has already declared the credentials dead. Caller
// holds m.mu and must call finishForcedSignOut after unlocking.
func (m *Manager) forceSignOutLocked(ctx context.Context) ([]*Socket, *Session) {
	prior := m.session
	m.epoch++
	m.session = nil
	if err := m.store.Clear(ctx); err != nil {
		m.metrics.Inc(MetricStoreFailure)
		m.log.Warn().Err(err).Msg("authkit: clearing credentials failed")
	}
	return m.takeSocketsLocked(), prior
}

func (m *Manager) finishForcedSignOut(ctx context.Context, sockets []*Socket, prior *Session) {
	closeSockets(sockets)
	for range sockets {
		m.metrics.Inc(MetricSocketClosed)
	}
	m.metrics.Inc(MetricSignOut)
	m.emitEvent(ctx, events.TypeSignedOut, prior)
}

func (m *Manager) refreshGrant(ctx context.Context, refreshToken string) (flows.Grant, error) {
	grant, err := m.api.Refresh(ctx, refreshToken)
	if err != nil {
		return flows.Grant{}, err
	}
	return flows.Grant{
		AccessToken:      grant.AccessToken,
		AccessExpiresAt:  grant.AccessExpireTime,
		RefreshToken:     grant.RefreshToken,
		RefreshExpiresAt: grant.RefreshExpireTime,
		UserTier:         grant.UserTier,
		UserID:           grant.UserID,
	}, nil
}

// currentPair reads the stored credential pair, mapping store failures.
func (m *Manager) currentPair(ctx context.Context) (*tokenstore.Pair, error) {
	pair, err := m.store.Read(ctx)
	if err != nil {
		m.metrics.Inc(MetricStoreFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return pair, nil
}
