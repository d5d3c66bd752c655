package authkit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopchat/authkit/internal/api"
	"github.com/loopchat/authkit/internal/events"
	"github.com/loopchat/authkit/internal/flows"
	"github.com/loopchat/authkit/tokenstore"
)

// Manager owns one user's session against the backend: it signs in, keeps
// the credential pair in the token store, refreshes the access token behind
// a single in-flight refresh, and hands out authenticated HTTP and
// WebSocket access.
//
// All methods are safe for concurrent use. The zero Manager is not usable;
// construct one through [New] and [Builder.Build].
type Manager struct {
	config     Config
	api        *api.Client
	store      tokenstore.Store
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
	metrics    *Metrics
	dispatcher *events.Dispatcher
	registry   *events.Registry

	mu sync.Mutex
	// session is the authoritative signed-in state. nil means signed out.
	session *Session
	// epoch increments on every sign-out so a refresh that raced it can
	// recognize its result as stale and discard it.
	epoch    uint64
	inflight *refreshTicket
	sockets  map[string]*Socket
	closed   bool
}

func (m *Manager) ready() error {
	if m == nil || m.api == nil || m.store == nil {
		return ErrManagerNotReady
	}
	return nil
}

// Current returns a copy of the active session, or nil when signed out.
// Callers never observe a half-written session.
func (m *Manager) Current() *Session {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.clone()
}

// Restore rebuilds the session from the token store, typically at process
// start. A missing pair means signed out and returns (nil, nil); an expired
// refresh token clears the store and does the same. Store failures return
// ErrStoreUnavailable and are never treated as signed out.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return m.session.clone(), nil
	}

	pair, err := m.store.Read(ctx)
	if err != nil {
		m.metrics.Inc(MetricStoreFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if pair == nil {
		return nil, nil
	}

	now := m.now()
	if now.Unix() >= pair.RefreshExpiresAt {
		m.log.Debug().Msg("authkit: stored refresh token expired, clearing")
		if err := m.store.Clear(ctx); err != nil {
			m.metrics.Inc(MetricStoreFailure)
			m.log.Warn().Err(err).Msg("authkit: clearing expired credentials failed")
		}
		return nil, nil
	}

	userID, tier := peekClaims(pair.AccessToken)
	m.session = &Session{
		UserID:           userID,
		Tier:             tier,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}

	m.metrics.Inc(MetricSessionRestored)
	m.emitLocked(ctx, events.TypeSessionRestored)

	return m.session.clone(), nil
}

// OnSessionChange registers fn for every session lifecycle event and
// returns its cancel function. Callbacks run synchronously on the
// goroutine that caused the change and must not call back into the
// manager.
func (m *Manager) OnSessionChange(fn func(SessionEvent)) func() {
	if m == nil || m.registry == nil {
		return func() {}
	}
	return m.registry.Subscribe(fn)
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

// Metrics exposes the live counter set, mainly for exporters.
func (m *Manager) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

// Close shuts the manager down: open sockets are closed and the event
// dispatcher is drained. The session and token store are left untouched so
// a later Restore picks the session back up. Close is idempotent.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	open := m.takeSocketsLocked()
	m.mu.Unlock()

	closeSockets(open)
	for range open {
		m.metrics.Inc(MetricSocketClosed)
	}

	m.dispatcher.Close()
	return nil
}

// emitLocked publishes a lifecycle event for the current session. Callers
// hold m.mu; the dispatcher send and subscriber callbacks both tolerate
// that.
func (m *Manager) emitLocked(ctx context.Context, eventType string) {
	m.emitEvent(ctx, eventType, m.session)
}

func (m *Manager) emitEvent(ctx context.Context, eventType string, sess *Session) {
	event := events.Event{
		Timestamp: m.now().UTC(),
		Type:      eventType,
	}
	if sess != nil {
		event.UserID = sess.UserID
		event.Tier = string(sess.Tier)
	}

	m.dispatcher.Emit(ctx, event)
	m.registry.Publish(event)
}

// mergeGrant folds a token grant into the stored pair. Refresh responses
// from a non-rotating backend omit the refresh fields; the prior refresh
// token stays valid and is kept.
func mergeGrant(grant flows.Grant, prior *tokenstore.Pair) tokenstore.Pair {
	pair := tokenstore.Pair{
		AccessToken:      grant.AccessToken,
		AccessExpiresAt:  grant.AccessExpiresAt,
		RefreshToken:     grant.RefreshToken,
		RefreshExpiresAt: grant.RefreshExpiresAt,
	}
	if pair.RefreshToken == "" && prior != nil {
		pair.RefreshToken = prior.RefreshToken
		pair.RefreshExpiresAt = prior.RefreshExpiresAt
	}
	return pair
}

// sessionFromGrant builds the session for a fresh grant, falling back to
// token claims when the grant does not carry identity fields.
func sessionFromGrant(grant flows.Grant, pair tokenstore.Pair) *Session {
	userID := grant.UserID
	tier := UserTier(grant.UserTier)
	if userID == "" || !tier.Valid() {
		claimID, claimTier := peekClaims(pair.AccessToken)
		if userID == "" {
			userID = claimID
		}
		if !tier.Valid() {
			tier = claimTier
		}
	}
	return &Session{
		UserID:           userID,
		Tier:             tier,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}
