package authkit

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"
)

// Socket is an authenticated WebSocket connection. Read and write failures
// mark it closed so the manager's per-path cache stops handing it out.
type Socket struct {
	conn   *websocket.Conn
	path   string
	closed atomic.Bool
}

// Path returns the backend path this socket was dialed against.
func (s *Socket) Path() string {
	return s.path
}

// IsOpen reports whether the socket is still usable.
func (s *Socket) IsOpen() bool {
	return s != nil && !s.closed.Load()
}

// Read returns the next message. Any error closes the socket.
func (s *Socket) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	typ, data, err := s.conn.Read(ctx)
	if err != nil {
		s.closed.Store(true)
	}
	return typ, data, err
}

// Write sends one message. Any error closes the socket.
func (s *Socket) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	err := s.conn.Write(ctx, typ, data)
	if err != nil {
		s.closed.Store(true)
	}
	return err
}

// Close performs a normal closure. Closing twice is harmless.
func (s *Socket) Close() error {
	if s == nil || s.closed.Swap(true) {
		return nil
	}
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Socket) closeAbnormal() {
	if s == nil || s.closed.Swap(true) {
		return
	}
	_ = s.conn.Close(websocket.StatusGoingAway, "signed out")
}

// DialSocket opens an authenticated WebSocket to a backend path, reusing a
// live socket for the same path unless forceNew is set. The dial carries a
// fresh access token; a token within the expiry skew is refreshed first.
func (m *Manager) DialSocket(ctx context.Context, path string, forceNew bool) (*Socket, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerNotReady
	}
	if m.session == nil {
		m.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	if !forceNew {
		if s := m.sockets[path]; s.IsOpen() {
			m.mu.Unlock()
			m.metrics.Inc(MetricSocketReused)
			return s, nil
		}
	}
	m.mu.Unlock()

	token, err := m.ensureAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	u := m.api.BaseURL().JoinPath(path)
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	header := make(http.Header)
	header.Set("Authorization", "Bearer "+token)
	if m.config.API.UserAgent != "" {
		header.Set("User-Agent", m.config.API.UserAgent)
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.config.Socket.HandshakeTimeout)
	defer cancel()

	// The dial library refuses a client-level timeout; the handshake
	// deadline comes from dialCtx and the connection must outlive it.
	dialClient := m.httpClient
	if dialClient.Timeout != 0 {
		clone := *dialClient
		clone.Timeout = 0
		dialClient = &clone
	}

	conn, _, err := websocket.Dial(dialCtx, u.String(), &websocket.DialOptions{
		HTTPClient:   dialClient,
		HTTPHeader:   header,
		Subprotocols: m.config.Socket.Subprotocols,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", ErrNetwork, path, err)
	}
	conn.SetReadLimit(m.config.Socket.ReadLimit)

	socket := &Socket{conn: conn, path: path}

	m.mu.Lock()
	if m.session == nil || m.closed {
		// Signed out while the handshake ran.
		m.mu.Unlock()
		socket.closeAbnormal()
		return nil, ErrNotAuthenticated
	}
	if !forceNew {
		if existing := m.sockets[path]; existing.IsOpen() {
			// A racing dial for the same path won. Keep its socket.
			m.mu.Unlock()
			_ = socket.Close()
			m.metrics.Inc(MetricSocketReused)
			return existing, nil
		}
	}
	old := m.sockets[path]
	m.sockets[path] = socket
	m.mu.Unlock()

	if old.IsOpen() {
		_ = old.Close()
		m.metrics.Inc(MetricSocketClosed)
	}
	m.metrics.Inc(MetricSocketOpened)
	m.log.Debug().Str("path", path).Msg("authkit: socket opened")

	return socket, nil
}

// IsSocketOpen reports whether a live socket exists for path.
func (m *Manager) IsSocketOpen(path string) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sockets[path].IsOpen()
}

// CloseSocket closes and forgets the socket for path, if any.
func (m *Manager) CloseSocket(path string) error {
	if err := m.ready(); err != nil {
		return err
	}

	m.mu.Lock()
	s := m.sockets[path]
	delete(m.sockets, path)
	m.mu.Unlock()

	if !s.IsOpen() {
		return nil
	}
	err := s.Close()
	m.metrics.Inc(MetricSocketClosed)
	return err
}

// takeSocketsLocked empties the socket map and returns what was in it.
// Caller holds m.mu.
func (m *Manager) takeSocketsLocked() []*Socket {
	if len(m.sockets) == 0 {
		return nil
	}
	out := make([]*Socket, 0, len(m.sockets))
	for path, s := range m.sockets {
		delete(m.sockets, path)
		if s.IsOpen() {
			out = append(out, s)
		}
	}
	return out
}

func closeSockets(sockets []*Socket) {
	for _, s := range sockets {
		s.closeAbnormal()
	}
}
