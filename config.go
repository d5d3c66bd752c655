package authkit

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config carries every tunable of the manager. Zero values are filled from
// defaultConfig by the Builder; instances are treated as immutable after
// Build.
type Config struct {
	API     APIConfig
	Tokens  TokenConfig
	SignUp  SignUpConfig
	Socket  SocketConfig
	Events  EventConfig
	Metrics MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the backend and names its authentication endpoints.
type APIConfig struct {
	// BaseURL is the http(s) origin of the backend, e.g. "https://api.loopchat.dev".
	BaseURL string

	LoginPath    string
	RegisterPath string
	RefreshPath  string
	RevokePath   string

	RequestTimeout time.Duration
	UserAgent      string
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls expiry handling of the stored credential pair.
type TokenConfig struct {
	// ExpirySkew widens the expiry check: an access token within ExpirySkew
	// of its expiry is refreshed before use instead of racing expiry on the
	// server.
	ExpirySkew time.Duration
}

/*
====================================
SIGN-UP CONFIG
====================================
*/

// SignUpConfig is the client-side registration policy, enforced before any
// network call is made.
type SignUpConfig struct {
	UsernameMinLength int
	UsernameMaxLength int

	PasswordMinLength     int
	PasswordRequireLower  bool
	PasswordRequireUpper  bool
	PasswordRequireDigit  bool
	PasswordRequireSymbol bool
}

/*
====================================
SOCKET CONFIG
====================================
*/

// SocketConfig controls authenticated WebSocket dials.
type SocketConfig struct {
	HandshakeTimeout time.Duration
	// ReadLimit caps inbound frame size in bytes.
	ReadLimit    int64
	Subprotocols []string
}

/*
====================================
EVENTS / METRICS CONFIG
====================================
*/

// EventConfig controls the async session-event dispatcher.
type EventConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters and latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			LoginPath:      "/auth/login",
			RegisterPath:   "/auth/register",
			RefreshPath:    "/auth/token/refresh",
			RevokePath:     "/auth/token/revoke",
			RequestTimeout: 15 * time.Second,
			UserAgent:      "authkit/1",
		},
		Tokens: TokenConfig{
			ExpirySkew: 10 * time.Second,
		},
		SignUp: SignUpConfig{
			UsernameMinLength:     4,
			UsernameMaxLength:     30,
			PasswordMinLength:     8,
			PasswordRequireLower:  true,
			PasswordRequireUpper:  true,
			PasswordRequireDigit:  true,
			PasswordRequireSymbol: true,
		},
		Socket: SocketConfig{
			HandshakeTimeout: 10 * time.Second,
			ReadLimit:        1 << 20,
		},
		Events: EventConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Socket.Subprotocols != nil {
		out.Socket.Subprotocols = append([]string(nil), cfg.Socket.Subprotocols...)
	}
	return out
}

// Validate checks the configuration for values Build must reject.
func (c *Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.API.BaseURL))
	if err != nil {
		return fmt.Errorf("api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api base url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("api base url: missing host")
	}

	for _, p := range []struct {
		name string
		path string
	}{
		{"login path", c.API.LoginPath},
		{"register path", c.API.RegisterPath},
		{"refresh path", c.API.RefreshPath},
		{"revoke path", c.API.RevokePath},
	} {
		if !strings.HasPrefix(p.path, "/") {
			return fmt.Errorf("%s must start with /", p.name)
		}
	}

	if c.API.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.Tokens.ExpirySkew < 0 {
		return errors.New("token expiry skew must not be negative")
	}

	if c.SignUp.UsernameMinLength < 1 {
		return errors.New("username minimum length must be at least 1")
	}
	if c.SignUp.UsernameMaxLength < c.SignUp.UsernameMinLength {
		return errors.New("username maximum length below minimum")
	}
	if c.SignUp.PasswordMinLength < 1 {
		return errors.New("password minimum length must be at least 1")
	}

	if c.Socket.HandshakeTimeout <= 0 {
		return errors.New("socket handshake timeout must be positive")
	}
	if c.Socket.ReadLimit <= 0 {
		return errors.New("socket read limit must be positive")
	}

	if c.Events.Enabled && c.Events.BufferSize < 0 {
		return errors.New("event buffer size must not be negative")
	}

	return nil
}
