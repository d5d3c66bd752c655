package authkit

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopchat/authkit/internal/api"
	"github.com/loopchat/authkit/internal/events"
	"github.com/loopchat/authkit/tokenstore"
	"github.com/loopchat/authkit/tokenstore/memory"
)

// Builder assembles a Manager. A Builder is single-use; Build rejects a
// second call.
type Builder struct {
	config Config

	store      tokenstore.Store
	httpClient *http.Client
	logger     *zerolog.Logger
	sink       events.Sink
	clock      func() time.Time

	built bool
}

// New returns a Builder preloaded with defaults. Only the API base URL is
// mandatory.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Zero-valued endpoint paths
// and timeouts are filled back in from the defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets the backend origin without replacing the rest of the
// configuration.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithTokenStore sets the credential store. Defaults to an in-memory store,
// which does not survive process restarts.
func (b *Builder) WithTokenStore(store tokenstore.Store) *Builder {
	b.store = store
	return b
}

// WithHTTPClient sets the transport used for backend calls. The client's
// Timeout is left alone when the caller provides one.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithEventSink sets the sink receiving session lifecycle events.
func (b *Builder) WithEventSink(sink events.Sink) *Builder {
	b.sink = sink
	return b
}

// WithClock overrides the time source. Tests use this to control expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles counter recording.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the request latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and allocates the Manager. It performs
// no network or store I/O; call Restore to pick up persisted credentials.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	fillConfigDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		store = memory.New()
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.RequestTimeout}
	}

	apiClient, err := api.New(api.Config{
		BaseURL: cfg.API.BaseURL,
		Paths: api.Paths{
			Login:    cfg.API.LoginPath,
			Register: cfg.API.RegisterPath,
			Refresh:  cfg.API.RefreshPath,
			Revoke:   cfg.API.RevokePath,
		},
		UserAgent: cfg.API.UserAgent,
	}, httpClient)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	m := &Manager{
		config:     cfg,
		api:        apiClient,
		store:      store,
		httpClient: httpClient,
		log:        logger,
		now:        clock,
		metrics:    NewMetrics(cfg.Metrics),
		dispatcher: events.NewDispatcher(events.Config{
			Enabled:    cfg.Events.Enabled,
			BufferSize: cfg.Events.BufferSize,
			DropIfFull: cfg.Events.DropIfFull,
		}, b.sink),
		registry: events.NewRegistry(),
		sockets:  make(map[string]*Socket),
	}

	b.built = true

	return m, nil
}

// fillConfigDefaults backfills zero-valued fields the caller left unset when
// passing a hand-built Config.
func fillConfigDefaults(cfg *Config) {
	def := defaultConfig()

	if cfg.API.LoginPath == "" {
		cfg.API.LoginPath = def.API.LoginPath
	}
	if cfg.API.RegisterPath == "" {
		cfg.API.RegisterPath = def.API.RegisterPath
	}
	if cfg.API.RefreshPath == "" {
		cfg.API.RefreshPath = def.API.RefreshPath
	}
	if cfg.API.RevokePath == "" {
		cfg.API.RevokePath = def.API.RevokePath
	}
	if cfg.API.RequestTimeout == 0 {
		cfg.API.RequestTimeout = def.API.RequestTimeout
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = def.API.UserAgent
	}
	if cfg.Tokens.ExpirySkew == 0 {
		cfg.Tokens.ExpirySkew = def.Tokens.ExpirySkew
	}
	if cfg.SignUp.UsernameMinLength == 0 {
		cfg.SignUp.UsernameMinLength = def.SignUp.UsernameMinLength
	}
	if cfg.SignUp.UsernameMaxLength == 0 {
		cfg.SignUp.UsernameMaxLength = def.SignUp.UsernameMaxLength
	}
	if cfg.SignUp.PasswordMinLength == 0 {
		cfg.SignUp.PasswordMinLength = def.SignUp.PasswordMinLength
	}
	if cfg.Socket.HandshakeTimeout == 0 {
		cfg.Socket.HandshakeTimeout = def.Socket.HandshakeTimeout
	}
	if cfg.Socket.ReadLimit == 0 {
		cfg.Socket.ReadLimit = def.Socket.ReadLimit
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = def.Events.BufferSize
	}
}
