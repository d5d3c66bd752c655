package authkit

import (
	"strings"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := defaultConfig()
	cfg.API.BaseURL = "https://api.example.com"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.API.BaseURL = "" },
			wantErr: "scheme",
		},
		{
			name:    "bad scheme",
			mutate:  func(c *Config) { c.API.BaseURL = "ftp://api.example.com" },
			wantErr: "scheme",
		},
		{
			name:    "relative login path",
			mutate:  func(c *Config) { c.API.LoginPath = "auth/login" },
			wantErr: "login path",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.API.RequestTimeout = 0 },
			wantErr: "timeout",
		},
		{
			name:    "negative skew",
			mutate:  func(c *Config) { c.Tokens.ExpirySkew = -time.Second },
			wantErr: "skew",
		},
		{
			name:    "username bounds inverted",
			mutate:  func(c *Config) { c.SignUp.UsernameMaxLength = 2 },
			wantErr: "maximum length",
		},
		{
			name:    "zero password length",
			mutate:  func(c *Config) { c.SignUp.PasswordMinLength = 0 },
			wantErr: "password minimum",
		},
		{
			name:    "zero read limit",
			mutate:  func(c *Config) { c.Socket.ReadLimit = 0 },
			wantErr: "read limit",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	_, err := New().WithBaseURL("not a url at all ://").Build()
	if err == nil {
		t.Fatal("expected build failure")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := New().WithBaseURL("https://api.example.com")
	if _, err := b.Build(); err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("second build must fail")
	}
}

func TestBuildFillsZeroConfigDefaults(t *testing.T) {
	m, err := New().WithConfig(Config{
		API: APIConfig{BaseURL: "https://api.example.com"},
	}).Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer m.Close()

	if m.config.API.LoginPath != "/auth/login" {
		t.Fatalf("login path not defaulted: %q", m.config.API.LoginPath)
	}
	if m.config.Tokens.ExpirySkew != 10*time.Second {
		t.Fatalf("expiry skew not defaulted: %v", m.config.Tokens.ExpirySkew)
	}
	if m.config.SignUp.PasswordMinLength != 8 {
		t.Fatalf("password policy not defaulted: %d", m.config.SignUp.PasswordMinLength)
	}
}

func TestCloneConfigCopiesSubprotocols(t *testing.T) {
	cfg := validTestConfig()
	cfg.Socket.Subprotocols = []string{"chat.v1"}

	clone := cloneConfig(cfg)
	clone.Socket.Subprotocols[0] = "mutated"

	if cfg.Socket.Subprotocols[0] != "chat.v1" {
		t.Fatal("clone must not share the subprotocol slice")
	}
}
