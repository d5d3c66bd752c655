// Package tokenstore defines durable storage for the current session's
// credential pair. Absence of a pair is a normal state and is reported as a
// nil Pair with a nil error; backend failures wrap ErrUnavailable so callers
// can tell "no session" from "storage broken".
package tokenstore

import (
	"context"
	"errors"
)

// ErrUnavailable marks a storage backend failure. It is never returned for
// a merely absent pair.
var ErrUnavailable = errors.New("token store unavailable")

// Pair is the persisted credential pair plus the expiry instants the backend
// reported for each token. Both tokens are always written together; the
// store never holds an access token without its paired refresh token.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`

	// AccessExpiresAt and RefreshExpiresAt are unix seconds.
	AccessExpiresAt  int64 `json:"accessExpiresAt"`
	RefreshExpiresAt int64 `json:"refreshExpiresAt"`
}

// Validate rejects pairs that must never be persisted.
func (p Pair) Validate() error {
	if p.AccessToken == "" {
		return errors.New("empty access token")
	}
	if p.RefreshToken == "" {
		return errors.New("empty refresh token")
	}
	if p.AccessExpiresAt <= 0 || p.RefreshExpiresAt <= 0 {
		return errors.New("missing token expiry")
	}
	return nil
}

// Store is the durable slot for the current session's credentials.
//
// Read returns (nil, nil) when no pair is stored. Write persists both tokens
// atomically. Clear deletes the pair and is idempotent.
type Store interface {
	Read(ctx context.Context) (*Pair, error)
	Write(ctx context.Context, pair Pair) error
	Clear(ctx context.Context) error
}
