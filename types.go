package authkit

import (
	"io"
	"time"

	"github.com/loopchat/authkit/internal/events"
)

// UserTier is the subscription tier reported by the backend at sign-in.
type UserTier string

const (
	// TierFreemium is the default tier for new accounts.
	TierFreemium UserTier = "freemium"
	// TierPremium marks paying accounts.
	TierPremium UserTier = "premium"
	// TierAdmin marks operator accounts.
	TierAdmin UserTier = "admin"
)

// Valid reports whether t is one of the known tiers.
func (t UserTier) Valid() bool {
	switch t {
	case TierFreemium, TierPremium, TierAdmin:
		return true
	}
	return false
}

// Session records who is signed in and until when. It never carries the raw
// access or refresh token; those live only in the token store.
type Session struct {
	UserID string
	Tier   UserTier

	// AccessExpiresAt and RefreshExpiresAt are unix seconds.
	AccessExpiresAt  int64
	RefreshExpiresAt int64
}

// AccessExpired reports whether the access token is expired at now, treating
// tokens within skew of expiry as already dead so a request does not race
// token expiry mid-flight.
func (s *Session) AccessExpired(now time.Time, skew time.Duration) bool {
	if s == nil {
		return true
	}
	return now.Add(skew).Unix() >= s.AccessExpiresAt
}

// RefreshExpired reports whether the refresh token is expired at now.
func (s *Session) RefreshExpired(now time.Time) bool {
	if s == nil {
		return true
	}
	return now.Unix() >= s.RefreshExpiresAt
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// SignUpForm is the input for [Manager.SignUp]. All fields are sent to the
// registration endpoint; Username, Email, and Password are validated
// client-side first.
type SignUpForm struct {
	Username string
	Email    string
	Password string
	Name     string
	Phone    string
}

// SessionEvent is a structured session lifecycle event emitted by the
// manager (signed_in, signed_up, token_refreshed, session_restored,
// signed_out).
type SessionEvent = events.Event

// EventSink receives [SessionEvent] values from the manager's dispatcher.
type EventSink = events.Sink

// NoOpSink is an [EventSink] that silently discards all events.
type NoOpSink = events.NoOpSink

// ChannelSink is a buffered channel-based [EventSink].
type ChannelSink = events.ChannelSink

// JSONWriterSink is an [EventSink] that writes one JSON object per line to
// an [io.Writer].
type JSONWriterSink = events.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return events.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return events.NewJSONWriterSink(w)
}
