package authkit

import (
	"errors"
	"fmt"

	"github.com/loopchat/authkit/internal/api"
)

var (
	// ErrInvalidCredentials is returned by SignIn when the backend rejects
	// the identifier/password combination.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when an authenticated call fails terminally:
	// the access token was rejected and could not be refreshed. The manager
	// has already signed out when this is returned.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotAuthenticated is returned by operations that require a current
	// session when there is none.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrAlreadyAuthenticated is returned by SignIn and SignUp while a
	// session is present; sign out first.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	// ErrStoreUnavailable is returned when the token store fails to read or
	// write. A storage failure is never treated as "no session".
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrNetwork is returned for transport-level failures. Never retried by
	// this package and never treated as an authorization failure.
	ErrNetwork = errors.New("network failure")
	// ErrServerUnavailable is returned for 5xx responses.
	ErrServerUnavailable = errors.New("server unavailable")
	// ErrManagerNotReady is returned when a Manager method is called on a
	// nil or unbuilt manager.
	ErrManagerNotReady = errors.New("manager not initialized")
)

// ValidationError reports one rejected input field. SignUp returns a joined
// error carrying one ValidationError per failing field; server-side
// rejections carry the backend's user-facing detail message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// APIError is a non-2xx backend response that is neither an authorization
// failure handled by the retry machinery nor a validation rejection. 5xx
// responses additionally match ErrServerUnavailable via errors.Is.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Detail)
}

func (e *APIError) Unwrap() error {
	if e.Status >= 500 {
		return ErrServerUnavailable
	}
	return nil
}

// mapTransportError converts wire-client failures into the public taxonomy.
// Authorization failures are mapped by the caller, which owns the retry
// state machine.
func mapTransportError(err error) error {
	if err == nil {
		return nil
	}
	var se *api.StatusError
	if errors.As(err, &se) {
		return &APIError{Status: se.Status, Detail: se.Detail}
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
