package flows

import (
	"context"
	"strings"
)

// Grant is the flow-local token issuance payload. Refresh fields may be zero
// when the backend does not rotate refresh tokens.
type Grant struct {
	AccessToken      string
	AccessExpiresAt  int64
	RefreshToken     string
	RefreshExpiresAt int64
	UserTier         string
	UserID           string
}

// SignInFailureKind classifies sign-in failures for root-level mapping.
type SignInFailureKind int

const (
	SignInFailureNone SignInFailureKind = iota
	SignInFailureValidation
	SignInFailureCredentials
	SignInFailureTransport
	SignInFailureMalformed
)

// SignInResult carries either the issued grant or failure metadata.
type SignInResult struct {
	Failure SignInFailureKind
	Err     error
	Fields  []FieldError
	Grant   Grant
}

// SignInMetrics carries metric IDs incremented by the sign-in flow.
type SignInMetrics struct {
	Success int
	Failure int
}

// SignInDeps captures sign-in flow dependencies.
type SignInDeps struct {
	Login        func(ctx context.Context, identifier, password string) (Grant, error)
	IsAuthStatus func(error) bool

	MetricInc func(int)
	Metrics   SignInMetrics
}

// RunSignIn exchanges credentials for a grant. The identifier may be an
// email, username, or phone number; the backend disambiguates.
func RunSignIn(ctx context.Context, identifier, password string, deps SignInDeps) SignInResult {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.IsAuthStatus == nil {
		deps.IsAuthStatus = func(error) bool { return false }
	}

	identifier = strings.TrimSpace(identifier)
	var fields []FieldError
	if identifier == "" {
		fields = append(fields, FieldError{Field: "identifier", Message: "identifier is required"})
	}
	if password == "" {
		fields = append(fields, FieldError{Field: "password", Message: "password is required"})
	}
	if len(fields) > 0 {
		deps.MetricInc(deps.Metrics.Failure)
		return SignInResult{Failure: SignInFailureValidation, Fields: fields}
	}

	grant, err := deps.Login(ctx, identifier, password)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		if deps.IsAuthStatus(err) {
			return SignInResult{Failure: SignInFailureCredentials, Err: err}
		}
		return SignInResult{Failure: SignInFailureTransport, Err: err}
	}

	if grant.AccessToken == "" || grant.AccessExpiresAt <= 0 ||
		grant.RefreshToken == "" || grant.RefreshExpiresAt <= 0 {
		deps.MetricInc(deps.Metrics.Failure)
		return SignInResult{Failure: SignInFailureMalformed}
	}

	deps.MetricInc(deps.Metrics.Success)
	return SignInResult{Grant: grant}
}
