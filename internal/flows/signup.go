package flows

import (
	"context"
	"strings"
)

// SignUpFailureKind classifies sign-up failures for root-level mapping.
type SignUpFailureKind int

const (
	SignUpFailureNone SignUpFailureKind = iota
	SignUpFailureValidation
	SignUpFailureRejected
	SignUpFailureTransport
	SignUpFailureLogin
	SignUpFailureMalformed
)

// SignUpResult carries either the post-registration grant or failure
// metadata. Detail holds the backend's rejection message on
// SignUpFailureRejected.
type SignUpResult struct {
	Failure SignUpFailureKind
	Err     error
	Fields  []FieldError
	Detail  string
	Grant   Grant
}

// SignUpMetrics carries metric IDs incremented by the sign-up flow.
type SignUpMetrics struct {
	Success  int
	Rejected int
	Failure  int
}

// SignUpDeps captures sign-up flow dependencies.
type SignUpDeps struct {
	Policy Policy

	Register     func(ctx context.Context, form Form) error
	Login        func(ctx context.Context, identifier, password string) (Grant, error)
	IsAuthStatus func(error) bool
	StatusDetail func(error) (string, bool)

	MetricInc func(int)
	Metrics   SignUpMetrics
}

// RunSignUp validates the form, registers the account, then signs it in.
// Registration responses carry no tokens, so a follow-up login completes the
// flow.
func RunSignUp(ctx context.Context, form Form, deps SignUpDeps) SignUpResult {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.IsAuthStatus == nil {
		deps.IsAuthStatus = func(error) bool { return false }
	}
	if deps.StatusDetail == nil {
		deps.StatusDetail = func(error) (string, bool) { return "", false }
	}

	if fields := ValidateSignUpForm(form, deps.Policy); len(fields) > 0 {
		deps.MetricInc(deps.Metrics.Rejected)
		return SignUpResult{Failure: SignUpFailureValidation, Fields: fields}
	}

	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)
	form.Name = strings.TrimSpace(form.Name)
	form.Phone = strings.TrimSpace(form.Phone)

	if err := deps.Register(ctx, form); err != nil {
		if detail, ok := deps.StatusDetail(err); ok {
			deps.MetricInc(deps.Metrics.Rejected)
			return SignUpResult{Failure: SignUpFailureRejected, Err: err, Detail: detail}
		}
		deps.MetricInc(deps.Metrics.Failure)
		return SignUpResult{Failure: SignUpFailureTransport, Err: err}
	}

	// The account exists from here on; a failed login leaves it signed out
	// rather than rolling back.
	grant, err := deps.Login(ctx, form.Username, form.Password)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		return SignUpResult{Failure: SignUpFailureLogin, Err: err}
	}

	if grant.AccessToken == "" || grant.AccessExpiresAt <= 0 ||
		grant.RefreshToken == "" || grant.RefreshExpiresAt <= 0 {
		deps.MetricInc(deps.Metrics.Failure)
		return SignUpResult{Failure: SignUpFailureMalformed}
	}

	deps.MetricInc(deps.Metrics.Success)
	return SignUpResult{Grant: grant}
}
