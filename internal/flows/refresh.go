package flows

import "context"

// RefreshFailureKind classifies refresh failures for root-level mapping.
// Auth failures are terminal for the session; transport and store failures
// are not.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNoToken
	RefreshFailureAuth
	RefreshFailureTransport
	RefreshFailureMalformed
)

// RefreshResult carries either the new grant or failure metadata. The grant
// keeps zero refresh fields when the backend did not rotate; the caller
// merges against the prior pair.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	Grant   Grant
}

// RefreshMetrics carries metric IDs incremented by the refresh flow.
type RefreshMetrics struct {
	Success int
	Failure int
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Refresh      func(ctx context.Context, refreshToken string) (Grant, error)
	IsAuthStatus func(error) bool

	MetricInc func(int)
	Metrics   RefreshMetrics
}

// RunRefresh trades the refresh token for a new access token. It never
// touches stored state; persistence and coalescing stay with the caller.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.IsAuthStatus == nil {
		deps.IsAuthStatus = func(error) bool { return false }
	}

	if refreshToken == "" {
		deps.MetricInc(deps.Metrics.Failure)
		return RefreshResult{Failure: RefreshFailureNoToken}
	}

	grant, err := deps.Refresh(ctx, refreshToken)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		if deps.IsAuthStatus(err) {
			return RefreshResult{Failure: RefreshFailureAuth, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureTransport, Err: err}
	}

	if grant.AccessToken == "" || grant.AccessExpiresAt <= 0 {
		deps.MetricInc(deps.Metrics.Failure)
		return RefreshResult{Failure: RefreshFailureMalformed}
	}
	// A rotated refresh token must come with its expiry.
	if grant.RefreshToken != "" && grant.RefreshExpiresAt <= 0 {
		deps.MetricInc(deps.Metrics.Failure)
		return RefreshResult{Failure: RefreshFailureMalformed}
	}

	deps.MetricInc(deps.Metrics.Success)
	return RefreshResult{Grant: grant}
}
