package authkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/loopchat/authkit/internal/api"
	"github.com/loopchat/authkit/internal/events"
	"github.com/loopchat/authkit/internal/flows"
)

// SignIn exchanges credentials for a session. identifier may be an email,
// username, or phone number. While a session is active SignIn returns
// ErrAlreadyAuthenticated; sign out first.
func (m *Manager) SignIn(ctx context.Context, identifier, password string) (*Session, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return nil, ErrAlreadyAuthenticated
	}
	m.mu.Unlock()

	res := flows.RunSignIn(ctx, identifier, password, flows.SignInDeps{
		Login:        m.loginGrant,
		IsAuthStatus: api.IsAuthStatus,
		MetricInc:    m.metricInc,
		Metrics: flows.SignInMetrics{
			Success: int(MetricSignInSuccess),
			Failure: int(MetricSignInFailure),
		},
	})
	switch res.Failure {
	case flows.SignInFailureNone:
	case flows.SignInFailureValidation:
		return nil, joinFieldErrors(res.Fields)
	case flows.SignInFailureCredentials:
		m.log.Debug().Str("identifier", identifier).Msg("authkit: sign-in rejected")
		return nil, credentialsError(res.Err)
	case flows.SignInFailureMalformed:
		return nil, fmt.Errorf("%w: malformed token grant", ErrServerUnavailable)
	default:
		return nil, mapTransportError(res.Err)
	}

	return m.adoptGrant(ctx, res.Grant, events.TypeSignedIn)
}

// SignUp validates the form locally, registers the account, then signs it
// in. Validation failures return a joined error carrying one
// ValidationError per rejected field and make no network call.
func (m *Manager) SignUp(ctx context.Context, form SignUpForm) (*Session, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return nil, ErrAlreadyAuthenticated
	}
	m.mu.Unlock()

	res := flows.RunSignUp(ctx, flows.Form{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
		Name:     form.Name,
		Phone:    form.Phone,
	}, flows.SignUpDeps{
		Policy: flows.Policy{
			UsernameMinLength:     m.config.SignUp.UsernameMinLength,
			UsernameMaxLength:     m.config.SignUp.UsernameMaxLength,
			PasswordMinLength:     m.config.SignUp.PasswordMinLength,
			PasswordRequireLower:  m.config.SignUp.PasswordRequireLower,
			PasswordRequireUpper:  m.config.SignUp.PasswordRequireUpper,
			PasswordRequireDigit:  m.config.SignUp.PasswordRequireDigit,
			PasswordRequireSymbol: m.config.SignUp.PasswordRequireSymbol,
		},
		Register:     m.registerAccount,
		Login:        m.loginGrant,
		IsAuthStatus: api.IsAuthStatus,
		StatusDetail: statusDetail,
		MetricInc:    m.metricInc,
		Metrics: flows.SignUpMetrics{
			Success:  int(MetricSignUpSuccess),
			Rejected: int(MetricSignUpRejected),
			Failure:  int(MetricSignUpFailure),
		},
	})
	switch res.Failure {
	case flows.SignUpFailureNone:
	case flows.SignUpFailureValidation:
		return nil, joinFieldErrors(res.Fields)
	case flows.SignUpFailureRejected:
		return nil, rejectionError(res.Detail, res.Err)
	case flows.SignUpFailureLogin:
		// The account exists but the follow-up login failed. Surface the
		// login failure; the caller can retry with SignIn.
		m.log.Warn().Err(res.Err).Msg("authkit: post-registration sign-in failed")
		if api.IsAuthStatus(res.Err) {
			return nil, credentialsError(res.Err)
		}
		return nil, mapTransportError(res.Err)
	case flows.SignUpFailureMalformed:
		return nil, fmt.Errorf("%w: malformed token grant", ErrServerUnavailable)
	default:
		return nil, mapTransportError(res.Err)
	}

	return m.adoptGrant(ctx, res.Grant, events.TypeSignedUp)
}

// SignOut ends the session: local state is dropped first, then the refresh
// token is revoked server-side on a best-effort basis. Open sockets are
// closed. Signed out already is a no-op.
func (m *Manager) SignOut(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil
	}
	prior := m.session

	var refreshToken string
	if pair, err := m.store.Read(ctx); err != nil {
		m.metrics.Inc(MetricStoreFailure)
		m.log.Warn().Err(err).Msg("authkit: reading credentials for revoke failed")
	} else if pair != nil {
		refreshToken = pair.RefreshToken
	}

	// The epoch bump invalidates any refresh still in flight; its result
	// will be discarded as stale.
	m.epoch++
	m.session = nil
	clearErr := m.store.Clear(ctx)
	open := m.takeSocketsLocked()
	m.mu.Unlock()

	closeSockets(open)
	for range open {
		m.metrics.Inc(MetricSocketClosed)
	}

	if refreshToken != "" {
		if err := m.api.Revoke(ctx, refreshToken); err != nil {
			m.log.Debug().Err(err).Msg("authkit: refresh token revoke failed")
		}
	}

	m.metrics.Inc(MetricSignOut)
	m.emitEvent(ctx, events.TypeSignedOut, prior)

	if clearErr != nil {
		m.metrics.Inc(MetricStoreFailure)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, clearErr)
	}
	return nil
}

// adoptGrant persists the grant and installs the session. A concurrent
// sign-in that won the race keeps its session; this grant is dropped.
func (m *Manager) adoptGrant(ctx context.Context, grant flows.Grant, eventType string) (*Session, error) {
	pair := mergeGrant(grant, nil)
	sess := sessionFromGrant(grant, pair)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil, ErrAlreadyAuthenticated
	}
	if err := m.store.Write(ctx, pair); err != nil {
		m.metrics.Inc(MetricStoreFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	m.session = sess

	m.log.Info().Str("user_id", sess.UserID).Str("tier", string(sess.Tier)).Msg("authkit: signed in")
	m.emitLocked(ctx, eventType)

	return sess.clone(), nil
}

func (m *Manager) loginGrant(ctx context.Context, identifier, password string) (flows.Grant, error) {
	grant, err := m.api.Login(ctx, identifier, password)
	if err != nil {
		return flows.Grant{}, err
	}
	return flows.Grant{
		AccessToken:      grant.AccessToken,
		AccessExpiresAt:  grant.AccessExpireTime,
		RefreshToken:     grant.RefreshToken,
		RefreshExpiresAt: grant.RefreshExpireTime,
		UserTier:         grant.UserTier,
		UserID:           grant.UserID,
	}, nil
}

func (m *Manager) registerAccount(ctx context.Context, form flows.Form) error {
	return m.api.Register(ctx, api.RegisterForm{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
		Name:     form.Name,
		Phone:    form.Phone,
	})
}

func (m *Manager) metricInc(id int) {
	m.metrics.Inc(MetricID(id))
}

func joinFieldErrors(fields []flows.FieldError) error {
	errs := make([]error, 0, len(fields))
	for _, f := range fields {
		errs = append(errs, &ValidationError{Field: f.Field, Message: f.Message})
	}
	return errors.Join(errs...)
}

// rejectionError surfaces a backend registration rejection as a
// ValidationError carrying the user-facing detail; the underlying status
// error stays reachable through errors.As.
func rejectionError(detail string, err error) error {
	if detail == "" {
		detail = "registration rejected"
	}
	return errors.Join(&ValidationError{Message: detail}, mapTransportError(err))
}

func credentialsError(err error) error {
	if se, ok := api.AsStatus(err); ok && se.Detail != "" {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, se.Detail)
	}
	return ErrInvalidCredentials
}

// statusDetail reports whether err is a client-side backend rejection and
// returns its detail message. 5xx responses do not count; those are server
// failures, not rejections.
func statusDetail(err error) (string, bool) {
	se, ok := api.AsStatus(err)
	if !ok || se.Status >= 500 {
		return "", false
	}
	return se.Detail, true
}
