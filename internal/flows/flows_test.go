package flows

import (
	"context"
	"errors"
	"testing"
)

var errBackendRejected = errors.New("status 401")

func grantFixture() Grant {
	return Grant{
		AccessToken:      "access-1",
		AccessExpiresAt:  1_900_000_000,
		RefreshToken:     "refresh-1",
		RefreshExpiresAt: 1_900_600_000,
		UserTier:         "premium",
		UserID:           "user-1",
	}
}

func TestRunSignInClassification(t *testing.T) {
	cases := []struct {
		name        string
		identifier  string
		password    string
		login       func(context.Context, string, string) (Grant, error)
		isAuth      func(error) bool
		wantFailure SignInFailureKind
	}{
		{
			name:       "success",
			identifier: "alice",
			password:   "pw",
			login: func(context.Context, string, string) (Grant, error) {
				return grantFixture(), nil
			},
			wantFailure: SignInFailureNone,
		},
		{
			name:        "empty inputs never reach the wire",
			identifier:  " ",
			password:    "",
			login:       nil,
			wantFailure: SignInFailureValidation,
		},
		{
			name:       "auth status maps to credentials",
			identifier: "alice",
			password:   "wrong",
			login: func(context.Context, string, string) (Grant, error) {
				return Grant{}, errBackendRejected
			},
			isAuth:      func(err error) bool { return errors.Is(err, errBackendRejected) },
			wantFailure: SignInFailureCredentials,
		},
		{
			name:       "other errors map to transport",
			identifier: "alice",
			password:   "pw",
			login: func(context.Context, string, string) (Grant, error) {
				return Grant{}, errors.New("connection refused")
			},
			wantFailure: SignInFailureTransport,
		},
		{
			name:       "grant without refresh token is malformed",
			identifier: "alice",
			password:   "pw",
			login: func(context.Context, string, string) (Grant, error) {
				g := grantFixture()
				g.RefreshToken = ""
				return g, nil
			},
			wantFailure: SignInFailureMalformed,
		},
		{
			name:       "grant without access expiry is malformed",
			identifier: "alice",
			password:   "pw",
			login: func(context.Context, string, string) (Grant, error) {
				g := grantFixture()
				g.AccessExpiresAt = 0
				return g, nil
			},
			wantFailure: SignInFailureMalformed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := RunSignIn(context.Background(), tc.identifier, tc.password, SignInDeps{
				Login:        tc.login,
				IsAuthStatus: tc.isAuth,
			})
			if res.Failure != tc.wantFailure {
				t.Fatalf("got failure %d, want %d (err %v)", res.Failure, tc.wantFailure, res.Err)
			}
			if tc.wantFailure == SignInFailureNone && res.Grant.AccessToken == "" {
				t.Fatal("success must carry the grant")
			}
			if tc.wantFailure == SignInFailureValidation && len(res.Fields) == 0 {
				t.Fatal("validation failure must name fields")
			}
		})
	}
}

func TestRunSignUpRegistersBeforeLogin(t *testing.T) {
	var order []string

	res := RunSignUp(context.Background(), Form{
		Username: "alice-w",
		Email:    "alice@example.com",
		Password: "Str0ng!pass",
		Name:     "Alice",
	}, SignUpDeps{
		Policy: testPolicy(),
		Register: func(context.Context, Form) error {
			order = append(order, "register")
			return nil
		},
		Login: func(context.Context, string, string) (Grant, error) {
			order = append(order, "login")
			return grantFixture(), nil
		},
	})

	if res.Failure != SignUpFailureNone {
		t.Fatalf("unexpected failure %d: %v", res.Failure, res.Err)
	}
	if len(order) != 2 || order[0] != "register" || order[1] != "login" {
		t.Fatalf("unexpected call order %v", order)
	}
}

func TestRunSignUpRejectedCarriesDetail(t *testing.T) {
	rejection := errors.New("status 409")

	res := RunSignUp(context.Background(), Form{
		Username: "alice-w",
		Email:    "alice@example.com",
		Password: "Str0ng!pass",
		Name:     "Alice",
	}, SignUpDeps{
		Policy:   testPolicy(),
		Register: func(context.Context, Form) error { return rejection },
		Login: func(context.Context, string, string) (Grant, error) {
			t.Fatal("login must not run after a rejected registration")
			return Grant{}, nil
		},
		StatusDetail: func(err error) (string, bool) {
			if errors.Is(err, rejection) {
				return "username taken", true
			}
			return "", false
		},
	})

	if res.Failure != SignUpFailureRejected {
		t.Fatalf("unexpected failure %d: %v", res.Failure, res.Err)
	}
	if res.Detail != "username taken" {
		t.Fatalf("unexpected detail %q", res.Detail)
	}
}

func TestRunSignUpValidationSkipsNetwork(t *testing.T) {
	res := RunSignUp(context.Background(), Form{Username: "x"}, SignUpDeps{
		Policy: testPolicy(),
		Register: func(context.Context, Form) error {
			t.Fatal("register must not run on a rejected form")
			return nil
		},
		Login: func(context.Context, string, string) (Grant, error) {
			t.Fatal("login must not run on a rejected form")
			return Grant{}, nil
		},
	})

	if res.Failure != SignUpFailureValidation {
		t.Fatalf("unexpected failure %d", res.Failure)
	}
}

func TestRunRefreshClassification(t *testing.T) {
	cases := []struct {
		name        string
		token       string
		refresh     func(context.Context, string) (Grant, error)
		isAuth      func(error) bool
		wantFailure RefreshFailureKind
	}{
		{
			name:  "success",
			token: "refresh-1",
			refresh: func(context.Context, string) (Grant, error) {
				return grantFixture(), nil
			},
			wantFailure: RefreshFailureNone,
		},
		{
			name:        "missing token",
			token:       "",
			wantFailure: RefreshFailureNoToken,
		},
		{
			name:  "auth rejection",
			token: "refresh-1",
			refresh: func(context.Context, string) (Grant, error) {
				return Grant{}, errBackendRejected
			},
			isAuth:      func(err error) bool { return errors.Is(err, errBackendRejected) },
			wantFailure: RefreshFailureAuth,
		},
		{
			name:  "transport failure",
			token: "refresh-1",
			refresh: func(context.Context, string) (Grant, error) {
				return Grant{}, errors.New("timeout")
			},
			wantFailure: RefreshFailureTransport,
		},
		{
			name:  "non-rotating grant is fine",
			token: "refresh-1",
			refresh: func(context.Context, string) (Grant, error) {
				g := grantFixture()
				g.RefreshToken = ""
				g.RefreshExpiresAt = 0
				return g, nil
			},
			wantFailure: RefreshFailureNone,
		},
		{
			name:  "rotated token without expiry is malformed",
			token: "refresh-1",
			refresh: func(context.Context, string) (Grant, error) {
				g := grantFixture()
				g.RefreshExpiresAt = 0
				return g, nil
			},
			wantFailure: RefreshFailureMalformed,
		},
		{
			name:  "empty access token is malformed",
			token: "refresh-1",
			refresh: func(context.Context, string) (Grant, error) {
				return Grant{AccessExpiresAt: 1}, nil
			},
			wantFailure: RefreshFailureMalformed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := RunRefresh(context.Background(), tc.token, RefreshDeps{
				Refresh:      tc.refresh,
				IsAuthStatus: tc.isAuth,
			})
			if res.Failure != tc.wantFailure {
				t.Fatalf("got failure %d, want %d (err %v)", res.Failure, tc.wantFailure, res.Err)
			}
		})
	}
}
