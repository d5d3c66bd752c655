package api

import (
	"context"
	"net/http"
)

// TokenGrant is the backend's token issuance payload. Expiry times are unix
// seconds. Refresh responses may omit the refresh fields when the backend
// does not rotate refresh tokens.
type TokenGrant struct {
	AccessToken       string `json:"accessToken"`
	AccessExpireTime  int64  `json:"accessExpireTime"`
	RefreshToken      string `json:"refreshToken,omitempty"`
	RefreshExpireTime int64  `json:"refreshExpireTime,omitempty"`
	UserTier          string `json:"userTier,omitempty"`
	UserID            string `json:"userId,omitempty"`
}

type loginBody struct {
	// The backend accepts email, username, or phone in one field.
	EmailUsernamePhone string `json:"emailUsernamePhone"`
	Password           string `json:"password"`
}

// RegisterForm is the registration request body.
type RegisterForm struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// Login exchanges credentials for a token grant.
func (c *Client) Login(ctx context.Context, identifier, password string) (*TokenGrant, error) {
	var grant TokenGrant
	err := c.JSON(ctx, http.MethodPost, c.paths.Login, "", loginBody{
		EmailUsernamePhone: identifier,
		Password:           password,
	}, &grant)
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// Register creates an account. The backend answers with a bare confirmation;
// tokens come from a follow-up Login.
func (c *Client) Register(ctx context.Context, form RegisterForm) error {
	return c.JSON(ctx, http.MethodPost, c.paths.Register, "", form, nil)
}

// Refresh trades the refresh token for a new access token. The refresh token
// travels as the bearer credential.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	var grant TokenGrant
	err := c.JSON(ctx, http.MethodPost, c.paths.Refresh, refreshToken, nil, &grant)
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// Revoke invalidates the refresh token server-side.
func (c *Client) Revoke(ctx context.Context, refreshToken string) error {
	return c.JSON(ctx, http.MethodPost, c.paths.Revoke, refreshToken, nil, nil)
}
