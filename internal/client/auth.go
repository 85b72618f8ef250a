package client

import (
	"context"
	"net/http"

	"order-workflow/internal/apperror"
	"order-workflow/internal/model"
)

// Login submits credentials and stores the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/login", model.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	if err := c.tokens.Save(resp.Token); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyToken asks the server whether token is still valid and returns its identity.
func (c *Client) VerifyToken(ctx context.Context, token string) (*model.Identity, error) {
	var resp model.VerifyTokenResponse
	if err := c.call(ctx, http.MethodPost, "/api/verify-token", model.VerifyTokenRequest{Token: token}, &resp); err != nil {
		return nil, err
	}
	if !resp.Valid || resp.User == nil {
		_ = c.tokens.Clear()
		return nil, apperror.SessionExpired("Sesión expirada")
	}
	return resp.User, nil
}

// Logout revokes the token on the server. The local token is cleared even when that fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	if clearErr := c.tokens.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// LoginURL is where a browser starts the Microsoft sign-in.
func (c *Client) LoginURL() string {
	return c.baseURL + "/api/login"
}
