package api

import (
	"context"
	"net/http"

	"esnafpanel-core/internal/model"
)

type loginRequest struct {
	Email string `json:"email"`
	Sifre string `json:"sifre"`
}

// Login exchanges credentials for a token pair and identity. It is
// unauthenticated and never retried here; retry policy belongs to the UI.
func (c *Client) Login(ctx context.Context, email, sifre string) (model.AuthResponse, error) {
	var resp model.AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/giris-yap", loginRequest{Email: email, Sifre: sifre}, &resp, false)
	return resp, err
}

// Register creates an account; same contract as Login.
func (c *Client) Register(ctx context.Context, in model.RegisterInput) (model.AuthResponse, error) {
	var resp model.AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/kayit-ol", in, &resp, false)
	return resp, err
}

// Logout asks the backend to invalidate the session server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/cikis-yap", nil, nil, true)
}

// Profile fetches the current identity.
func (c *Client) Profile(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.doJSON(ctx, http.MethodGet, "/auth/profil", nil, &user, true)
	return user, err
}
