package api

import (
	"context"
	"encoding/json"
	"net/http"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
)

// AuthResponse is the body returned by login, register and refresh.
type AuthResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	UserID       int64  `json:"userId,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
}

// User returns the account described by the response.
func (r AuthResponse) User() model.User {
	return model.User{ID: r.UserID, Username: r.Username, Email: r.Email}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
	DeviceID        string `json:"deviceId,omitempty"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	DeviceID     string `json:"deviceId,omitempty"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// VerifyResponse is the body returned by POST /auth/verify.
type VerifyResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

func decodeAuth(op string, body []byte) (AuthResponse, error) {
	var resp AuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, invalid(op, "%v", err)
	}
	return resp, nil
}

// Login exchanges credentials for tokens.
func (c *Client) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	body, err := c.do(ctx, "login", http.MethodPost, "/auth/login", req)
	if err != nil {
		return AuthResponse{}, err
	}
	return decodeAuth("login", body)
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	body, err := c.do(ctx, "register", http.MethodPost, "/auth/register", req)
	if err != nil {
		return AuthResponse{}, err
	}
	return decodeAuth("register", body)
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken, deviceID string) (AuthResponse, error) {
	body, err := c.do(ctx, "refresh token", http.MethodPost, "/auth/refresh", refreshRequest{
		RefreshToken: refreshToken,
		DeviceID:     deviceID,
	})
	if err != nil {
		return AuthResponse{}, err
	}
	return decodeAuth("refresh token", body)
}

// Verify checks an access token and returns its user.
func (c *Client) Verify(ctx context.Context, token string) (model.User, error) {
	body, err := c.do(ctx, "verify token", http.MethodPost, "/auth/verify", verifyRequest{Token: token})
	if err != nil {
		return model.User{}, err
	}
	var resp VerifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.User{}, invalid("verify token", "%v", err)
	}
	if !resp.Success || resp.UserID == 0 || resp.Username == "" {
		return model.User{}, timelyerrors.Wrapf(timelyerrors.ErrSessionExpired, "verify token: %s", resp.Message)
	}
	return model.User{ID: resp.UserID, Username: resp.Username, Email: resp.Email}, nil
}

// Logout revokes a refresh token.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	_, err := c.do(ctx, "logout", http.MethodPost, "/auth/logout", logoutRequest{RefreshToken: refreshToken})
	return err
}
