package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is what a login or refresh hands back. Cookie is the "name=value"
// pair of the auxiliary session cookie, when the API set one.
type Session struct {
	Token  string
	UserID string
	Cookie string
}

type wireSession struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	User        *struct {
		ID string `json:"id"`
	} `json:"user"`
}

func decodeSession(resp *response) (Session, error) {
	w, err := decodeObject[wireSession](resp.body, "session")
	if err != nil {
		return Session{}, err
	}
	s := Session{Token: w.Token, UserID: w.UserID, Cookie: sessionCookie(resp.header)}
	if s.Token == "" {
		s.Token = w.AccessToken
	}
	if s.UserID == "" && w.User != nil {
		s.UserID = w.User.ID
	}
	if s.Token == "" {
		return Session{}, fmt.Errorf("%w: session without token", ErrUnexpectedShape)
	}
	return s, nil
}

func sessionCookie(h http.Header) string {
	cookies := (&http.Response{Header: h}).Cookies()
	if len(cookies) == 0 {
		return ""
	}
	return cookies[0].Name + "=" + cookies[0].Value
}

func (c *Client) Login(ctx context.Context, creds Credentials) (Session, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	resp, err := c.do(ctx, call{endpoint: "auth.login", method: http.MethodPost, path: "/api/v1/auth/login", body: creds, anonymous: true})
	if err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	return decodeSession(resp)
}

// Refresh exchanges the current credentials for a new token. A 401 here is
// final; there is nothing left to refresh with.
func (c *Client) Refresh(ctx context.Context, token, cookie string) (Session, error) {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	if cookie != "" {
		h.Set("Cookie", cookie)
	}
	resp, err := c.do(ctx, call{endpoint: "auth.refresh", method: http.MethodPost, path: "/api/v1/auth/refresh", header: h, anonymous: true})
	if err != nil {
		return Session{}, fmt.Errorf("refresh: %w", err)
	}
	s, err := decodeSession(resp)
	if err != nil {
		return Session{}, err
	}
	if s.Cookie == "" {
		s.Cookie = cookie
	}
	return s, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.do(ctx, call{endpoint: "auth.logout", method: http.MethodPost, path: "/api/v1/auth/logout", noRefresh: true}); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

type Profile struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	BusinessID string `json:"business_id"`
	Role       string `json:"role"`
}

// Profile fetches the signed-in user. It does not refresh on 401 so session
// hydration can tell an expired token from a flaky network.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	resp, err := c.do(ctx, call{endpoint: "auth.me", method: http.MethodGet, path: "/api/v1/auth/me", noRefresh: true})
	if err != nil {
		return Profile{}, fmt.Errorf("profile: %w", err)
	}
	return decodeObject[Profile](resp.body, "user")
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}
	if _, err := c.do(ctx, call{endpoint: "auth.reset_password", method: http.MethodPost, path: "/api/v1/auth/reset-password", body: body, anonymous: true}); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}
