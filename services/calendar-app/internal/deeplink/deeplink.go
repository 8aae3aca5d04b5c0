// Package deeplink routes externally opened links. The only entry point is
// the password reset link.
package deeplink

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrUnknownRoute = errors.New("unknown deep link")
	ErrMissingToken = errors.New("reset link has no token")
)

type Screen string

const ScreenResetPassword Screen = "reset-password"

type Route struct {
	Screen Screen `json:"screen"`
	Token  string `json:"token"`
}

// Parse accepts app-scheme links (apptremind://reset-password?token=...) and
// web links (https://host/reset-password?token=...), as well as a bare path.
func Parse(raw string) (Route, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Route{}, ErrUnknownRoute
	}
	path := strings.Trim(u.Path, "/")
	switch u.Scheme {
	case "", "http", "https":
	default:
		// custom schemes put the route in the host: scheme://reset-password
		path = strings.Trim(u.Host+"/"+path, "/")
	}
	if path != string(ScreenResetPassword) {
		return Route{}, ErrUnknownRoute
	}
	token := strings.TrimSpace(u.Query().Get("token"))
	if token == "" {
		return Route{}, ErrMissingToken
	}
	return Route{Screen: ScreenResetPassword, Token: token}, nil
}
