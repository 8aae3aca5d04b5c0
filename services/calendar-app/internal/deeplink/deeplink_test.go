package deeplink

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		raw     string
		token   string
		wantErr error
	}{
		{raw: "apptremind://reset-password?token=abc", token: "abc"},
		{raw: "https://app.example.com/reset-password?token=abc%2B1", token: "abc+1"},
		{raw: "/reset-password/?token=xyz", token: "xyz"},
		{raw: "apptremind:///reset-password?token=t", token: "t"},
		{raw: "apptremind://reset-password", wantErr: ErrMissingToken},
		{raw: "https://app.example.com/login?token=abc", wantErr: ErrUnknownRoute},
		{raw: "apptremind://calendar", wantErr: ErrUnknownRoute},
		{raw: "%zz", wantErr: ErrUnknownRoute},
	}
	for _, tc := range cases {
		r, err := Parse(tc.raw)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s: expected %v, got %v", tc.raw, tc.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		if r.Screen != ScreenResetPassword || r.Token != tc.token {
			t.Fatalf("%s: unexpected route %+v", tc.raw, r)
		}
	}
}
