package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrNetwork         = errors.New("network unavailable")
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// APIError is a non-2xx answer from the API. It unwraps to the sentinel for
// its status so callers can use errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned %d", e.Status)
	}
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

const maxMessageLen = 300

// newAPIError pulls a human message out of an error body. The API answers
// either {"error": "..."}, {"message": "..."} or plain text.
func newAPIError(status int, body []byte) *APIError {
	msg := strings.TrimSpace(string(body))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Message != "":
			msg = payload.Message
		}
	}
	if len(msg) > maxMessageLen {
		n := maxMessageLen
		for n > 0 && !utf8.RuneStart(msg[n]) {
			n--
		}
		msg = msg[:n]
	}
	return &APIError{Status: status, Message: strings.TrimSpace(msg)}
}

const (
	msgSessionExpired = "Your session has expired. Please sign in again."
	msgRateLimited    = "The server is busy right now. Please try again in a moment."
	msgNetwork        = "Unable to reach the server. Check your connection and try again."
	msgGeneric        = "Something went wrong. Please try again."
)

// transient reports whether err leaves the session intact: the API was
// unreachable, timed out or failed on its side.
func transient(err error) bool {
	if errors.Is(err, ErrNetwork) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 500
}

// UserMessage turns err into the text shown to the user. Conflict and other
// domain rejections are passed through verbatim from the API.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return msgSessionExpired
	case errors.Is(err, ErrRateLimited):
		return msgRateLimited
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return msgNetwork
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 || apiErr.Message == "" {
			return msgGeneric
		}
		return apiErr.Message
	}
	return err.Error()
}
