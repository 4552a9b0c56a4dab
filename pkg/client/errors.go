package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork wraps transport failures: offline, DNS, connection reset.
	ErrNetwork = errors.New("network error")
	// ErrTimeout means a request exceeded the configured bound.
	ErrTimeout = errors.New("request timed out")
	// ErrRefresh means the refresh endpoint rejected or failed to renew the token.
	ErrRefresh = errors.New("token refresh failed")
	// ErrSessionExpired is returned when a 401 could not be recovered by a refresh.
	// The session has been cleared by the time the caller sees it.
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// HTTPError represents a non-2xx HTTP response from the API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// IsValidation reports whether err is a client-side rejection (4xx other than 401).
// Those are never retried.
func IsValidation(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 &&
		httpErr.StatusCode != http.StatusUnauthorized
}

// Kind groups errors by how the UI should react to them.
type Kind int

const (
	KindNone Kind = iota
	KindNetwork
	KindTimeout
	KindAuth
	KindSessionExpired
	KindValidation
	KindServer
	KindCanceled
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindSessionExpired:
		return "session_expired"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindCanceled:
		return "canceled"
	default:
		return "other"
	}
}

// Classify maps err onto the error taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	// Session expiry wraps the refresh failure, so it is checked first.
	switch {
	case errors.Is(err, ErrSessionExpired):
		return KindSessionExpired
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrRefresh):
		return KindAuth
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusUnauthorized:
			return KindAuth
		case httpErr.StatusCode >= 500:
			return KindServer
		case httpErr.StatusCode >= 400:
			return KindValidation
		}
	}
	return KindOther
}

// UserMessage turns err into the sentence shown to the user. Validation
// errors carry the backend's own message verbatim, as do 401s that came
// with an explanation (a rejected login).
func UserMessage(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindNetwork:
		return "Network error. Check your connection and try again."
	case KindTimeout:
		return "Request timeout. Please check your connection."
	case KindSessionExpired:
		return "Session expired. Please log in again."
	case KindAuth:
		if msg := backendMessage(err); msg != "" {
			return msg
		}
		return "You are not logged in."
	case KindCanceled:
		return "Canceled."
	case KindValidation, KindServer:
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.Message != "" {
			return httpErr.Message
		}
	}
	return err.Error()
}

// backendMessage is the HTTPError message unless it is only the status text.
func backendMessage(err error) string {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Message == http.StatusText(httpErr.StatusCode) {
		return ""
	}
	return httpErr.Message
}
