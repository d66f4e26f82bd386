package shared

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Callback listener errors
	ErrListenerBind    = fmt.Errorf("failed to bind callback listener")
	ErrNoCallback      = fmt.Errorf("no valid callback received")
	ErrInvalidCallback = fmt.Errorf("failed to parse authorization code from callback URL")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrWorkerStopped      = fmt.Errorf("credential worker stopped")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// ErrorKind classifies failures crossing the retry boundary.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTransport
	KindRateLimited
	KindUnauthorized
	KindServer
	KindHTTP
	KindRefreshFailed
	KindExhausted
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthorized:
		return "unauthorized"
	case KindServer:
		return "server"
	case KindHTTP:
		return "http"
	case KindRefreshFailed:
		return "refresh_failed"
	case KindExhausted:
		return "exhausted"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// HTTPError is a non-2xx response returned by the remote API.
type HTTPError struct {
	StatusCode int
	Header     http.Header
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("spotify API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.StatusCode, e.Body)
}

// RetryAfter parses the Retry-After header as whole seconds.
//
// Returns fallback when the header is absent or not a non-negative integer.
func (e *HTTPError) RetryAfter(fallback time.Duration) time.Duration {
	if e.Header == nil {
		return fallback
	}
	v := strings.TrimSpace(e.Header.Get("Retry-After"))
	secs, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// Kind maps the status code onto the retry taxonomy.
func (e *HTTPError) Kind() ErrorKind {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindServer
	default:
		return KindHTTP
	}
}

// APIError is the structured failure returned to callers of the request wrapper.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Attempts   int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an APIError against ErrAPIRequest.
func (e *APIError) Is(target error) bool {
	return target == ErrAPIRequest
}

// KindOf extracts the [ErrorKind] from err, inspecting [APIError] first and [HTTPError] second.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Kind()
	}

	return KindTransport
}
