package shared

import (
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrPlaylistCreation   = fmt.Errorf("playlist creation failed")
	ErrTrackNotFound      = fmt.Errorf("track not found")

	// Chart errors
	ErrFetch         = fmt.Errorf("chart fetch failed")
	ErrExtraction    = fmt.Errorf("chart extraction failed")
	ErrUnknownSource = fmt.Errorf("unknown chart source")
	ErrNoMatches     = fmt.Errorf("no tracks resolved")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// ExtractionError is returned when no extraction strategy produced a single entry for a source.
type ExtractionError struct {
	Source     string
	Strategies []string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%v: source %q yielded no entries (tried %v)", ErrExtraction, e.Source, e.Strategies)
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// AuthError reports rejected or missing credentials. It always aborts a run.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v (status %d): %v", ErrAuthFailed, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%v (status %d)", ErrAuthFailed, e.StatusCode)
}

func (e *AuthError) Unwrap() []error { return unwrapWith(ErrAuthFailed, e.Err) }

// RateLimitError is returned for HTTP 429. RetryAfter is zero when the server sent no hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// ServiceUnavailableError covers 5xx responses and transport failures.
type ServiceUnavailableError struct {
	StatusCode int
	Err        error
}

func (e *ServiceUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v (status %d): %v", ErrServiceUnavailable, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%v (status %d)", ErrServiceUnavailable, e.StatusCode)
}

func (e *ServiceUnavailableError) Unwrap() []error { return unwrapWith(ErrServiceUnavailable, e.Err) }

// APIError is any other non-2xx response. It is not retried.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%v with status %d: %s", ErrAPIRequest, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return ErrAPIRequest }

// PlaylistCreationError wraps the failure to create the destination playlist container.
type PlaylistCreationError struct {
	Name string
	Err  error
}

func (e *PlaylistCreationError) Error() string {
	return fmt.Sprintf("%v: %q: %v", ErrPlaylistCreation, e.Name, e.Err)
}

func (e *PlaylistCreationError) Unwrap() []error { return unwrapWith(ErrPlaylistCreation, e.Err) }

// IsTransient reports whether err is worth retrying: rate limiting, 5xx, or a network failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServiceUnavailable) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsAuth reports whether err carries an [AuthError].
func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

func unwrapWith(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, cause}
}
