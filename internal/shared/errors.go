package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthRequired = fmt.Errorf("no usable credential, log in again")
	ErrAuthFailed   = fmt.Errorf("authentication failed")
	ErrTimeout      = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrRetriesExhausted   = fmt.Errorf("request attempts exhausted")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNoArtists          = fmt.Errorf("no followed artists selected")
	ErrRunNotFound        = fmt.Errorf("run not found")

	// Cancelled is only raised by the track count preview and is meant to be
	// swallowed by callers instead of reported.
	ErrCancelled = fmt.Errorf("cancelled")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// APIError is a non-success response other than 401 and 429.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Body)
}

// Is lets errors.Is(err, ErrAPIRequest) match any APIError.
func (e *APIError) Is(target error) bool {
	return target == ErrAPIRequest
}

// AsAPIError unwraps err to an [APIError] when it carries one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
