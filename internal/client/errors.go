package client

import (
	"errors"
	"fmt"
)

// APIError describes a failed upstream call. Status is the HTTP status the
// upstream answered with, or 0 when no response was received.
type APIError struct {
	Upstream string
	Message  string
	Status   int
	Details  string
	Err      error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Upstream, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Upstream, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// AsAPIError extracts an *APIError from err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
