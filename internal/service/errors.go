package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ultrathink/discovery-web/internal/client"
	"github.com/ultrathink/discovery-web/internal/store"
	"github.com/ultrathink/discovery-web/internal/validate"
)

// ValidationError is user input rejected before any call was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field string, r validate.Result) error {
	return &ValidationError{Field: field, Message: r.Error}
}

// storeError turns a call failure into the error shown in a store.
func storeError(err error) *store.Error {
	if apiErr, ok := client.AsAPIError(err); ok {
		if errors.Is(err, context.Canceled) {
			return &store.Error{Message: "Request was cancelled"}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return &store.Error{Message: "Request timed out", Details: apiErr.Details}
		}
		return &store.Error{
			Message: apiErr.Message,
			Status:  apiErr.Status,
			Details: apiErr.Details,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &store.Error{Message: "Request was cancelled"}
	}
	return &store.Error{Message: err.Error()}
}
