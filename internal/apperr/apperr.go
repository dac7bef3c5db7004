// Package apperr defines the error classifications shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound covers both missing entities and entities owned by another user.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAction is returned for unknown actions and actions with no edge from the current state.
	ErrInvalidAction = errors.New("invalid action")
	// ErrStaleState is returned when a concurrent request moved the entity first.
	ErrStaleState = errors.New("state changed concurrently")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("already exists")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Validation(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

type QuotaExceededError struct {
	Resource string // campaigns / prospects / leads
	Plan     string
	Limit    int
	Current  int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded for %s plan (%d/%d)", e.Resource, e.Plan, e.Current, e.Limit)
}

type RateLimitedError struct {
	Action    string
	Remaining int
	ResetAt   time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Action, e.ResetAt.Format(time.RFC3339))
}

type ExternalServiceError struct {
	Service   string
	Retryable bool
	Err       error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is an external failure the caller may retry.
func IsRetryable(err error) bool {
	var ext *ExternalServiceError
	return errors.As(err, &ext) && ext.Retryable
}
