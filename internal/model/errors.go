package model

import (
	"errors"
	"fmt"
)

// Input validation errors.
// These are wrapped by InputError so callers can use errors.Is() to find
// the specific reason and errors.As() to detect an input error at all.
var (
	// ErrEmptyURL is returned when the initial URL is empty.
	ErrEmptyURL = errors.New("initial URL cannot be empty")

	// ErrUnsupportedScheme is returned when the initial URL is not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme (only http and https are allowed)")

	// ErrMissingHost is returned when the initial URL has no host.
	ErrMissingHost = errors.New("initial URL has no host")

	// ErrNegativeDepth is returned when the requested depth is below zero.
	ErrNegativeDepth = errors.New("depth must be non-negative")

	// ErrNegativeDelay is returned when the pacing delay is below zero.
	ErrNegativeDelay = errors.New("delay must be non-negative")
)

// InputError reports a crawl request that cannot be started.
// It is fatal: no CrawlResult is produced.
type InputError struct {
	// Field is the request field that failed validation.
	Field string

	// Value is the offending value, formatted for display.
	Value string

	// Err is the underlying reason.
	Err error
}

// Error implements the error interface.
func (e *InputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying reason.
func (e *InputError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err is (or wraps) an InputError.
func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}
