package emt

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField marks a response that lacks a key or array element the parser needs.
	ErrMissingField = errors.New("missing field")
	// ErrNotAuthenticated is returned by client calls made before Authenticate succeeded.
	ErrNotAuthenticated = errors.New("client is not authenticated")
)

// ParseError reports a structurally broken response, as opposed to a rejection the provider
// signals through its response code.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to get %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}
