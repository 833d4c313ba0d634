package http

import "errors"

var (
	// ErrMissingToken is returned when a protected route is called without a bearer token.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned when the bearer token fails verification.
	ErrInvalidToken = errors.New("invalid bearer token")
)
