package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/clubledger/objectgate"
)

// Errors for configuration and input validation.
var (
	ErrConfigRequired   = errors.New("config is required")
	ErrEndpointRequired = errors.New("endpoint is required")
	ErrEmptyPath        = errors.New("path is required")
)

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func parseServerError(statusCode int, body []byte) error {
	e := &APIError{StatusCode: statusCode, Body: string(body)}
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		e.Code = envelope.Error
		e.Message = envelope.Message
	}
	return e
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return "server error: " + strconv.Itoa(e.StatusCode) + " " + e.Code + ": " + e.Message
	}
	return "server error: " + strconv.Itoa(e.StatusCode) + " - " + e.Body
}

// Unwrap maps the status back onto the gateway's sentinel errors, so
// callers can use errors.Is(err, objectgate.ErrObjectNotFound).
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return objectgate.ErrObjectNotFound
	case http.StatusUnauthorized:
		return objectgate.ErrUnauthorized
	case http.StatusServiceUnavailable:
		return objectgate.ErrBrokerUnavailable
	case http.StatusConflict:
		return objectgate.ErrObjectExists
	case http.StatusBadRequest:
		if e.Code == "invalid_policy" {
			return objectgate.ErrInvalidPolicy
		}
		return objectgate.ErrInvalidInput
	default:
		return nil
	}
}

// IsNotFound returns true if the error is a 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
