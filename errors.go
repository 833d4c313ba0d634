package objectgate

import "errors"

var (
	// ErrObjectNotFound is returned when a path does not resolve to an existing object
	ErrObjectNotFound = errors.New("object not found")
	// ErrUnauthorized is returned when the ACL policy denies the requested permission
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBrokerUnavailable is returned when the credential broker cannot issue a signed URL
	ErrBrokerUnavailable = errors.New("credential broker unavailable")
	// ErrConfigurationMissing is returned when a required storage setting is absent
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrStreamingFailure is returned when an I/O error interrupts a download
	ErrStreamingFailure = errors.New("streaming failure")
	// ErrInvalidPolicy is returned when an ACL policy fails validation
	ErrInvalidPolicy = errors.New("invalid acl policy")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrObjectExists is returned when bytes are sent to an id that already holds an object
	ErrObjectExists = errors.New("object already exists")
)
