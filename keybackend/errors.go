package keybackend

import "errors"

// ErrKeyNotFound is returned when no signing key has the requested id.
var ErrKeyNotFound = errors.New("signing key not found")
