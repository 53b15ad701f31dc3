package restapi

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBaseURL = errors.New("restapi: base URL is required")
	ErrNilSession   = errors.New("restapi: session is required")
)

// APIError is a server rejection that does not map to one of the transport
// error categories, e.g. a validation failure or a version conflict.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("restapi: server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("restapi: %s (status %d)", e.Message, e.StatusCode)
}
