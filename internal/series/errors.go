package series

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the anchor occurrence does not exist.
// Handlers map this to HTTP 404.
var ErrNotFound = errors.New("occurrence not found")

// ErrForbidden is returned when the requester does not own the anchor.
// No write happens. Handlers map this to HTTP 403.
var ErrForbidden = errors.New("not the owner of this posting")

// ErrValidation is returned for malformed or disallowed patch fields and bad
// scope values. Handlers map this to HTTP 400.
var ErrValidation = errors.New("validation error")

// StoreError wraps a persistence failure. The Op and cause are for server
// logs; callers get a generic message. A scope mutation is one statement, so
// a StoreError always means nothing changed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
