package searchstore

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable marks connection failures, timeouts and overload
	// responses. Callers may retry.
	ErrUnavailable = errors.New("search backend unavailable")

	// ErrIndexNotFound indicates the index does not exist.
	ErrIndexNotFound = errors.New("index not found")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrRejected indicates the backend refused the request as invalid.
	ErrRejected = errors.New("request rejected by search backend")
)

// BackendError carries the backend's diagnostic text. Kind is one of the
// sentinel errors above and is matched by errors.Is.
type BackendError struct {
	Op      string
	Status  int
	Reason  string
	Message string
	Kind    error
}

func (e *BackendError) Error() string {
	msg := e.Message
	if r := []rune(msg); len(r) > 300 {
		msg = string(r[:300]) + "..."
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s: %s", e.Op, e.Status, e.Reason, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *BackendError) Unwrap() error {
	return e.Kind
}

// Retryable reports whether err is worth retrying against the backend.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
