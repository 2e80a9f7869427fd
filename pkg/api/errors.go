package api

import "fmt"

// Kind classifies an Error for machine-readable handling at the consumer
// boundary. A failed parse is not an error of any kind; it is the normal
// no-match outcome.
type Kind string

const (
	// KindPermissionDenied means the underlying message source was read
	// without authorization. Not retried.
	KindPermissionDenied Kind = "permission_denied"
	// KindSourceRead wraps a failure while consuming the external message
	// source.
	KindSourceRead Kind = "source_read"
	// KindStorage means an append, read, or clear of the pending store
	// failed. Fatal for that operation; never a silent drop.
	KindStorage Kind = "storage"
)

// Error is a tagged error surfaced to the consumer boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// PermissionDenied builds a permission_denied error.
func PermissionDenied(msg string) *Error {
	return &Error{Kind: KindPermissionDenied, Message: msg}
}

// SourceReadError wraps a collaborator-level failure from the message source.
func SourceReadError(msg string, err error) *Error {
	return &Error{Kind: KindSourceRead, Message: msg, Err: err}
}

// StorageError wraps a pending-store failure.
func StorageError(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}
