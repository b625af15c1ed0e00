// Package errdefs defines the error kinds callers branch on. Every error that
// crosses a component boundary carries a kind and a human-readable message.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies an error
type Kind string

const (
	// KindNotFound: block or container absent. Recoverable.
	KindNotFound Kind = "NOT_FOUND"
	// KindInvalidArgument: malformed request, or an out-of-order or replayed
	// commit sequence id. Retry with a fresh sequence id.
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	// KindContainerNotOpen: write against a container that is not OPEN.
	// Reroute to another container.
	KindContainerNotOpen Kind = "CONTAINER_NOT_OPEN"
	// KindInvalidConfiguration: pipeline membership does not match its
	// replication config. Not retryable.
	KindInvalidConfiguration Kind = "INVALID_CONFIGURATION"
	// KindInternal: routing or deployment defect, e.g. bucket layout mismatch.
	KindInternal Kind = "INTERNAL_ERROR"
	// KindBucketIDMismatch: the bucket changed between planning and commit.
	// Re-resolve the bucket and retry.
	KindBucketIDMismatch Kind = "BUCKET_ID_MISMATCH"
)

// Sentinels for errors.Is; they match any error of the same kind.
var (
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInvalidArgument      = &Error{Kind: KindInvalidArgument}
	ErrContainerNotOpen     = &Error{Kind: KindContainerNotOpen}
	ErrInvalidConfiguration = &Error{Kind: KindInvalidConfiguration}
	ErrInternal             = &Error{Kind: KindInternal}
	ErrBucketIDMismatch     = &Error{Kind: KindBucketIDMismatch}
)

// Error is a (kind, message) pair with an optional cause
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels (no message, no cause) of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to a cause
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFound creates a NOT_FOUND error
func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

// InvalidArgument creates an INVALID_ARGUMENT error
func InvalidArgument(format string, args ...interface{}) *Error {
	return New(KindInvalidArgument, format, args...)
}

// ContainerNotOpen creates a CONTAINER_NOT_OPEN error
func ContainerNotOpen(format string, args ...interface{}) *Error {
	return New(KindContainerNotOpen, format, args...)
}

// InvalidConfiguration creates an INVALID_CONFIGURATION error
func InvalidConfiguration(format string, args ...interface{}) *Error {
	return New(KindInvalidConfiguration, format, args...)
}

// Internal creates an INTERNAL_ERROR error
func Internal(format string, args ...interface{}) *Error {
	return New(KindInternal, format, args...)
}

// BucketIDMismatch creates a BUCKET_ID_MISMATCH error
func BucketIDMismatch(format string, args ...interface{}) *Error {
	return New(KindBucketIDMismatch, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsNotFound(err error) bool             { return KindOf(err) == KindNotFound }
func IsInvalidArgument(err error) bool      { return KindOf(err) == KindInvalidArgument }
func IsContainerNotOpen(err error) bool     { return KindOf(err) == KindContainerNotOpen }
func IsInvalidConfiguration(err error) bool { return KindOf(err) == KindInvalidConfiguration }
func IsInternal(err error) bool             { return KindOf(err) == KindInternal }
func IsBucketIDMismatch(err error) bool     { return KindOf(err) == KindBucketIDMismatch }
