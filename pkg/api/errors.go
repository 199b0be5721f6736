package api

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrectnessMismatch marks a step whose result did not match the
	// workflow's expectation.
	ErrCorrectnessMismatch = errors.New("correctness mismatch")

	// ErrCache wraps every failure of the persistent cache.
	ErrCache = errors.New("cache error")

	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidRecord = errors.New("invalid record")

	// ErrThreadScope is returned when a context bound to one thread is used
	// against another.
	ErrThreadScope = errors.New("session context bound to a different thread")
)

// MismatchError carries the diagnostic of a correctness mismatch.
type MismatchError struct {
	Msg string
}

func (e *MismatchError) Error() string {
	return e.Msg
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrCorrectnessMismatch
}

// Mismatch returns a *MismatchError with a formatted message.
func Mismatch(format string, args ...any) error {
	return &MismatchError{Msg: fmt.Sprintf(format, args...)}
}

// ErrorKind is the coarse category of a step failure.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindTransport
	KindCache
	KindMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindCache:
		return "cache"
	case KindMismatch:
		return "mismatch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Classify maps an error returned by a step to its kind. Any error that is
// neither a cache failure nor a mismatch counts as a transport error.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCorrectnessMismatch):
		return KindMismatch
	case errors.Is(err, ErrCache):
		return KindCache
	default:
		return KindTransport
	}
}
