// Package runerrors provides the error taxonomy shared by the negotiation and inpainting phases.
//
// Every failure that terminates a run is classified with a Kind so the CLI can
// report which phase failed without string matching.
package runerrors

import (
	"errors"
	"fmt"
)

// Kind categorizes a run failure.
type Kind int8

const (
	// KindConfiguration covers missing credentials and malformed configuration.
	KindConfiguration Kind = iota
	// KindNegotiation covers non-convergence and tool validation failures.
	KindNegotiation
	// KindGeometry covers malformed or out-of-canvas position tuples.
	KindGeometry
	// KindRemoteService covers failed or malformed responses from remote services.
	KindRemoteService
	// KindIO covers filesystem read and write failures.
	KindIO
	// KindUnknown is returned by KindOf for unclassified errors.
	KindUnknown
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindNegotiation:
		return "negotiation"
	case KindGeometry:
		return "geometry"
	case KindRemoteService:
		return "remote_service"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is a classified run failure.
type Error struct {
	Err     error  // Wrapped underlying error
	Op      string // Operation that failed, e.g. "layout.load"
	Message string // Human-readable message
	Kind    Kind
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := e.Kind.String() + " error"
	if e.Op != "" {
		prefix += " (" + e.Op + ")"
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return prefix
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap classifies an existing error. Returns nil when err is nil.
func Wrap(kind Kind, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// Configuration creates a KindConfiguration error.
func Configuration(op, format string, args ...any) *Error {
	return New(KindConfiguration, op, format, args...)
}

// Negotiation creates a KindNegotiation error.
func Negotiation(op, format string, args ...any) *Error {
	return New(KindNegotiation, op, format, args...)
}

// Geometry creates a KindGeometry error.
func Geometry(op, format string, args ...any) *Error {
	return New(KindGeometry, op, format, args...)
}

// RemoteService creates a KindRemoteService error.
func RemoteService(op, format string, args ...any) *Error {
	return New(KindRemoteService, op, format, args...)
}

// IO wraps a filesystem error as KindIO.
func IO(op string, err error, format string, args ...any) error {
	return Wrap(KindIO, op, err, format, args...)
}

// Is reports whether any error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var runErr *Error
		if !errors.As(err, &runErr) {
			return false
		}
		if runErr.Kind == kind {
			return true
		}
		err = runErr.Err
	}
	return false
}

// KindOf returns the kind of the outermost classified error, or KindUnknown.
func KindOf(err error) Kind {
	var runErr *Error
	if errors.As(err, &runErr) {
		return runErr.Kind
	}
	return KindUnknown
}
