// Package regerr defines the error taxonomy shared across the registry
// core. Components raise a Kind rather than a bespoke sentinel so callers
// can branch on failure class with errors.Is/As without importing every
// producer package.
package regerr

import "fmt"

// Kind enumerates the error classes the core can raise.
type Kind string

const (
	InvalidName                Kind = "InvalidName"
	InvalidRef                 Kind = "InvalidRef"
	MalformedDescription       Kind = "MalformedDescription"
	MissingRequiredField       Kind = "MissingRequiredField"
	VersionMismatch            Kind = "VersionMismatch"
	DuplicateVersion           Kind = "DuplicateVersion"
	NoUsablePackageDescription Kind = "NoUsablePackageDescription"
	RepositoryError            Kind = "RepositoryError"
	DbError                    Kind = "DbError"
	DbConflict                 Kind = "DbConflict"
	NotFound                   Kind = "NotFound"
)

// Error is the concrete error type raised by every core package.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, regerr.New(kind, "")) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// OfKind is a convenience sentinel used with errors.Is to test the kind
// of an error without caring about its message or cause.
func OfKind(kind Kind) *Error {
	return &Error{Kind: kind}
}
