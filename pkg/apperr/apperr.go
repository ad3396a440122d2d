package apperr

import (
	"errors"
	"fmt"
)

// Kind groups failures by what the caller can do about them.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindIntegrity    Kind = "integrity"
	KindCollaborator Kind = "collaborator"
	KindInternal     Kind = "internal"
)

// Error carries the kind, the underlying sentinel and the offending key
// (a product id, a line number, a discount code...).
type Error struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Kind, e.Err, e.Key)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, err error, key string) error {
	return &Error{Kind: kind, Key: key, Err: err}
}

func Validation(err error, key string) error   { return newErr(KindValidation, err, key) }
func NotFound(err error, key string) error     { return newErr(KindNotFound, err, key) }
func Conflict(err error, key string) error     { return newErr(KindConflict, err, key) }
func Integrity(err error, key string) error    { return newErr(KindIntegrity, err, key) }
func Collaborator(err error, key string) error { return newErr(KindCollaborator, err, key) }

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// KeyOf returns the offending key recorded on err, if any.
func KeyOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Key
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
