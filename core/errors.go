package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// notFound marks sentinel errors that map to a 404.
type notFound struct {
	message string
}

func NewNotFoundError(msg string) error {
	return &notFound{message: msg}
}

func (nf notFound) Error() string {
	return nf.message
}

func IsNotFound(err error) bool {
	var nf *notFound
	return errors.As(err, &nf)
}

// conflict marks sentinel errors that map to a 409.
type conflict struct {
	message string
}

func NewConflictError(msg string) error {
	return &conflict{message: msg}
}

func (c conflict) Error() string {
	return c.message
}

func IsConflict(err error) bool {
	var c *conflict
	return errors.As(err, &c)
}

// forbidden marks sentinel errors that map to a 403.
type forbidden struct {
	message string
}

func NewForbiddenError(msg string) error {
	return &forbidden{message: msg}
}

func (f forbidden) Error() string {
	return f.message
}

func IsForbidden(err error) bool {
	var f *forbidden
	return errors.As(err, &f)
}

// unavailable marks failures of a dependency that the caller may retry; they map to a 503.
type unavailable struct {
	message string
}

func NewUnavailableError(msg string) error {
	return &unavailable{message: msg}
}

func (u unavailable) Error() string {
	return u.message
}

func IsUnavailable(err error) bool {
	var u *unavailable
	return errors.As(err, &u)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
