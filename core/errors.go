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

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ErrorKind classifies domain errors so transports can map them to their own status codes.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalid
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindMisconfigured
)

// DomainError is a sentinel error raised by the core services.
type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func newDomainError(kind ErrorKind, msg string) error {
	return &DomainError{Kind: kind, Message: msg}
}

func Invalid(msg string) error       { return newDomainError(KindInvalid, msg) }
func Unauthorized(msg string) error  { return newDomainError(KindUnauthorized, msg) }
func Forbidden(msg string) error     { return newDomainError(KindForbidden, msg) }
func NotFound(msg string) error      { return newDomainError(KindNotFound, msg) }
func Conflict(msg string) error      { return newDomainError(KindConflict, msg) }
func Misconfigured(msg string) error { return newDomainError(KindMisconfigured, msg) }

// KindOf returns the ErrorKind of the root cause of err.
func KindOf(err error) ErrorKind {
	if derr, ok := errors.Cause(err).(*DomainError); ok {
		return derr.Kind
	}
	return KindUnknown
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
