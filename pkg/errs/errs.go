// Package errs defines the closed error taxonomy used by the billing engine.
//
// Callers branch on Kind rather than on message text. Every Error may carry an
// underlying cause which remains reachable through errors.Is / errors.As.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindTransientStore Kind = "transient_store"
	KindAllocation     Kind = "allocation"
	KindCreationFailed Kind = "creation_failed"
	KindConflict       Kind = "conflict"
	KindNotFound       Kind = "not_found"
	KindInternal       Kind = "internal"
)

type Metadata struct {
	HTTPStatus int
	Retryable  bool
	Audited    bool
}

var metadataByKind = map[Kind]Metadata{
	KindValidation:     {HTTPStatus: http.StatusBadRequest, Retryable: false, Audited: false},
	KindTransientStore: {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, Audited: true},
	KindAllocation:     {HTTPStatus: http.StatusServiceUnavailable, Retryable: false, Audited: true},
	KindCreationFailed: {HTTPStatus: http.StatusBadGateway, Retryable: false, Audited: true},
	KindConflict:       {HTTPStatus: http.StatusConflict, Retryable: false, Audited: false},
	KindNotFound:       {HTTPStatus: http.StatusNotFound, Retryable: false, Audited: false},
	KindInternal:       {HTTPStatus: http.StatusInternalServerError, Retryable: false, Audited: true},
}

// MetadataFor returns the handling policy of a kind. Unknown kinds are internal.
func MetadataFor(kind Kind) Metadata {
	if meta, ok := metadataByKind[kind]; ok {
		return meta
	}
	return metadataByKind[KindInternal]
}

type Error struct {
	kind    Kind
	code    string
	message string
	cause   error
}

func New(kind Kind, code, message string) *Error {
	return &Error{kind: kind, code: code, message: message}
}

// Wrap takes the cause's text as the code only when it is a snake_case
// sentinel; driver messages fall back to the kind.
func Wrap(kind Kind, err error, message string) *Error {
	code := ""
	if err != nil && isCode(err.Error()) {
		code = err.Error()
	}
	return &Error{kind: kind, code: code, message: message, cause: err}
}

func isCode(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

func (e *Error) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

// Code is the stable snake_case identifier exposed to API clients.
func (e *Error) Code() string {
	if e == nil {
		return ""
	}
	if e.code != "" {
		return e.code
	}
	return string(e.kind)
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.message != "" && e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	case e.message != "":
		return fmt.Sprintf("%s: %s", e.kind, e.message)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.kind, e.cause)
	default:
		return string(e.kind)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Validation wraps a domain sentinel as a pre-persistence rejection.
func Validation(err error, message string) *Error {
	return Wrap(KindValidation, err, message)
}

func Transient(err error, message string) *Error {
	return Wrap(KindTransientStore, err, message)
}

func Allocation(err error, message string) *Error {
	return Wrap(KindAllocation, err, message)
}

func Conflict(err error, message string) *Error {
	return Wrap(KindConflict, err, message)
}

func NotFound(err error, message string) *Error {
	return Wrap(KindNotFound, err, message)
}

// KindOf reports the kind of the first taxonomy error in err's chain.
// Errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	// The terminal creation error wraps the last attempt's cause; it must win.
	var failed *CreationFailedError
	if errors.As(err, &failed) {
		return KindCreationFailed
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind()
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsValidation(err error) bool { return IsKind(err, KindValidation) }

func IsTransient(err error) bool { return IsKind(err, KindTransientStore) }

func IsConflict(err error) bool { return IsKind(err, KindConflict) }

func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(KindOf(err)).Retryable
}

// CreationFailedError is the terminal outcome of an exhausted creation retry loop.
type CreationFailedError struct {
	OrderID  string
	Attempts int
	Last     error
}

func (e *CreationFailedError) Error() string {
	return fmt.Sprintf("%s: invoice creation for order %s failed after %d attempts: %v",
		KindCreationFailed, e.OrderID, e.Attempts, e.Last)
}

func (e *CreationFailedError) Unwrap() error { return e.Last }
