package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

//Kind classifies an error so that it can be mapped onto a response at the request boundary
type Kind int

const (
	//KindInternal is anything we did not anticipate
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindDuplicate
	KindUnauthorized
	KindForbidden
)

//Code returns the stable error code reported to clients
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindDuplicate:
		return "DUPLICATE"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	}
	return "INTERNAL_ERROR"
}

//HTTPStatus returns the status code that corresponds to the kind
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicate:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

//Error is a recoverable, client facing error
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
}

func (e *Error) Error() string {
	return e.Message
}

//WithDetail attaches a key/value pair that is reported alongside the message
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

//Validation reports malformed or out of range input
func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

//NotFound reports that a requested entity does not exist
func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

//Duplicate reports a uniqueness violation
func Duplicate(format string, args ...interface{}) *Error {
	return newError(KindDuplicate, format, args...)
}

//Unauthorized reports missing or invalid credentials
func Unauthorized(format string, args ...interface{}) *Error {
	return newError(KindUnauthorized, format, args...)
}

//Forbidden reports that the authenticated principal does not own the resource
func Forbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, format, args...)
}

//KindOf digs through wrapped errors and returns the kind of the first *Error it finds
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

//IsNotFound is a convenience for KindOf(err) == KindNotFound
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
