package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code is a stable error code for programmatic handling.
type Code string

const (
	CodeInvalid      Code = "invalid"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodePersistence  Code = "persistence"
	CodeNotification Code = "notification"
	CodeInternal     Code = "internal"
)

// FieldErrors maps a field name to its validation message.
type FieldErrors map[string]string

// Add records msg for field unless the field already has a message.
func (f FieldErrors) Add(field, msg string) {
	if _, exists := f[field]; exists {
		return
	}
	f[field] = msg
}

// Err returns nil when no field failed.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return &AppError{Code: CodeInvalid, Message: "validation failed", Fields: f}
}

func (f FieldErrors) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return strings.Join(parts, "; ")
}

// AppError carries a code, a client-safe message and the wrapped cause.
type AppError struct {
	Code    Code
	Message string
	Fields  FieldErrors
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if len(e.Fields) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, e.Fields)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewError(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func WrapError(err error, code Code, message string) *AppError {
	if err == nil {
		return NewError(code, message)
	}
	return &AppError{Code: code, Message: message, Err: err}
}

func ErrValidation(field, message string) *AppError {
	return &AppError{Code: CodeInvalid, Message: "validation failed", Fields: FieldErrors{field: message}}
}

func ErrForbidden(message string) *AppError { return NewError(CodeForbidden, message) }

func ErrNotFound(what string) *AppError { return NewError(CodeNotFound, what+" not found") }

func ErrConflict(message string) *AppError { return NewError(CodeConflict, message) }

func ErrPersistence(err error, message string) *AppError {
	return WrapError(err, CodePersistence, message)
}

func ErrNotification(err error, channel string) *AppError {
	return WrapError(err, CodeNotification, channel+" notification failed")
}

// ErrorCode returns the code of the first AppError in the chain, or CodeInternal.
func ErrorCode(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// IsCode reports whether the outermost AppError in err's chain has code.
// AppErrors nested beneath it are not consulted, matching ErrorCode.
func IsCode(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}
