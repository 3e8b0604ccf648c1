// Package faults is the error taxonomy shared by the catalogue, the store
// adapter and the composition workflows. Callers branch on the Code.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a failure.
type Code string

const (
	CodeParse                  Code = "parse"
	CodeLoad                   Code = "load"
	CodeNotFound               Code = "not_found"
	CodePersistenceUnavailable Code = "persistence_unavailable"
	CodeValidation             Code = "validation"
	CodeConflict               Code = "conflict"
	CodeUnauthenticated        Code = "unauthenticated"
	CodeForbidden              Code = "forbidden"
	CodeInternal               Code = "internal"
)

// Error is the canonical error wrapper.
type Error struct {
	Code    Code
	Op      string
	Message string
	// Fields lists the offending field paths of a validation failure.
	Fields []string
	Cause  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an error with explicit code and operation.
func New(code Code, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with a code. A nil err stays nil.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(code, op, err.Error(), err)
}

// NotFound reports a missing entity or record.
func NotFound(op, format string, args ...any) error {
	return New(CodeNotFound, op, fmt.Sprintf(format, args...), nil)
}

// Unavailable reports that the persistence store could not serve the call.
func Unavailable(op string, cause error) error {
	msg := "persistence store unavailable"
	if cause != nil {
		msg = msg + ": " + cause.Error()
	}
	return New(CodePersistenceUnavailable, op, msg, cause)
}

// Conflict reports a uniqueness or version conflict.
func Conflict(op, format string, args ...any) error {
	return New(CodeConflict, op, fmt.Sprintf(format, args...), nil)
}

// Validation reports missing or malformed fields. Fields are kept in order.
func Validation(op string, fields []string) error {
	cp := append([]string(nil), fields...)
	return &Error{
		Code:    CodeValidation,
		Op:      strings.TrimSpace(op),
		Message: "missing or invalid fields: " + strings.Join(cp, ", "),
		Fields:  cp,
	}
}

// IsCode checks whether err (or a wrapped err) carries the given code.
func IsCode(err error, code Code) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Code == code
}

// CodeOf extracts the code when available.
func CodeOf(err error) Code {
	var fe *Error
	if !errors.As(err, &fe) {
		return ""
	}
	return fe.Code
}

// FieldsOf returns the field list of a validation error.
func FieldsOf(err error) []string {
	var fe *Error
	if !errors.As(err, &fe) {
		return nil
	}
	return append([]string(nil), fe.Fields...)
}
