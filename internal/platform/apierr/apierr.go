package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps a domain error onto an HTTP status. An *Error passes
// through unchanged.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	code := faults.CodeOf(err)
	if code == "" {
		code = faults.CodeInternal
	}
	return &Error{Status: StatusFor(code), Code: string(code), Err: err}
}

func StatusFor(code faults.Code) int {
	switch code {
	case faults.CodeNotFound:
		return http.StatusNotFound
	case faults.CodePersistenceUnavailable:
		return http.StatusServiceUnavailable
	case faults.CodeValidation, faults.CodeParse:
		return http.StatusUnprocessableEntity
	case faults.CodeConflict:
		return http.StatusConflict
	case faults.CodeUnauthenticated:
		return http.StatusUnauthorized
	case faults.CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
