package handler

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a handler failure that carries the HTTP status to answer with.
// Handlers returning any other error produce a 500.
type Error struct {
	Status int
	Err    error
}

// NewError wraps err with status.
func NewError(status int, err error) *Error {
	return &Error{Status: status, Err: err}
}

// Errorf is NewError with a formatted message.
func Errorf(status int, format string, args ...any) *Error {
	return &Error{Status: status, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Status)
	}
	return fmt.Sprintf("%d %s: %v", e.Status, http.StatusText(e.Status), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusOf returns the status an error maps to: the Status of a wrapped
// *Error when it is a valid error status, otherwise 500.
func StatusOf(err error) int {
	var he *Error
	if errors.As(err, &he) && he.Status >= 400 && he.Status <= 599 {
		return he.Status
	}
	return http.StatusInternalServerError
}
