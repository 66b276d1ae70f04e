package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation  Code = "VALIDATION"
	CodeState       Code = "STATE"
	CodeNotFound    Code = "NOT_FOUND"
	CodeConflict    Code = "CONFLICT"
	CodeProgression Code = "PROGRESSION"
	CodeInternal    Code = "INTERNAL"
)

type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func Wrap(err error, code Code, message string) *AppError {
	return New(code, message, err)
}

func Validation(format string, args ...any) *AppError {
	return New(CodeValidation, fmt.Sprintf(format, args...), nil)
}

func State(format string, args ...any) *AppError {
	return New(CodeState, fmt.Sprintf(format, args...), nil)
}

func NotFound(format string, args ...any) *AppError {
	return New(CodeNotFound, fmt.Sprintf(format, args...), nil)
}

func Conflict(format string, args ...any) *AppError {
	return New(CodeConflict, fmt.Sprintf(format, args...), nil)
}

func Progression(err error, format string, args ...any) *AppError {
	return New(CodeProgression, fmt.Sprintf(format, args...), err)
}

func Internal(err error, message string) *AppError {
	return New(CodeInternal, message, err)
}

// CodeOf returns the code of the outermost AppError in the chain, CodeInternal otherwise.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the user facing message of an AppError, or a generic text for anything else.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
