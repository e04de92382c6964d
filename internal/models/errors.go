package models

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable machine-readable code returned to callers.
type ErrorCode string

const (
	CodeValidation             ErrorCode = "VALIDATION_ERROR"
	CodeTimeParse              ErrorCode = "TIME_PARSE_ERROR"
	CodeNoActiveSession        ErrorCode = "NO_ACTIVE_SESSION"
	CodePersistence            ErrorCode = "PERSISTENCE_ERROR"
	CodeNotFound               ErrorCode = "NOT_FOUND"
	CodeDuplicateCheckIn       ErrorCode = "DUPLICATE_CHECK_IN"
	CodeCheckOutWithoutCheckIn ErrorCode = "NO_CHECK_IN_TODAY"
	CodeIdentityNotFound       ErrorCode = "IDENTITY_NOT_FOUND"
	CodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// Error is a coded failure. Two *Error values match under errors.Is when
// their codes are equal, so the sentinels below can be used as targets.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrValidation             = &Error{Code: CodeValidation, Message: "invalid input"}
	ErrTimeParse              = &Error{Code: CodeTimeParse, Message: "unrecognized timestamp"}
	ErrNoActiveSession        = &Error{Code: CodeNoActiveSession, Message: "no active session"}
	ErrPersistence            = &Error{Code: CodePersistence, Message: "store unavailable"}
	ErrNotFound               = &Error{Code: CodeNotFound, Message: "not found"}
	ErrDuplicateCheckIn       = &Error{Code: CodeDuplicateCheckIn, Message: "employee already checked in today"}
	ErrCheckOutWithoutCheckIn = &Error{Code: CodeCheckOutWithoutCheckIn, Message: "employee has not checked in today"}
	ErrIdentityNotFound       = &Error{Code: CodeIdentityNotFound, Message: "identity not recognized"}
)

// NewError builds a coded error wrapping cause (which may be nil).
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// ValidationError reports a malformed input field.
func ValidationError(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code of the outermost *Error in err's chain,
// or CodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
