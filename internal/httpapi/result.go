package httpapi

import (
	"errors"
	"net/http"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

// Result is the response envelope for every JSON route.
// - code: ResultSuccess on success, ResultError otherwise
// - type: "success" | "error"
// - error_code: stable models.ErrorCode on failure
type Result[T any] struct {
	Code      int              `json:"code"`
	Type      string           `json:"type"`
	Message   string           `json:"message"`
	ErrorCode models.ErrorCode `json:"error_code,omitempty"`
	Result    T                `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(code models.ErrorCode, message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, ErrorCode: code}
}

// statusFor maps an error code to the HTTP status.
func statusFor(code models.ErrorCode) int {
	switch code {
	case models.CodeValidation, models.CodeTimeParse:
		return http.StatusBadRequest
	case models.CodeNotFound, models.CodeIdentityNotFound:
		return http.StatusNotFound
	case models.CodeDuplicateCheckIn, models.CodeCheckOutWithoutCheckIn:
		return http.StatusConflict
	case models.CodeNoActiveSession:
		return http.StatusUnprocessableEntity
	case models.CodePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// failure builds the envelope for err. Only the coded message is exposed;
// wrapped causes (driver errors) stay in the logs.
func failure(err error) (int, Result[any]) {
	var e *models.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, Fail(models.CodeInternal, "internal error")
	}
	return statusFor(e.Code), Fail(e.Code, e.Message)
}
