package domain

import "errors"

type ResultCode string

const (
	CodeSuccess         ResultCode = "SUCCESS"
	CodeNotFound        ResultCode = "NOT_FOUND"
	CodeValidationError ResultCode = "VALIDATION_ERROR"
	CodeConflict        ResultCode = "CONFLICT"
	CodeGeneralError    ResultCode = "GENERAL_ERROR"
)

// Result is the envelope handed to the transport layer. It never carries
// internal error details.
type Result[T any] struct {
	Success bool       `json:"success"`
	Code    ResultCode `json:"code"`
	Message string     `json:"message"`
	Data    T          `json:"data,omitempty"`
}

func OK[T any](data T, message string) Result[T] {
	return Result[T]{Success: true, Code: CodeSuccess, Message: message, Data: data}
}

// Fail maps err onto a coarse result code. Validation, not-found and conflict
// errors keep their message; anything else is reported generically.
func Fail[T any](err error) Result[T] {
	code := CodeOf(err)
	msg := "operation failed"
	if code != CodeGeneralError {
		msg = err.Error()
	}
	return Result[T]{Success: false, Code: code, Message: msg}
}

func CodeOf(err error) ResultCode {
	switch {
	case err == nil:
		return CodeSuccess
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidation):
		return CodeValidationError
	case errors.Is(err, ErrConflict):
		return CodeConflict
	default:
		return CodeGeneralError
	}
}
