package registration

import (
	"errors"

	"coursebridge/apperr"
)

// Protocol error codes returned to bridged content in the errorCode field.
const (
	CodeNoError             = "0"
	CodeGeneral             = "101"
	CodeTerminated          = "143"
	CodeNotInitialized      = "301"
	CodeStoreFailure        = "351"
	CodeUnknownRegistration = "404"
)

var (
	ErrNotInitialized = &apperr.Error{Kind: apperr.KindState, Message: "registration is not initialized"}
	ErrTerminated     = &apperr.Error{Kind: apperr.KindState, Message: "registration is finished"}
)

// ErrorCode maps a manager error to its protocol code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return CodeNoError
	case errors.Is(err, ErrNotInitialized):
		return CodeNotInitialized
	case errors.Is(err, ErrTerminated):
		return CodeTerminated
	case errors.Is(err, apperr.ErrNotFound):
		return CodeUnknownRegistration
	case errors.Is(err, apperr.ErrStorage):
		return CodeStoreFailure
	default:
		return CodeGeneral
	}
}
