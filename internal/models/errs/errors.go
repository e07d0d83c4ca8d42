package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrContentType        = errors.New("invalid content type")
	ErrNotFound           = errors.New("not found")
	ErrDataConflict       = errors.New("data conflict")
	ErrOutOfRange         = errors.New("out of range")
	ErrRateLimit          = errors.New("rate limit")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorizedOrigin = errors.New("origin is not allowed")
)

// Type just for murshallig purpose.
// Should only be used immediately before marshalling.
type JSON struct {
	Error string `json:"error"`
}

// Let users know which required request parameter is not provided.
type RequiredJSONBodyParamError struct {
	ParamName string
}

func (e *RequiredJSONBodyParamError) Error() string {
	return fmt.Sprintf("JSON body argument %q is required, but not found", e.ParamName)
}

// Unwrap makes a missing parameter a payload error.
func (e *RequiredJSONBodyParamError) Unwrap() error {
	return ErrInvalidPayload
}
