// Package errors defines the structured error taxonomy shared by the engine
// and the surfaces that call it (MCP server, queue worker).
//
// Engine packages return *EngineError values for rejected input. Callers
// classify them with IsInvalidImage, IsInvalidParameter or IsClientError and
// map them onto their own status codes and retry policies.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode enumerates the failure classes.
type ErrorCode string

const (
	// Rejected input
	ErrorInvalidImage     ErrorCode = "INVALID_IMAGE"
	ErrorInvalidParameter ErrorCode = "INVALID_PARAMETER"
	ErrorDecodeFailed     ErrorCode = "DECODE_FAILED"

	// Worker
	ErrorJobFailed ErrorCode = "JOB_FAILED"
)

// EngineError is a structured, wrappable error.
type EngineError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Factory functions

func NewInvalidImageError(width, height, channels int, reason string) *EngineError {
	return &EngineError{
		Code:    ErrorInvalidImage,
		Message: fmt.Sprintf("invalid image %dx%dx%d: %s", width, height, channels, reason),
		Details: map[string]interface{}{
			"width":    width,
			"height":   height,
			"channels": channels,
		},
	}
}

func NewInvalidParameterError(name string, value interface{}, reason string) *EngineError {
	return &EngineError{
		Code:    ErrorInvalidParameter,
		Message: fmt.Sprintf("invalid parameter %s=%v: %s", name, value, reason),
		Details: map[string]interface{}{
			"parameter": name,
			"value":     value,
		},
	}
}

func NewDecodeError(source string, cause error) *EngineError {
	return &EngineError{
		Code:    ErrorDecodeFailed,
		Message: fmt.Sprintf("failed to decode image from %s", source),
		Details: map[string]interface{}{
			"source": source,
		},
		Cause: cause,
	}
}

func NewJobFailedError(jobID string, cause error) *EngineError {
	return &EngineError{
		Code:    ErrorJobFailed,
		Message: fmt.Sprintf("job %s failed", jobID),
		Details: map[string]interface{}{
			"job_id": jobID,
		},
		Cause: cause,
	}
}

// CodeOf returns the code of the first EngineError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *EngineError
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsInvalidImage(err error) bool {
	return CodeOf(err) == ErrorInvalidImage
}

func IsInvalidParameter(err error) bool {
	return CodeOf(err) == ErrorInvalidParameter
}

// IsClientError reports whether err was caused by the caller's input, so a
// retry with the same input cannot succeed.
func IsClientError(err error) bool {
	switch CodeOf(err) {
	case ErrorInvalidImage, ErrorInvalidParameter, ErrorDecodeFailed:
		return true
	}
	return false
}

// ToMap flattens the error for JSON error payloads.
func (e *EngineError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
