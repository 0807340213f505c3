package errors

import (
	"net/http"
)

// NewRequestError is the general-purpose constructor. Most call sites should
// prefer one of the specialized constructors below.
func NewRequestError(kind Kind, message string, code int, conversational bool, err error) *RequestError {
	return &RequestError{
		Kind:           kind,
		Code:           code,
		Message:        message,
		Conversational: conversational,
		err:            err,
	}
}

// NewValidationError creates a 400 error with a structural body. Use it for
// malformed JSON and missing required fields; the message is machine-facing
// and is written verbatim as {"error": message}.
func NewValidationError(message string) *RequestError {
	return &RequestError{
		Kind:    ValidationError,
		Code:    http.StatusBadRequest,
		Message: message,
	}
}

// NewMethodError creates the 405 answer for verbs other than POST and
// OPTIONS.
func NewMethodError() *RequestError {
	return &RequestError{
		Kind:    MethodError,
		Code:    http.StatusMethodNotAllowed,
		Message: "Method not allowed",
	}
}

// NewConfigError creates the 503 degradation used when no upstream
// credential is configured. The message is conversational so the caller's UI
// can surface it to the end user.
func NewConfigError(message string) *RequestError {
	return &RequestError{
		Kind:           ConfigError,
		Code:           http.StatusServiceUnavailable,
		Message:        message,
		Conversational: true,
	}
}

// NewUpstreamError creates the 502 degradation for non-2xx upstream
// answers. The message must stay generic; the raw upstream detail belongs in
// the server log, never in the response.
func NewUpstreamError(message string, err error) *RequestError {
	return &RequestError{
		Kind:           UpstreamError,
		Code:           http.StatusBadGateway,
		Message:        message,
		Conversational: true,
		err:            err,
	}
}

// NewInternalError creates the 500 degradation for transport failures and
// anything unexpected during the relay.
func NewInternalError(message string, err error) *RequestError {
	return &RequestError{
		Kind:           InternalError,
		Code:           http.StatusInternalServerError,
		Message:        message,
		Conversational: true,
		err:            err,
	}
}
