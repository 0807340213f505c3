// Package errors provides the error handling system for the ledgerchat relay.
// Every failure a request can hit is represented as a RequestError carrying a
// kind, an HTTP status, and the caller-facing message; the handler pipeline
// returns these as tagged results and a single writer maps them onto the
// wire.
//
// The relay speaks two failure shapes. Structural input problems are written
// as {"error": "..."} and are meant for the calling program. Everything the
// end user might see in a conversational UI degrades to {"reply": "..."} so
// the frontend can render it like any other assistant turn.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the zap logger used by helpers in this package when no
// explicit logger is at hand. It can be overridden with SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// A nil logger is ignored so logging can never be disabled by accident.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// Kind categorizes request failures.
type Kind string

const (
	// ValidationError represents malformed or missing client input
	ValidationError Kind = "validation_error"

	// MethodError represents an unsupported HTTP verb
	MethodError Kind = "method_error"

	// ConfigError represents a deployment without an upstream credential
	ConfigError Kind = "config_error"

	// UpstreamError represents a non-2xx answer from the completion API
	UpstreamError Kind = "upstream_error"

	// InternalError represents transport failures and anything unexpected
	InternalError Kind = "internal_error"
)

// RequestError is the tagged result a pipeline step returns when it
// terminates a request early.
type RequestError struct {
	// Kind categorizes the failure
	Kind Kind

	// Code is the HTTP status to answer with
	Code int

	// Message is the caller-facing text
	Message string

	// Conversational selects the {"reply": ...} wire shape instead of
	// {"error": ...}
	Conversational bool

	// err is the underlying cause, logged server-side only
	err error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *RequestError) Unwrap() error {
	return e.err
}

// Is matches on Kind only, so callers can test the category without
// caring about message wording.
func (e *RequestError) Is(target error) bool {
	t, ok := target.(*RequestError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Write serializes a RequestError onto the response using the shape its
// Conversational flag selects.
func Write(w http.ResponseWriter, e *RequestError) {
	if e.Conversational {
		WriteReply(w, e.Code, e.Message)
		return
	}
	WriteError(w, e.Code, e.Message)
}

// WriteError writes a structural error body: {"error": message}.
func WriteError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		DefaultLogger.Error("Failed to encode error response", zap.Error(err))
	}
}

// WriteReply writes a conversational degradation body: {"reply": message}.
func WriteReply(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"reply": message}); err != nil {
		DefaultLogger.Error("Failed to encode reply response", zap.Error(err))
	}
}
