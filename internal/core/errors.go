// Package core provides core types and interfaces shared by the video and PDF front-ends.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failure so callers can decide what is retryable
// and what to show the user.
type ErrorKind string

const (
	// KindConfiguration indicates missing or invalid configuration (API keys, DSNs)
	KindConfiguration ErrorKind = "configuration_error"
	// KindTransientRemote indicates a remote failure worth retrying (429, 5xx, network)
	KindTransientRemote ErrorKind = "transient_remote_error"
	// KindPermanentRemote indicates a remote failure that will not succeed on retry (4xx)
	KindPermanentRemote ErrorKind = "permanent_remote_error"
	// KindUserInput indicates the user supplied something unusable
	KindUserInput ErrorKind = "user_input_error"
	// KindProcessingTimeout indicates a remote processing job did not finish in time
	KindProcessingTimeout ErrorKind = "processing_timeout_error"
	// KindNotFound indicates a missing run, file or document
	KindNotFound ErrorKind = "not_found_error"
	// KindInternal is reported for errors that carry no kind
	KindInternal ErrorKind = "internal_error"
)

// Error is the base error type for all classified failures
type Error struct {
	Kind       ErrorKind `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Provider   string    `json:"provider,omitempty"`
	// Original error for debugging (not exposed to users)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same call may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransientRemote
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Kind {
	case KindConfiguration:
		return http.StatusInternalServerError
	case KindUserInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindProcessingTimeout:
		return http.StatusGatewayTimeout
	case KindTransientRemote:
		return http.StatusServiceUnavailable
	case KindPermanentRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *Error) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    e.Kind,
			"message": e.Message,
		},
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string, err error) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: message,
		Err:     err,
	}
}

// NewTransientError creates a retryable remote error
func NewTransientError(provider string, statusCode int, message string, err error) *Error {
	return &Error{
		Kind:       KindTransientRemote,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
		Err:        err,
	}
}

// NewPermanentError creates a non-retryable remote error
func NewPermanentError(provider string, statusCode int, message string, err error) *Error {
	return &Error{
		Kind:       KindPermanentRemote,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
		Err:        err,
	}
}

// NewUserInputError creates a user input error (400)
func NewUserInputError(message string, err error) *Error {
	return &Error{
		Kind:       KindUserInput,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewProcessingTimeoutError creates an error for remote processing that outlived its deadline
func NewProcessingTimeoutError(provider string, message string, err error) *Error {
	return &Error{
		Kind:       KindProcessingTimeout,
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
		Provider:   provider,
		Err:        err,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string) *Error {
	return &Error{
		Kind:       KindNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// ErrorFromStatus classifies a remote failure by its HTTP status code.
func ErrorFromStatus(provider string, statusCode int, message string, err error) *Error {
	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode >= 500:
		return NewTransientError(provider, http.StatusServiceUnavailable, message, err)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e := NewConfigurationError(message, err)
		e.Provider = provider
		e.StatusCode = http.StatusBadGateway
		return e
	case statusCode == http.StatusNotFound:
		return NewPermanentError(provider, http.StatusBadGateway, message, err)
	default:
		return NewPermanentError(provider, http.StatusBadGateway, message, err)
	}
}

// ParseProviderError parses an error response body from a provider and classifies it
func ParseProviderError(provider string, statusCode int, body []byte, originalErr error) *Error {
	var errorResponse struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	if err := json.Unmarshal(body, &errorResponse); err == nil && errorResponse.Error.Message != "" {
		message = errorResponse.Error.Message
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	return ErrorFromStatus(provider, statusCode, message, originalErr)
}

// KindOf returns the kind of err, looking through wrapped errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindProcessingTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindTransientRemote
	}
	return KindInternal
}

// AsError returns err as *Error, wrapping unclassified errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Kind:    KindOf(err),
		Message: err.Error(),
		Err:     err,
	}
}

// UserMessage renders err as a sentence suitable for display.
func UserMessage(err error) string {
	e := AsError(err)
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindConfiguration:
		return "the service is not configured correctly: " + e.Message
	case KindTransientRemote:
		return "the remote service is temporarily unavailable, please try again: " + e.Message
	case KindPermanentRemote:
		return "the remote service rejected the request: " + e.Message
	case KindProcessingTimeout:
		return "remote processing timed out: " + e.Message
	case KindUserInput, KindNotFound:
		return e.Message
	default:
		return e.Message
	}
}
