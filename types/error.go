package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a stable, machine readable error classification.
type ErrorCode string

// Provider error codes
const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrForbidden           ErrorCode = "FORBIDDEN"
	ErrRateLimited         ErrorCode = "RATE_LIMITED"
	ErrUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamError       ErrorCode = "UPSTREAM_ERROR"
	ErrProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
)

// Tool and configuration error codes
const (
	ErrToolInvocation ErrorCode = "TOOL_INVOCATION"
	ErrToolNotFound   ErrorCode = "TOOL_NOT_FOUND"
	ErrConfiguration  ErrorCode = "CONFIGURATION"
)

// ProviderError reports that the completion provider was unreachable,
// rejected the request, or rate limited it.
type ProviderError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// NewProviderError creates a ProviderError with the given code and message.
func NewProviderError(code ErrorCode, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(e.Code))
	b.WriteString("] ")
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// WithCause adds a cause to the error.
func (e *ProviderError) WithCause(cause error) *ProviderError {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *ProviderError) WithHTTPStatus(status int) *ProviderError {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable. The core never retries on its
// own; the flag is informational for callers.
func (e *ProviderError) WithRetryable(retryable bool) *ProviderError {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *ProviderError) WithProvider(provider string) *ProviderError {
	e.Provider = provider
	return e
}

// ToolInvocationError reports a tool call that failed during a turn.
type ToolInvocationError struct {
	Function string
	Code     ErrorCode
	Cause    error
}

// NewToolInvocationError wraps cause as a failure of the named function.
func NewToolInvocationError(function string, cause error) *ToolInvocationError {
	return &ToolInvocationError{Function: function, Code: ErrToolInvocation, Cause: cause}
}

func (e *ToolInvocationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s] tool %s failed", e.Code, e.Function)
	}
	return fmt.Sprintf("[%s] tool %s failed: %v", e.Code, e.Function, e.Cause)
}

func (e *ToolInvocationError) Unwrap() error { return e.Cause }

// ConfigurationError reports a missing or invalid setting.
type ConfigurationError struct {
	Field   string
	Message string
}

// NewConfigurationError creates a ConfigurationError for field.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("[%s] %s", ErrConfiguration, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", ErrConfiguration, e.Field, e.Message)
}

// JoinConfigurationErrors joins validation failures, returning nil for none.
func JoinConfigurationErrors(errs []*ConfigurationError) error {
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}

// IsRetryable reports whether err carries a retryable ProviderError.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from any error in the chain.
func GetErrorCode(err error) ErrorCode {
	var (
		pe *ProviderError
		te *ToolInvocationError
		ce *ConfigurationError
	)
	switch {
	case errors.As(err, &pe):
		return pe.Code
	case errors.As(err, &te):
		return te.Code
	case errors.As(err, &ce):
		return ErrConfiguration
	}
	return ""
}
