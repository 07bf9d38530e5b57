package providers

import (
	"net/http"

	"github.com/BaSui01/agentwatch/types"
)

// MapHTTPError maps an upstream HTTP status to a ProviderError with the
// matching code and retry flag.
func MapHTTPError(status int, msg string, provider string) *types.ProviderError {
	var (
		code      types.ErrorCode
		retryable bool
	)
	switch {
	case status == http.StatusUnauthorized:
		code = types.ErrUnauthorized
	case status == http.StatusForbidden:
		code = types.ErrForbidden
	case status == http.StatusTooManyRequests:
		code, retryable = types.ErrRateLimited, true
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		code, retryable = types.ErrUpstreamTimeout, true
	case status == http.StatusServiceUnavailable:
		code, retryable = types.ErrProviderUnavailable, true
	case status >= 500:
		code, retryable = types.ErrUpstreamError, true
	case status >= 400:
		code = types.ErrInvalidRequest
	default:
		code = types.ErrUpstreamError
	}
	return types.NewProviderError(code, msg).
		WithHTTPStatus(status).
		WithRetryable(retryable).
		WithProvider(provider)
}
