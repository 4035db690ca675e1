package openaichat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"

	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

// UpstreamError is a non-2xx response, or an error payload inside a stream, from the backend.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

// Error returns the backend's error message when the body carries one.
func (e *UpstreamError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("upstream returned %d", e.StatusCode)
}

// Message extracts error.message (or a bare string error) from the body.
func (e *UpstreamError) Message() string {
	if len(e.Body) == 0 || !gjson.ValidBytes(e.Body) {
		return strings.TrimSpace(string(e.Body))
	}
	errField := gjson.GetBytes(e.Body, "error")
	if errField.Type == gjson.String {
		return errField.Str
	}
	if msg := errField.Get("message").String(); msg != "" {
		return msg
	}
	return gjson.GetBytes(e.Body, "message").String()
}

// Retryable reports whether the request may succeed when sent again.
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// errorHints adds guidance for upstream failures whose raw message is not actionable on its own.
var errorHints = []struct {
	match string
	hint  string
}{
	{"unsupported_country_region_territory", "The backend rejected the request's region. Configure upstream.base_url to a provider reachable from this location."},
	{"invalid_api_key", "The upstream API key was rejected. Update it with `claudebridge auth set-key` or OPENAI_API_KEY."},
	{"incorrect api key", "The upstream API key was rejected. Update it with `claudebridge auth set-key` or OPENAI_API_KEY."},
	{"insufficient_quota", "The upstream account has no remaining quota. Check billing with the provider."},
	{"model_not_found", "The mapped backend model does not exist. Check the models.big/middle/small settings."},
}

// toErrorResponse converts any error into the Anthropic error envelope. Upstream HTTP errors keep
// their status; timeouts become 504 api_error; an open circuit becomes overloaded_error.
// Anything else is reported as api_error.
func toErrorResponse(err error) *types.ErrorResponse {
	if err == nil {
		return nil
	}

	var errResp *types.ErrorResponse
	if errors.As(err, &errResp) {
		return errResp
	}

	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		message := upstreamErr.Message()
		if message == "" {
			message = http.StatusText(upstreamErr.StatusCode)
		}
		resp := types.NewErrorResponse(errorTypeForStatus(upstreamErr.StatusCode), withHint(message, upstreamErr.Body))
		resp.StatusCode = upstreamErr.StatusCode
		return resp
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		resp := types.NewErrorResponse(types.ErrorTypeOverloaded, "upstream temporarily unavailable: "+err.Error())
		resp.StatusCode = http.StatusServiceUnavailable
		return resp
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		resp := types.NewErrorResponse(types.ErrorTypeAPI, "upstream request timed out: "+err.Error())
		resp.StatusCode = http.StatusGatewayTimeout
		return resp
	}

	resp := types.NewErrorResponse(types.ErrorTypeAPI, err.Error())
	resp.StatusCode = http.StatusBadGateway
	return resp
}

// errorTypeForStatus maps an upstream HTTP status to an Anthropic error type.
func errorTypeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return types.ErrorTypeInvalidRequest
	case http.StatusUnauthorized:
		return types.ErrorTypeAuthentication
	case http.StatusForbidden:
		return types.ErrorTypePermission
	case http.StatusNotFound:
		return types.ErrorTypeNotFound
	case http.StatusRequestEntityTooLarge:
		return types.ErrorTypeRequestTooLarge
	case http.StatusTooManyRequests:
		return types.ErrorTypeRateLimit
	case http.StatusServiceUnavailable, 529:
		return types.ErrorTypeOverloaded
	default:
		return types.ErrorTypeAPI
	}
}

func withHint(message string, body []byte) string {
	haystack := strings.ToLower(message + " " + string(body))
	for _, h := range errorHints {
		if strings.Contains(haystack, h.match) {
			return message + " " + h.hint
		}
	}
	return message
}
