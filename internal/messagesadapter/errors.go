package messagesadapter

import (
	"errors"

	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

// AsErrorResponse returns the front-format envelope carried by err, or wraps err as a
// generic api_error so handlers always have a client-facing shape to write.
func AsErrorResponse(err error) *ErrorResponse {
	if err == nil {
		return nil
	}

	var errResp *ErrorResponse
	if errors.As(err, &errResp) {
		return errResp
	}
	return types.NewErrorResponse(types.ErrorTypeAPI, err.Error())
}

// NewInvalidRequest returns an invalid_request_error envelope.
func NewInvalidRequest(message string) *ErrorResponse {
	return types.NewErrorResponse(types.ErrorTypeInvalidRequest, message)
}

// NewAuthenticationError returns an authentication_error envelope.
func NewAuthenticationError(message string) *ErrorResponse {
	return types.NewErrorResponse(types.ErrorTypeAuthentication, message)
}

// NewNotFound returns a not_found_error envelope for path.
func NewNotFound(path string) *ErrorResponse {
	return types.NewErrorResponse(types.ErrorTypeNotFound, "no route for "+path)
}
