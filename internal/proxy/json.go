package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/claudebridge/internal/messagesadapter"
	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

// validate checks decoded request bodies. Field names in messages use their JSON names.
var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeJSONError writes an Anthropic error envelope. The status comes from the envelope's
// explicit StatusCode or is derived from its error type.
func writeJSONError(ctx context.Context, w http.ResponseWriter, errResp *messagesadapter.ErrorResponse) {
	writeJSON(ctx, w, errResp, statusForError(errResp))
}

func statusForError(errResp *messagesadapter.ErrorResponse) int {
	if errResp.StatusCode != 0 {
		return errResp.StatusCode
	}

	switch errResp.Err.Type {
	case types.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case types.ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case types.ErrorTypePermission:
		return http.StatusForbidden
	case types.ErrorTypeNotFound:
		return http.StatusNotFound
	case types.ErrorTypeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case types.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case types.ErrorTypeOverloaded:
		return 529
	default:
		return http.StatusInternalServerError
	}
}

// decodeRequest decodes and validates a JSON request body. The returned error response is
// ready to be written.
func decodeRequest[T any](r *http.Request) (T, *messagesadapter.ErrorResponse) {
	ctx := r.Context()

	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			slog.WarnContext(ctx, "request exceeds size limit", "limit_bytes", maxBytesErr.Limit)
			return req, types.NewErrorResponse(types.ErrorTypeRequestTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit))
		}
		slog.WarnContext(ctx, "failed to decode request", "error", err)
		return req, messagesadapter.NewInvalidRequest("invalid request body: " + err.Error())
	}

	if err := validate.StructCtx(ctx, req); err != nil {
		slog.WarnContext(ctx, "request failed validation", "error", err)
		return req, messagesadapter.NewInvalidRequest(validationMessage(err))
	}
	return req, nil
}

// validationMessage renders validator errors as "field: rule" pairs.
func validationMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, rule))
	}
	return strings.Join(msgs, "; ")
}
