package proxy

import (
	"log/slog"
	"net/http"

	"github.com/florianilch/claudebridge/internal/messagesadapter"
	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

// CountTokensHandler estimates input tokens without calling the backend.
type CountTokensHandler struct {
	Counter messagesadapter.TokenCounter
}

var _ http.Handler = (*CountTokensHandler)(nil)

func (h *CountTokensHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, errResp := decodeRequest[types.CountTokensRequest](r)
	if errResp != nil {
		writeJSONError(ctx, w, errResp)
		return
	}

	resp, err := h.Counter.CountTokens(ctx, req)
	if err != nil {
		slog.ErrorContext(ctx, "token counting failed", "error", err)
		writeJSONError(ctx, w, messagesadapter.AsErrorResponse(err))
		return
	}
	writeJSON(ctx, w, resp, http.StatusOK)
}
