package proxy

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/florianilch/claudebridge/internal/messagesadapter"
	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
	"github.com/florianilch/claudebridge/internal/observability/middleware"
)

// MessagesHandler handles Anthropic Messages API requests.
type MessagesHandler struct {
	Backend messagesadapter.CreateMessageAdapter
}

// Compile-time check to ensure MessagesHandler implements http.Handler
var _ http.Handler = (*MessagesHandler)(nil)

// ServeHTTP implements http.Handler interface for streaming or non-streaming requests.
func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, errResp := decodeRequest[messagesadapter.CreateMessageRequest](r)
	if errResp != nil {
		writeJSONError(ctx, w, errResp)
		return
	}

	middleware.SetLogAttrs(ctx,
		slog.String("model", req.Model),
		slog.Bool("stream", req.Stream),
	)

	if req.Stream {
		h.streamResponse(ctx, w, req)
	} else {
		h.writeResponse(ctx, w, req)
	}
}

// writeResponse handles non-streaming requests.
func (h *MessagesHandler) writeResponse(ctx context.Context, w http.ResponseWriter, req messagesadapter.CreateMessageRequest) {
	if ctx.Err() != nil {
		return
	}
	response, err := h.Backend.ProcessRequest(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client disconnected before response")
			return
		}
		slog.ErrorContext(ctx, "request failed", "error", err)
		writeJSONError(ctx, w, messagesadapter.AsErrorResponse(err))
		return
	}

	writeJSON(ctx, w, response, http.StatusOK)
}

// streamResponse streams Anthropic events using SSE.
func (h *MessagesHandler) streamResponse(ctx context.Context, w http.ResponseWriter, req messagesadapter.CreateMessageRequest) {
	if ctx.Err() != nil {
		return
	}
	stream, err := h.Backend.ProcessStreamingRequest(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client disconnected before stream")
			return
		}
		slog.ErrorContext(ctx, "streaming request failed", "error", err)
		writeJSONError(ctx, w, messagesadapter.AsErrorResponse(err))
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported", "error", err)
		writeJSONError(ctx, w, messagesadapter.AsErrorResponse(err))
		return
	}

	events := 0
	for event, err := range stream {
		// Leaving the loop stops the upstream stream; no terminal frame is written to a
		// client that is gone.
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client disconnected during stream", "events_sent", events)
			return
		}

		if err != nil {
			slog.ErrorContext(ctx, "stream error", "error", err, "events_sent", events)

			errResp := messagesadapter.AsErrorResponse(err)
			if writeErr := sse.WriteEvent(types.EventError, types.ErrorEvent{Err: errResp.Err}); writeErr != nil {
				slog.ErrorContext(ctx, "failed to write error event", "error", writeErr)
			}
			return
		}

		if err := sse.WriteEvent(event.EventName(), event); err != nil {
			slog.ErrorContext(ctx, "failed to write event", "event", event.EventName(), "error", err)
			return
		}
		events++
	}
}
