package proxy

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/florianilch/claudebridge/internal/messagesadapter"
)

// healthHandler reports liveness with a short configuration summary.
// Always returns 200 OK to indicate the process is alive.
func healthHandler(info ServiceInfo, clientAuth bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		writeJSON(r.Context(), w, map[string]any{
			"status":                    "healthy",
			"timestamp":                 time.Now().UTC().Format(time.RFC3339),
			"openai_api_configured":     info.UpstreamKeyConfigured,
			"client_api_key_validation": clientAuth,
		}, http.StatusOK)
	}
}

// readinessHandler handles readiness probe requests.
// Returns 200 OK if the application is ready to serve traffic, 503 otherwise.
func readinessHandler(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		if checker.IsReady() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}
}

// testConnectionHandler performs a minimal upstream round trip.
func testConnectionHandler(tester messagesadapter.ConnectionTester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set("Cache-Control", "no-cache")

		result, err := tester.TestConnection(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "connection test failed", "error", err)
			errResp := messagesadapter.AsErrorResponse(err)
			writeJSON(ctx, w, errResp, http.StatusServiceUnavailable)
			return
		}

		writeJSON(ctx, w, map[string]any{
			"status":      "success",
			"message":     "Successfully connected to upstream API",
			"model_used":  result.Model,
			"response_id": result.ResponseID,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}, http.StatusOK)
	}
}

// rootHandler describes the service and its endpoints.
func rootHandler(info ServiceInfo, clientAuth bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, map[string]any{
			"message": info.Name + " " + info.Version,
			"status":  "running",
			"config": map[string]any{
				"openai_base_url":           info.UpstreamBaseURL,
				"max_tokens_limit":          info.MaxTokensLimit,
				"api_key_configured":        info.UpstreamKeyConfigured,
				"client_api_key_validation": clientAuth,
				"big_model":                 info.BigModel,
				"middle_model":              info.MiddleModel,
				"small_model":               info.SmallModel,
			},
			"endpoints": map[string]string{
				"messages":        "/v1/messages",
				"count_tokens":    "/v1/messages/count_tokens",
				"health":          "/health",
				"ready":           "/ready",
				"test_connection": "/test-connection",
			},
		}, http.StatusOK)
	}
}
