// Package api exposes the webhook server: the Telegram dispatcher, the
// health surface and the middleware around them.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the fixed acknowledgement shape every endpoint returns.
// Failure detail rides Data["error"] so the transport never sees an
// application-level error status and retry-storms the webhook.
type Response struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeAck(w http.ResponseWriter, message string, data map[string]any, logger *slog.Logger) {
	writeJSON(w, http.StatusOK, Response{Status: "ok", Message: message, Data: data}, logger)
}
