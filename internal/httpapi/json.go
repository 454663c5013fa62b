package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/northlake-dev/msgbridge/internal/wire"
)

// writeJSON writes a JSON response with the given status code, logging
// encoding failures internally (adapted from the teacher's proxy.writeJSON).
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", Redact(err.Error()))
	}
}

// writeError writes the §6 Anthropic error envelope.
func writeError(ctx context.Context, w http.ResponseWriter, errType, message, hint string, status int) {
	writeJSON(ctx, w, wire.ErrorEnvelope{Error: wire.ErrorBody{Type: errType, Message: message, Hint: hint}}, status)
}
