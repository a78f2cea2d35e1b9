// internal/server/handler.go
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/signalnine/ipaugur/internal/protocol"
)

// EventHandler runs one trigger event, the same way the Lambda runtime would
type EventHandler interface {
	HandleEvent(ctx context.Context, event events.S3Event) (protocol.Response, error)
}

// InvokeHandler handles POST /invoke with an S3 notification as body
type InvokeHandler struct {
	events          EventHandler
	apiKey          string
	maxPayloadBytes int64
}

// NewInvokeHandler creates the handler. An empty apiKey disables auth.
func NewInvokeHandler(eh EventHandler, apiKey string, maxPayloadBytes int64) *InvokeHandler {
	return &InvokeHandler{
		events:          eh,
		apiKey:          apiKey,
		maxPayloadBytes: maxPayloadBytes,
	}
}

func (h *InvokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.apiKey != "" {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != h.apiKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	if r.ContentLength > h.maxPayloadBytes {
		http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxPayloadBytes+1))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > h.maxPayloadBytes {
		http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
		return
	}

	var event events.S3Event
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	resp, err := h.events.HandleEvent(r.Context(), event)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Invocation failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"errorMessage": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
