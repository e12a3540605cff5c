package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"go-chat-vault/internal/middleware"
	ws "go-chat-vault/internal/websocket"
	"go-chat-vault/pkg/apierror"
)

type WebsocketHandler struct {
	hub      *ws.Hub
	upgrader *websocket.Upgrader
}

func NewWebsocketHandler(hub *ws.Hub, allowedOrigins []string) *WebsocketHandler {
	return &WebsocketHandler{hub: hub, upgrader: ws.Upgrader(allowedOrigins)}
}

// Serve upgrades a guarded request and streams the principal's change events.
func (h *WebsocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		slog.Warn("websocket upgrade failed", "principal_id", principal.ID, "error", err)
		return
	}

	h.hub.Serve(conn, principal.ID)
}
