package handler

import (
	"context"
	"net/http"
	"time"

	"go-chat-vault/pkg/apierror"
)

type availability interface {
	Available(ctx context.Context) bool
}

type HealthHandler struct {
	users    availability
	chats    availability
	demoMode bool
}

func NewHealthHandler(users availability, chats availability, demoMode bool) *HealthHandler {
	return &HealthHandler{users: users, chats: chats, demoMode: demoMode}
}

// Health reports 200 while the stores are reachable or demo mode covers for
// them, and 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	usersUp := h.users.Available(ctx)
	chatsUp := h.chats.Available(ctx)

	state := "ok"
	switch {
	case usersUp && chatsUp:
	case h.demoMode:
		state = "degraded"
	default:
		writeError(w, apierror.Unavailable("backing stores are unreachable"))
		return
	}

	writeSuccess(w, http.StatusOK, "", map[string]any{
		"status":      state,
		"credentials": usersUp,
		"chats":       chatsUp,
		"demo_mode":   h.demoMode,
	})
}
