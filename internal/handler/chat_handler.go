package handler

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"go-chat-vault/internal/middleware"
	"go-chat-vault/internal/model"
	"go-chat-vault/internal/service"
	"go-chat-vault/pkg/apierror"
)

type ChatHandler struct {
	service *service.ChatService
}

func NewChatHandler(service *service.ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	threads, err := h.service.ListThreads(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", model.ChatList{Chats: threads})
}

func (h *ChatHandler) Save(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	var thread model.ChatThread
	if err := decodeJSON(w, r, &thread); err != nil {
		writeError(w, err)
		return
	}

	saved, err := h.service.SaveThread(r.Context(), principal, thread)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Chat saved", saved)
}

func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	chatID, err := chatIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	thread, err := h.service.GetThread(r.Context(), principal, chatID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", thread)
}

func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	chatID, err := chatIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.DeleteThread(r.Context(), principal, chatID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Chat deleted", map[string]any{"chat_id": chatID})
}

// chatIDParam returns the decoded chatID path segment. chi matches on
// RawPath when the request carries one, which leaves escapes such as %2F
// in the parameter.
func chatIDParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "chatID")
	if r.URL.RawPath == "" {
		return raw, nil
	}
	chatID, err := url.PathUnescape(raw)
	if err != nil {
		return "", apierror.Validation("chat id is not a valid path segment", raw)
	}
	return chatID, nil
}
