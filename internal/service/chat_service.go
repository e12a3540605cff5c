package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"go-chat-vault/internal/event"
	"go-chat-vault/internal/metrics"
	"go-chat-vault/internal/model"
	"go-chat-vault/internal/repository"
	"go-chat-vault/pkg/apierror"
)

// ChatService is the authoritative chat store as seen by HTTP handlers.
// Demo principals have no stored history; their requests fail with
// SERVICE_UNAVAILABLE so clients fall back to their local cache.
type ChatService struct {
	chats    repository.ChatStore
	bus      event.Bus
	validate *validator.Validate
	now      func() time.Time
}

func NewChatService(chats repository.ChatStore, bus event.Bus) *ChatService {
	return &ChatService{
		chats:    chats,
		bus:      bus,
		validate: newValidator(),
		now:      time.Now,
	}
}

// SaveThread replaces or inserts the whole thread for the principal.
func (s *ChatService) SaveThread(ctx context.Context, principal model.Principal, thread model.ChatThread) (model.ChatThread, error) {
	if err := s.requireStore(principal); err != nil {
		return model.ChatThread{}, err
	}

	thread.ChatID = strings.TrimSpace(thread.ChatID)
	thread.OwnerID = principal.ID
	if err := s.validate.Struct(thread); err != nil {
		metrics.RecordChat("save", metrics.OutcomeFailure)
		return model.ChatThread{}, validationError(err)
	}
	if thread.UpdatedAt.IsZero() {
		thread.UpdatedAt = s.now().UTC()
	}
	thread = thread.Normalize()

	stored, err := s.chats.Upsert(ctx, thread)
	if err != nil {
		return model.ChatThread{}, s.storeFailure("save", thread.ChatID, err)
	}

	metrics.RecordChat("save", metrics.OutcomeSuccess)
	s.publish(event.TypeChatSaved, principal.ID, event.ChatPayload{
		ChatID:    stored.ChatID,
		Title:     stored.Title,
		UpdatedAt: stored.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})

	return stored, nil
}

// ListThreads returns the principal's threads, most recently updated first.
func (s *ChatService) ListThreads(ctx context.Context, principal model.Principal) ([]model.ChatThread, error) {
	if err := s.requireStore(principal); err != nil {
		return nil, err
	}

	threads, err := s.chats.ListByOwner(ctx, principal.ID)
	if err != nil {
		return nil, s.storeFailure("list", "", err)
	}

	model.SortByUpdatedDesc(threads)
	metrics.RecordChat("list", metrics.OutcomeSuccess)
	return threads, nil
}

func (s *ChatService) GetThread(ctx context.Context, principal model.Principal, chatID string) (model.ChatThread, error) {
	if err := s.requireStore(principal); err != nil {
		return model.ChatThread{}, err
	}

	thread, err := s.chats.Get(ctx, principal.ID, strings.TrimSpace(chatID))
	if err != nil {
		return model.ChatThread{}, s.storeFailure("get", chatID, err)
	}
	return thread, nil
}

func (s *ChatService) DeleteThread(ctx context.Context, principal model.Principal, chatID string) error {
	if err := s.requireStore(principal); err != nil {
		return err
	}

	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return apierror.Validation("chat_id is required", "")
	}

	if err := s.chats.Delete(ctx, principal.ID, chatID); err != nil {
		return s.storeFailure("delete", chatID, err)
	}

	slog.Info("chat thread deleted", "owner_id", principal.ID, "chat_id", chatID)
	metrics.RecordChat("delete", metrics.OutcomeSuccess)
	s.publish(event.TypeChatDeleted, principal.ID, event.ChatPayload{ChatID: chatID})
	return nil
}

func (s *ChatService) requireStore(principal model.Principal) error {
	if principal.ID == "" {
		return apierror.Unauthorized("authentication required")
	}
	if principal.Demo {
		metrics.RecordChat("demo", metrics.OutcomeUnavailable)
		return apierror.Unavailable("chat history is not stored for demo sessions")
	}
	return nil
}

func (s *ChatService) storeFailure(op string, chatID string, err error) error {
	switch {
	case errors.Is(err, model.ErrChatNotFound):
		metrics.RecordChat(op, metrics.OutcomeFailure)
		return apierror.NotFound("Chat not found", chatID)
	case errors.Is(err, model.ErrStoreUnavailable):
		slog.Error("chat store unavailable", "operation", op, "error", err)
		metrics.RecordChat(op, metrics.OutcomeUnavailable)
		return apierror.Unavailable("chat store is unavailable")
	default:
		metrics.RecordChat(op, metrics.OutcomeFailure)
		return fmt.Errorf("%s chat thread: %w", op, err)
	}
}

func (s *ChatService) publish(typ event.Type, ownerID string, payload event.ChatPayload) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(typ, ownerID, payload))
}
