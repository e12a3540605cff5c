package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-chat-vault/internal/model"
)

type ChatRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewChatRepository(pool *pgxpool.Pool, timeout time.Duration) *ChatRepository {
	return &ChatRepository{pool: pool, timeout: timeout}
}

func (r *ChatRepository) Available(ctx context.Context) bool {
	return ping(ctx, r.pool, r.timeout)
}

// Upsert relies on the (owner_id, chat_id) primary key so concurrent saves
// resolve inside Postgres, last write wins.
func (r *ChatRepository) Upsert(ctx context.Context, thread model.ChatThread) (model.ChatThread, error) {
	thread = thread.Normalize()

	messages, files, extra, err := encodeThread(thread)
	if err != nil {
		return model.ChatThread{}, err
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	err = r.pool.QueryRow(ctx,
		`INSERT INTO chat_threads (owner_id, chat_id, title, messages, files, extra, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 ON CONFLICT (owner_id, chat_id) DO UPDATE
		 SET title = EXCLUDED.title,
		     messages = EXCLUDED.messages,
		     files = EXCLUDED.files,
		     extra = EXCLUDED.extra,
		     updated_at = EXCLUDED.updated_at
		 RETURNING created_at`,
		thread.OwnerID, thread.ChatID, thread.Title, messages, files, extra, thread.UpdatedAt).
		Scan(&thread.CreatedAt)
	if err != nil {
		return model.ChatThread{}, pgError("upsert chat thread", err)
	}
	return thread, nil
}

func (r *ChatRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.ChatThread, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT owner_id, chat_id, title, messages, files, extra, created_at, updated_at
		 FROM chat_threads
		 WHERE owner_id = $1
		 ORDER BY updated_at DESC, chat_id`, ownerID)
	if err != nil {
		return nil, pgError("list chat threads", err)
	}
	defer rows.Close()

	threads := make([]model.ChatThread, 0)
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("list chat threads", err)
	}
	return threads, nil
}

func (r *ChatRepository) Get(ctx context.Context, ownerID string, chatID string) (model.ChatThread, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	thread, err := scanThread(r.pool.QueryRow(ctx,
		`SELECT owner_id, chat_id, title, messages, files, extra, created_at, updated_at
		 FROM chat_threads WHERE owner_id = $1 AND chat_id = $2`, ownerID, chatID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ChatThread{}, model.ErrChatNotFound
	}
	if err != nil {
		return model.ChatThread{}, err
	}
	return thread, nil
}

func (r *ChatRepository) Delete(ctx context.Context, ownerID string, chatID string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM chat_threads WHERE owner_id = $1 AND chat_id = $2`, ownerID, chatID)
	if err != nil {
		return pgError("delete chat thread", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrChatNotFound
	}
	return nil
}

func scanThread(row pgx.Row) (model.ChatThread, error) {
	var (
		thread                  model.ChatThread
		messages, files, extras []byte
	)
	err := row.Scan(&thread.OwnerID, &thread.ChatID, &thread.Title, &messages, &files, &extras,
		&thread.CreatedAt, &thread.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ChatThread{}, err
	}
	if err != nil {
		return model.ChatThread{}, pgError("scan chat thread", err)
	}

	if err := json.Unmarshal(messages, &thread.Messages); err != nil {
		return model.ChatThread{}, fmt.Errorf("decode messages: %w", err)
	}
	if err := json.Unmarshal(files, &thread.Files); err != nil {
		return model.ChatThread{}, fmt.Errorf("decode files: %w", err)
	}
	if len(extras) > 0 {
		if err := json.Unmarshal(extras, &thread.Extra); err != nil {
			return model.ChatThread{}, fmt.Errorf("decode extra: %w", err)
		}
	}
	return thread.Normalize(), nil
}

func encodeThread(thread model.ChatThread) (messages []byte, files []byte, extra []byte, err error) {
	if messages, err = json.Marshal(thread.Messages); err != nil {
		return nil, nil, nil, fmt.Errorf("encode messages: %w", err)
	}
	if files, err = json.Marshal(thread.Files); err != nil {
		return nil, nil, nil, fmt.Errorf("encode files: %w", err)
	}
	if thread.Extra != nil {
		if extra, err = json.Marshal(thread.Extra); err != nil {
			return nil, nil, nil, fmt.Errorf("encode extra: %w", err)
		}
	}
	return messages, files, extra, nil
}
