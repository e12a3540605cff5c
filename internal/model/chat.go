package model

import (
	"sort"
	"time"
)

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// ChatThread is one conversation. (ChatID, OwnerID) is unique; saves replace the whole thread.
type ChatThread struct {
	ChatID    string         `json:"chat_id" validate:"required,max=128"`
	OwnerID   string         `json:"owner_id"`
	Title     string         `json:"title" validate:"max=512"`
	Messages  []Message      `json:"messages" validate:"dive"`
	Files     []FileRef      `json:"files"`
	Extra     map[string]any `json:"extra,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Message struct {
	Text      string    `json:"text" bson:"text"`
	Sender    string    `json:"sender" bson:"sender" validate:"oneof=user assistant"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Files     []FileRef `json:"files,omitempty" bson:"files,omitempty"`
}

// FileRef describes an uploaded attachment. File bytes never pass through the chat store.
type FileRef struct {
	ID           string    `json:"id" bson:"id"`
	OriginalName string    `json:"original_name" bson:"original_name"`
	StoredName   string    `json:"stored_name" bson:"stored_name"`
	MIMEType     string    `json:"mime_type" bson:"mime_type"`
	Size         int64     `json:"size" bson:"size"`
	UploadedAt   time.Time `json:"uploaded_at" bson:"uploaded_at"`
}

// Normalize fills nil collections so every source yields the same JSON shape.
func (t ChatThread) Normalize() ChatThread {
	if t.Messages == nil {
		t.Messages = []Message{}
	}
	if t.Files == nil {
		t.Files = []FileRef{}
	}
	return t
}

// SortByUpdatedDesc orders threads newest first; ties fall back to chat id for stable output.
func SortByUpdatedDesc(threads []ChatThread) {
	sort.SliceStable(threads, func(i, j int) bool {
		if threads[i].UpdatedAt.Equal(threads[j].UpdatedAt) {
			return threads[i].ChatID < threads[j].ChatID
		}
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
}
