package event

type Type string

const (
	TypeChatSaved    Type = "chat.saved"
	TypeChatDeleted  Type = "chat.deleted"
	TypeFileUploaded Type = "file.uploaded"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	// OwnerID scopes delivery: only sessions of this principal receive the event.
	OwnerID string `json:"owner_id"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}

// ChatPayload is carried by chat.saved and chat.deleted.
type ChatPayload struct {
	ChatID    string `json:"chat_id"`
	Title     string `json:"title,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}
