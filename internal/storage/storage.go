package storage

import "time"

const (
	KindMessage   = "message"
	KindDeleted   = "deleted"
	KindAssistant = "assistant"
)

// Event is a single transcript entry: an incoming or outgoing chat message,
// a deletion, or one side of an assistant turn. Events are appended in
// arrival order, one JSON object per line.
type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	Kind           string    `json:"kind"`
	ConversationID int64     `json:"conversation_id,omitempty"`
	MessageID      int64     `json:"message_id,omitempty"`
	SenderID       int64     `json:"sender_id,omitempty"`
	Body           string    `json:"body,omitempty"`
	Lane           string    `json:"lane,omitempty"`
	Role           string    `json:"role,omitempty"`
}

// Recorder abstracts transcript persistence.
// Implementations must be safe for concurrent use.
type Recorder interface {
	Append(event Event) error
	Load() ([]Event, error)
}
