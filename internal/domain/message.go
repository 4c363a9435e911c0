package domain

import (
	"context"
	"time"
)

// Message is a persisted chat message. It is immutable once stored.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// ResolvedMessage is a Message together with its sender's public profile.
// It is built on demand and never stored.
type ResolvedMessage struct {
	Message
	Sender Profile `json:"sender"`
}

// NewMessage is the input to MessageStore.AppendMessage.
type NewMessage struct {
	RoomID   string
	SenderID string
	Body     string
}

// MessageStore is the durable, append-only message log.
type MessageStore interface {
	// AppendMessage persists msg, assigning a unique time-ordered ID and a
	// creation time that never goes backwards between inserts.
	AppendMessage(ctx context.Context, msg NewMessage) (*Message, error)
	// ListMessages returns up to limit messages of a room, newest first,
	// after skipping offset newer messages.
	ListMessages(ctx context.Context, roomID string, limit, offset int) ([]Message, error)
}
