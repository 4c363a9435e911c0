// Package protocol defines the JSON frames exchanged over a chat session.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nfrund/parley/internal/domain"
)

// Client to server events.
const (
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
	EventGetMessages = "getMessages"
)

// Server to client events.
const (
	EventNewMessage     = "newMessage"
	EventMessageHistory = "messageHistory"
	EventJoinedRoom     = "joinedRoom"
	EventLeftRoom       = "leftRoom"
	EventError          = "error"
)

// Frame is the envelope of every message on the wire.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomRef names a room. On the wire it is either {"roomId": "..."} or a bare string.
type RoomRef struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

// UnmarshalJSON accepts both the object and the bare string form.
func (r *RoomRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &r.RoomID)
	}
	type plain RoomRef
	return json.Unmarshal(b, (*plain)(r))
}

// SendMessage is the payload of sendMessage. Older clients put the text in
// "message" instead of "body".
type SendMessage struct {
	RoomID  string `json:"roomId" validate:"required,max=128"`
	Body    string `json:"body" validate:"required_without=Message"`
	Message string `json:"message,omitempty"`
}

// Text returns the message text whichever field carried it.
func (s SendMessage) Text() string {
	if s.Body != "" {
		return s.Body
	}
	return s.Message
}

// GetMessages is the payload of getMessages. Zero values select the defaults.
type GetMessages struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
	Limit  int    `json:"limit" validate:"gte=0"`
	Skip   int    `json:"skip" validate:"gte=0"`
}

// ErrorPayload is the payload of error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ErrBadFrame is returned by Decode for input that is not a frame.
var ErrBadFrame = errors.New("malformed frame")

// Decode parses a raw frame.
func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("%w: missing event", ErrBadFrame)
	}
	return f, nil
}

// DecodeData unmarshals the payload of f into v.
func DecodeData(f Frame, v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: %s requires data", ErrBadFrame, f.Event)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return nil
}

// Encode builds a frame for event carrying data.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// NewMessageFrame encodes a newMessage frame.
func NewMessageFrame(msg domain.ResolvedMessage) ([]byte, error) {
	return Encode(EventNewMessage, msg)
}

// HistoryFrame encodes a messageHistory frame. A nil page is sent as [].
func HistoryFrame(page []domain.ResolvedMessage) ([]byte, error) {
	if page == nil {
		page = []domain.ResolvedMessage{}
	}
	return Encode(EventMessageHistory, page)
}

// RoomFrame encodes a joinedRoom or leftRoom acknowledgement.
func RoomFrame(event, roomID string) ([]byte, error) {
	return Encode(event, RoomRef{RoomID: roomID})
}

// ErrorFrame encodes an error frame. It cannot fail.
func ErrorFrame(message string) []byte {
	b, _ := Encode(EventError, ErrorPayload{Message: message})
	return b
}
