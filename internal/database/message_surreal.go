package database

import (
	"context"

	"github.com/nfrund/parley/internal/domain"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

type surrealMessage struct {
	ID        *surrealmodels.RecordID      `json:"id,omitempty"`
	RoomID    string                       `json:"room_id"`
	SenderID  string                       `json:"sender_id"`
	Body      string                       `json:"body"`
	CreatedAt surrealmodels.CustomDateTime `json:"created_at"`
}

func (m surrealMessage) toDomain() domain.Message {
	return domain.Message{
		ID:        recordKey(m.ID),
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt.Time.UTC(),
	}
}

// SurrealMessageStore persists messages in the SurrealDB "message" table.
type SurrealMessageStore struct {
	conn  *Connection
	clock *stampClock
}

// NewSurrealMessageStore creates a new SurrealMessageStore.
func NewSurrealMessageStore(conn *Connection) *SurrealMessageStore {
	return &SurrealMessageStore{conn: conn, clock: newStampClock()}
}

// AppendMessage implements domain.MessageStore.
func (s *SurrealMessageStore) AppendMessage(ctx context.Context, in domain.NewMessage) (*domain.Message, error) {
	id, createdAt, err := s.clock.Next()
	if err != nil {
		return nil, NewStoreError("surreal.AppendMessage", err)
	}

	query := `CREATE type::thing("message", $id) CONTENT {
		room_id: $room_id,
		sender_id: $sender_id,
		body: $body,
		created_at: $created_at
	}`
	params := map[string]any{
		"id":         id,
		"room_id":    in.RoomID,
		"sender_id":  in.SenderID,
		"body":       in.Body,
		"created_at": surrealmodels.CustomDateTime{Time: createdAt},
	}

	if err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		return Execute(ctx, db, query, params)
	}); err != nil {
		return nil, NewStoreError("surreal.AppendMessage", err)
	}

	return &domain.Message{
		ID:        id,
		RoomID:    in.RoomID,
		SenderID:  in.SenderID,
		Body:      in.Body,
		CreatedAt: createdAt,
	}, nil
}

// ListMessages implements domain.MessageStore.
func (s *SurrealMessageStore) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT * FROM message WHERE room_id = $room_id
		ORDER BY created_at DESC, id DESC LIMIT $limit START $offset`
	params := map[string]any{
		"room_id": roomID,
		"limit":   limit,
		"offset":  offset,
	}

	var rows []surrealMessage
	if err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		r, err := Query[surrealMessage](ctx, db, query, params)
		rows = r
		return err
	}); err != nil {
		return nil, NewStoreError("surreal.ListMessages", err)
	}

	messages := make([]domain.Message, len(rows))
	for i, row := range rows {
		messages[i] = row.toDomain()
	}
	return messages, nil
}
