package database

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/nfrund/parley/internal/domain"
)

// BadgerMessageStore keeps messages under keys ordered by room and creation time:
//
//	msg:<hex room id>:<19 digit unix nanos>:<message id>
//
// so a reverse prefix scan yields a room's messages newest first.
type BadgerMessageStore struct {
	db    *badger.DB
	clock *stampClock
}

// NewBadgerMessageStore creates a new BadgerMessageStore.
func NewBadgerMessageStore(db *badger.DB) *BadgerMessageStore {
	return &BadgerMessageStore{db: db, clock: newStampClock()}
}

func roomPrefix(roomID string) []byte {
	return []byte("msg:" + hex.EncodeToString([]byte(roomID)) + ":")
}

// AppendMessage implements domain.MessageStore.
func (s *BadgerMessageStore) AppendMessage(ctx context.Context, in domain.NewMessage) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, createdAt, err := s.clock.Next()
	if err != nil {
		return nil, NewStoreError("badger.AppendMessage", err)
	}
	msg := &domain.Message{
		ID:        id,
		RoomID:    in.RoomID,
		SenderID:  in.SenderID,
		Body:      in.Body,
		CreatedAt: createdAt,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, NewStoreError("badger.AppendMessage", err)
	}

	key := fmt.Appendf(roomPrefix(in.RoomID), "%019d:%s", createdAt.UnixNano(), id)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	}); err != nil {
		return nil, NewStoreError("badger.AppendMessage", err)
	}
	return msg, nil
}

// ListMessages implements domain.MessageStore.
func (s *BadgerMessageStore) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	prefix := roomPrefix(roomID)
	messages := make([]domain.Message, 0, limit)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xFF)
		skipped := 0
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}

			var msg domain.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			messages = append(messages, msg)
			if len(messages) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, NewStoreError("badger.ListMessages", err)
	}
	return messages, nil
}
