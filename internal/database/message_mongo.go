package database

import (
	"context"
	"time"

	"github.com/nfrund/parley/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoMessage struct {
	ID        string    `bson:"_id"`
	RoomID    string    `bson:"roomId"`
	SenderID  string    `bson:"senderId"`
	Body      string    `bson:"body"`
	CreatedAt time.Time `bson:"createdAt"`
}

// MongoMessageStore keeps messages in the "messages" collection.
// MongoDB stores milliseconds, so ties on createdAt are broken by the
// time-ordered _id.
type MongoMessageStore struct {
	collection *mongo.Collection
	clock      *stampClock
}

// NewMongoMessageStore creates a new MongoMessageStore.
func NewMongoMessageStore(db *MongoDB) *MongoMessageStore {
	return &MongoMessageStore{collection: db.Collection(messagesCollection), clock: newStampClock()}
}

// AppendMessage implements domain.MessageStore.
func (s *MongoMessageStore) AppendMessage(ctx context.Context, in domain.NewMessage) (*domain.Message, error) {
	id, createdAt, err := s.clock.Next()
	if err != nil {
		return nil, NewStoreError("mongo.AppendMessage", err)
	}
	createdAt = createdAt.Truncate(time.Millisecond)

	doc := mongoMessage{
		ID:        id,
		RoomID:    in.RoomID,
		SenderID:  in.SenderID,
		Body:      in.Body,
		CreatedAt: createdAt,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return nil, NewStoreError("mongo.AppendMessage", err)
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
func (s *MongoMessageStore) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{"roomId": roomID}, opts)
	if err != nil {
		return nil, NewStoreError("mongo.ListMessages", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoMessage
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, NewStoreError("mongo.ListMessages", err)
	}

	messages := make([]domain.Message, len(docs))
	for i, d := range docs {
		messages[i] = domain.Message{
			ID:        d.ID,
			RoomID:    d.RoomID,
			SenderID:  d.SenderID,
			Body:      d.Body,
			CreatedAt: d.CreatedAt.UTC(),
		}
	}
	return messages, nil
}
