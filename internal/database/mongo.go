package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	messagesCollection = "messages"
)

// MongoDB holds a client and the database the stores work in.
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoDB connects to uri, pings the server and ensures the indexes exist.
func NewMongoDB(ctx context.Context, uri, database string) (*MongoDB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10*time.Second).
		SetMaxPoolSize(100))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m := &MongoDB{client: client, database: client.Database(database)}
	if err := m.createIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	slog.InfoContext(ctx, "Connected to MongoDB", "database", database)
	return m, nil
}

// Collection returns a collection of the configured database.
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Close disconnects the client.
func (m *MongoDB) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

func (m *MongoDB) createIndexes(ctx context.Context) error {
	if _, err := m.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	if _, err := m.Collection(messagesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
	}); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}
	return nil
}
