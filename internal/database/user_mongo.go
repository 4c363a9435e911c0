package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/parley/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type mongoUser struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	Name         string    `bson:"name"`
	PasswordHash string    `bson:"password"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func (u mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}

// MongoUserStore keeps users in the "users" collection.
type MongoUserStore struct {
	collection *mongo.Collection
}

// NewMongoUserStore creates a new MongoUserStore.
func NewMongoUserStore(db *MongoDB) *MongoUserStore {
	return &MongoUserStore{collection: db.Collection(usersCollection)}
}

// CreateUser implements domain.UserDirectory.
func (s *MongoUserStore) CreateUser(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.Email = domain.NormalizeEmail(user.Email)
	user.CreatedAt, user.UpdatedAt = now, now

	_, err := s.collection.InsertOne(ctx, mongoUser{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		PasswordHash: user.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrUserAlreadyExists
	}
	return NewStoreError("mongo.CreateUser", err)
}

// FindUserByID implements domain.UserDirectory.
func (s *MongoUserStore) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.findOne(ctx, "mongo.FindUserByID", bson.M{"_id": id})
}

// FindUserByEmail implements domain.UserDirectory.
func (s *MongoUserStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, "mongo.FindUserByEmail", bson.M{"email": domain.NormalizeEmail(email)})
}

// DeleteUser implements domain.UserDirectory.
func (s *MongoUserStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return NewStoreError("mongo.DeleteUser", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *MongoUserStore) findOne(ctx context.Context, op string, filter bson.M) (*domain.User, error) {
	var doc mongoUser
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, NewStoreError(op, err)
	}
	return doc.toDomain(), nil
}
