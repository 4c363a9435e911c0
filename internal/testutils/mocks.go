package testutils

import (
	"context"

	"github.com/nfrund/parley/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockUserDirectory implements domain.UserDirectory for testing.
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) CreateUser(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserDirectory) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserDirectory) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserDirectory) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockMessageStore implements domain.MessageStore for testing.
type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) AppendMessage(ctx context.Context, msg domain.NewMessage) (*domain.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageStore) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]domain.Message, error) {
	args := m.Called(ctx, roomID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}
