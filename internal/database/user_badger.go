package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/nfrund/parley/internal/domain"
)

const (
	userIDPrefix    = "user:id:"
	userEmailPrefix = "user:email:"

	// maxTxnRetries bounds retries after badger reports a write conflict.
	maxTxnRetries = 3
)

// userRecord is the stored form of a user. Unlike domain.User it keeps the hash.
type userRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func newUserRecord(u *domain.User) userRecord {
	return userRecord{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r userRecord) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// BadgerUserStore keeps users in badger, with a secondary email index.
type BadgerUserStore struct {
	db *badger.DB
}

// NewBadgerUserStore creates a new BadgerUserStore.
func NewBadgerUserStore(db *badger.DB) *BadgerUserStore {
	return &BadgerUserStore{db: db}
}

// CreateUser implements domain.UserDirectory.
func (s *BadgerUserStore) CreateUser(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.Email = domain.NormalizeEmail(user.Email)
	user.CreatedAt, user.UpdatedAt = now, now

	payload, err := json.Marshal(newUserRecord(user))
	if err != nil {
		return NewStoreError("badger.CreateUser", err)
	}

	emailKey := []byte(userEmailPrefix + user.Email)
	for attempt := 0; ; attempt++ {
		err = s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(emailKey)
			if err == nil {
				return domain.ErrUserAlreadyExists
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(emailKey, []byte(user.ID)); err != nil {
				return err
			}
			return txn.Set([]byte(userIDPrefix+user.ID), payload)
		})
		if errors.Is(err, badger.ErrConflict) && attempt < maxTxnRetries {
			continue
		}
		break
	}

	if errors.Is(err, domain.ErrUserAlreadyExists) {
		return err
	}
	return NewStoreError("badger.CreateUser", err)
}

// FindUserByID implements domain.UserDirectory.
func (s *BadgerUserStore) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user *domain.User
	err := s.db.View(func(txn *badger.Txn) error {
		u, err := getUser(txn, id)
		user = u
		return err
	})
	if err != nil {
		return nil, storeLookupError("badger.FindUserByID", err)
	}
	return user, nil
}

// FindUserByEmail implements domain.UserDirectory.
func (s *BadgerUserStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user *domain.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userEmailPrefix + domain.NormalizeEmail(email)))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		user, err = getUser(txn, string(id))
		return err
	})
	if err != nil {
		return nil, storeLookupError("badger.FindUserByEmail", err)
	}
	return user, nil
}

// DeleteUser implements domain.UserDirectory.
func (s *BadgerUserStore) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		user, err := getUser(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete([]byte(userEmailPrefix + user.Email)); err != nil {
			return err
		}
		return txn.Delete([]byte(userIDPrefix + id))
	})
	if err != nil {
		return storeLookupError("badger.DeleteUser", err)
	}
	return nil
}

func getUser(txn *badger.Txn, id string) (*domain.User, error) {
	item, err := txn.Get([]byte(userIDPrefix + id))
	if err != nil {
		return nil, err
	}

	var rec userRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

// storeLookupError maps a missing key to domain.ErrNotFound and everything else to a StoreError.
func storeLookupError(op string, err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrNotFound
	}
	return NewStoreError(op, err)
}
