package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/parley/internal/domain"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const surrealSchema = `
DEFINE TABLE IF NOT EXISTS user SCHEMALESS;
DEFINE INDEX IF NOT EXISTS user_email ON TABLE user COLUMNS email UNIQUE;
DEFINE TABLE IF NOT EXISTS message SCHEMALESS;
DEFINE INDEX IF NOT EXISTS message_room_created ON TABLE message COLUMNS room_id, created_at;
`

// EnsureSurrealSchema defines the tables and indexes the stores rely on.
func EnsureSurrealSchema(ctx context.Context, conn *Connection) error {
	return conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		return Execute(ctx, db, surrealSchema, nil)
	})
}

// surrealUser is the stored form of a user.
type surrealUser struct {
	ID           *surrealmodels.RecordID      `json:"id,omitempty"`
	Email        string                       `json:"email"`
	Name         string                       `json:"name"`
	PasswordHash string                       `json:"password_hash"`
	CreatedAt    surrealmodels.CustomDateTime `json:"created_at"`
	UpdatedAt    surrealmodels.CustomDateTime `json:"updated_at"`
}

func (u surrealUser) toDomain() *domain.User {
	return &domain.User{
		ID:           recordKey(u.ID),
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.Time,
		UpdatedAt:    u.UpdatedAt.Time,
	}
}

// recordKey returns the id part of a record id such as user:⟨abc⟩.
func recordKey(id *surrealmodels.RecordID) string {
	if id == nil {
		return ""
	}
	return fmt.Sprint(id.ID)
}

// SurrealUserStore encapsulates database operations for users using SurrealDB.
type SurrealUserStore struct {
	conn *Connection
}

// NewSurrealUserStore creates a new SurrealUserStore.
func NewSurrealUserStore(conn *Connection) *SurrealUserStore {
	return &SurrealUserStore{conn: conn}
}

// CreateUser implements domain.UserDirectory.
func (s *SurrealUserStore) CreateUser(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.Email = domain.NormalizeEmail(user.Email)
	user.CreatedAt, user.UpdatedAt = now, now

	query := `CREATE type::thing("user", $id) CONTENT {
		email: $email,
		name: $name,
		password_hash: $password_hash,
		created_at: $now,
		updated_at: $now
	}`
	params := map[string]any{
		"id":            user.ID,
		"email":         user.Email,
		"name":          user.Name,
		"password_hash": user.PasswordHash,
		"now":           surrealmodels.CustomDateTime{Time: now},
	}

	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		return Execute(ctx, db, query, params)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserAlreadyExists
		}
		return NewStoreError("surreal.CreateUser", err)
	}
	return nil
}

// FindUserByID implements domain.UserDirectory.
func (s *SurrealUserStore) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.findOne(ctx, "surreal.FindUserByID",
		`SELECT * FROM type::thing("user", $id)`, map[string]any{"id": id})
}

// FindUserByEmail implements domain.UserDirectory.
func (s *SurrealUserStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, "surreal.FindUserByEmail",
		"SELECT * FROM user WHERE email = $email LIMIT 1", map[string]any{"email": domain.NormalizeEmail(email)})
}

// DeleteUser implements domain.UserDirectory.
func (s *SurrealUserStore) DeleteUser(ctx context.Context, id string) error {
	var deleted []surrealUser
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		rows, err := Query[surrealUser](ctx, db, `DELETE type::thing("user", $id) RETURN BEFORE`, map[string]any{"id": id})
		deleted = rows
		return err
	})
	if err != nil {
		return NewStoreError("surreal.DeleteUser", err)
	}
	if len(deleted) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SurrealUserStore) findOne(ctx context.Context, op, query string, params map[string]any) (*domain.User, error) {
	var row *surrealUser
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		r, err := QueryOne[surrealUser](ctx, db, query, params)
		row = r
		return err
	})
	if err != nil {
		return nil, NewStoreError(op, err)
	}
	if row == nil || row.ID == nil {
		return nil, domain.ErrNotFound
	}
	return row.toDomain(), nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "already contains") || strings.Contains(msg, "already exists")
}
