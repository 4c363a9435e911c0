package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nfrund/parley/internal/config"
	"github.com/nfrund/parley/internal/domain"
)

// Stores bundles the user directory and message store of one backend.
//
// Users always reads through to the backend and is what authentication uses.
// Profiles serves sender lookups and may answer from a cache, so a user deleted
// by another process can still resolve there for up to the cache TTL.
type Stores struct {
	Users    domain.UserDirectory
	Profiles domain.UserDirectory
	Messages domain.MessageStore

	closers []func(context.Context) error
}

// Open connects the backend selected by cfg.StoreDriver. When ProfileCacheTTL
// is positive, Profiles is a CachedDirectory over Users.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	var (
		s   *Stores
		err error
	)

	switch cfg.StoreDriver {
	case config.DriverBadger:
		s, err = openBadgerStores(cfg.BadgerPath)
	case config.DriverSurreal:
		s, err = openSurrealStores(ctx, cfg)
	case config.DriverMongo:
		s, err = openMongoStores(ctx, cfg)
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.ProfileCacheTTL > 0 {
		cached, err := NewCachedDirectory(s.Users, cfg.ProfileCacheTTL, 10_000)
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.Profiles = cached
		s.closers = append(s.closers, func(context.Context) error {
			cached.Close()
			return nil
		})
	}

	slog.InfoContext(ctx, "Stores opened", "driver", cfg.StoreDriver, "profile_cache_ttl", cfg.ProfileCacheTTL)
	return s, nil
}

// NewBadgerStores opens badger stores at path; an empty path is in-memory.
func NewBadgerStores(path string) (*Stores, error) {
	return openBadgerStores(path)
}

func openBadgerStores(path string) (*Stores, error) {
	db, err := OpenBadger(path)
	if err != nil {
		return nil, err
	}
	return newStores(NewBadgerUserStore(db), NewBadgerMessageStore(db), func(context.Context) error { return db.Close() }), nil
}

func openSurrealStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	conn := NewConnection(cfg)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	if err := EnsureSurrealSchema(ctx, conn); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to define schema: %w", err)
	}
	conn.StartMonitoring()

	return newStores(NewSurrealUserStore(conn), NewSurrealMessageStore(conn), conn.Close), nil
}

func openMongoStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	db, err := NewMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	return newStores(NewMongoUserStore(db), NewMongoMessageStore(db), db.Close), nil
}

func newStores(users domain.UserDirectory, messages domain.MessageStore, closer func(context.Context) error) *Stores {
	return &Stores{
		Users:    users,
		Profiles: users,
		Messages: messages,
		closers:  []func(context.Context) error{closer},
	}
}

// Close releases every resource the stores hold, in reverse opening order.
func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
