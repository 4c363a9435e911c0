package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nfrund/parley/internal/config"
	"github.com/nfrund/parley/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_BadgerWithCache(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		StoreDriver:     config.DriverBadger,
		BadgerPath:      t.TempDir(),
		ProfileCacheTTL: time.Minute,
	}

	stores, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer stores.Close(ctx)

	cached, isCached := stores.Profiles.(*CachedDirectory)
	require.True(t, isCached)
	_, usersCached := stores.Users.(*CachedDirectory)
	assert.False(t, usersCached, "Users reads through to the backend")

	user := &domain.User{Email: "c@example.com", Name: "C"}
	require.NoError(t, stores.Users.CreateUser(ctx, user))
	got, err := stores.Profiles.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "C", got.Name)
	cached.Wait()

	// A delete that bypasses the cache, as another process would make it.
	require.NoError(t, stores.Users.DeleteUser(ctx, user.ID))

	_, err = stores.Users.FindUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stale, err := stores.Profiles.FindUserByID(ctx, user.ID)
	require.NoError(t, err, "profiles may lag a foreign delete by up to the TTL")
	assert.Equal(t, user.ID, stale.ID)
}

func TestOpen_WithoutCacheSharesDirectory(t *testing.T) {
	stores, err := NewBadgerStores("")
	require.NoError(t, err)
	defer stores.Close(context.Background())

	assert.Same(t, stores.Users, stores.Profiles)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreDriver: "sqlite"})
	assert.Error(t, err)
}

func TestStoreError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := NewStoreError("badger.AppendMessage", cause)

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "badger.AppendMessage")

	assert.Same(t, err, NewStoreError("outer", err))
	assert.NoError(t, NewStoreError("noop", nil))
}
