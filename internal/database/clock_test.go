package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampClock_NeverGoesBackwards(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newStampClock()
	c.now = func() time.Time { return fixed }

	_, first, err := c.Next()
	require.NoError(t, err)
	_, second, err := c.Next()
	require.NoError(t, err)

	assert.True(t, second.After(first))

	c.now = func() time.Time { return fixed.Add(-time.Hour) }
	_, third, err := c.Next()
	require.NoError(t, err)
	assert.True(t, third.After(second))
}

func TestStampClock_IDsFollowTimes(t *testing.T) {
	c := newStampClock()
	prevID, _, err := c.Next()
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		id, _, err := c.Next()
		require.NoError(t, err)
		assert.Greater(t, id, prevID)
		prevID = id
	}
}
