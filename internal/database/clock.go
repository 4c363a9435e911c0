package database

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// stampClock hands out message ids and creation times. Times never go
// backwards, even when the wall clock does, and ids sort in the same order as
// the times they were issued with.
type stampClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newStampClock() *stampClock {
	return &stampClock{now: time.Now}
}

// Next returns a UUIDv7 string and a UTC timestamp strictly after the previous one.
func (c *stampClock) Next() (string, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := uuid.NewV7()
	if err != nil {
		return "", time.Time{}, err
	}

	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return id.String(), t, nil
}
