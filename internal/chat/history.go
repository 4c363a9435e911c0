package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nfrund/parley/internal/domain"
	"github.com/samber/lo"
)

// HistoryOptions tunes History. Zero values select the defaults.
type HistoryOptions struct {
	DefaultLimit int
	MaxLimit     int
	StoreTimeout time.Duration
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// History serves pages of a room's stored messages.
type History struct {
	store    domain.MessageStore
	resolver *Resolver
	opts     HistoryOptions
}

// NewHistory creates a History.
func NewHistory(store domain.MessageStore, resolver *Resolver, opts HistoryOptions) *History {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaultHistoryLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = maxHistoryLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	return &History{store: store, resolver: resolver, opts: opts}
}

// Fetch returns one page of roomID, oldest first. offset counts messages back
// from the newest one, so Fetch(r, n, 0) is the latest n messages and
// Fetch(r, n, n) the n before them. A limit <= 0 selects the default; a limit
// above MaxLimit is rejected. A room without messages yields an empty page.
func (h *History) Fetch(ctx context.Context, roomID string, limit, offset int) ([]domain.ResolvedMessage, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, domain.NewValidationError("roomId", "room id is required")
	}
	limit, offset, err := h.Window(limit, offset)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.opts.StoreTimeout)
	defer cancel()

	newestFirst, err := h.store.ListMessages(ctx, roomID, limit, offset)
	if err != nil {
		return nil, err
	}

	oldestFirst := lo.Map(newestFirst, func(_ domain.Message, i int) domain.Message {
		return newestFirst[len(newestFirst)-1-i]
	})
	resolved, err := h.resolver.ResolveAll(ctx, oldestFirst)
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// Window applies defaults to a requested limit and offset. A page is never
// shortened silently: a limit above MaxLimit is a validation error.
func (h *History) Window(limit, offset int) (int, int, error) {
	if limit <= 0 {
		limit = h.opts.DefaultLimit
	}
	if limit > h.opts.MaxLimit {
		return 0, 0, domain.NewValidationError("limit", fmt.Sprintf("Limit must not exceed %d", h.opts.MaxLimit))
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, nil
}
