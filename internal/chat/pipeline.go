package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nfrund/parley/internal/domain"
	"github.com/nfrund/parley/internal/protocol"
)

// Broadcaster delivers an encoded frame to the members of a room.
type Broadcaster interface {
	Publish(ctx context.Context, roomID string, payload []byte) error
}

// Stage is a step of the message pipeline.
type Stage int

const (
	StageReceived Stage = iota
	StagePersisted
	StageSenderResolved
	StageBroadcast
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StagePersisted:
		return "persisted"
	case StageSenderResolved:
		return "sender-resolved"
	case StageBroadcast:
		return "broadcast"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError reports the stage a message failed to reach.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("message not %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stored reports whether the message was persisted before the failure, in
// which case it will show up in history even though it was never broadcast.
func (e *StageError) Stored() bool { return e.Stage > StagePersisted }

// SendCommand is one sendMessage request. SenderID comes from the
// authenticated session, never from the client payload.
type SendCommand struct {
	RoomID   string
	SenderID string
	Body     string
}

// PipelineOptions tunes a Pipeline. Zero values select the defaults.
type PipelineOptions struct {
	MaxMessageLength int
	StoreTimeout     time.Duration
}

const (
	defaultMaxMessageLength = 4000
	defaultStoreTimeout     = 10 * time.Second
)

// Pipeline persists messages, resolves their sender and broadcasts them.
// Within a room, broadcasts leave in the order messages were persisted.
type Pipeline struct {
	store    domain.MessageStore
	resolver *Resolver
	out      Broadcaster
	seq      *sequencer

	maxLen  int
	timeout time.Duration
}

// NewPipeline creates a Pipeline.
func NewPipeline(store domain.MessageStore, resolver *Resolver, out Broadcaster, opts PipelineOptions) *Pipeline {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = defaultMaxMessageLength
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	return &Pipeline{
		store:    store,
		resolver: resolver,
		out:      out,
		seq:      newSequencer(),
		maxLen:   opts.MaxMessageLength,
		timeout:  opts.StoreTimeout,
	}
}

// Send runs cmd through the pipeline and returns the broadcast message.
//
// Invalid commands fail with domain.ErrValidation before the store is touched.
// Persistence or sender resolution failures return a *StageError and nothing
// is broadcast. A failed broadcast is logged; the message stays persisted.
//
// Store calls outlive ctx cancellation so that a message accepted from a
// session that disconnects right away is still stored.
func (p *Pipeline) Send(ctx context.Context, cmd SendCommand) (*domain.ResolvedMessage, error) {
	if err := p.validate(cmd); err != nil {
		return nil, err
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	unlock := p.seq.lock(cmd.RoomID)
	defer unlock()

	stored, err := p.store.AppendMessage(storeCtx, domain.NewMessage{
		RoomID:   cmd.RoomID,
		SenderID: cmd.SenderID,
		Body:     cmd.Body,
	})
	if err != nil {
		return nil, &StageError{Stage: StagePersisted, Err: err}
	}

	sender, err := p.resolver.Resolve(storeCtx, stored.SenderID)
	if err != nil {
		slog.ErrorContext(ctx, "Stored message has unresolvable sender", "message_id", stored.ID, "room_id", stored.RoomID, "error", err)
		return nil, &StageError{Stage: StageSenderResolved, Err: err}
	}
	resolved := &domain.ResolvedMessage{Message: *stored, Sender: sender}

	frame, err := protocol.NewMessageFrame(*resolved)
	if err != nil {
		return nil, &StageError{Stage: StageBroadcast, Err: err}
	}
	if err := p.out.Publish(storeCtx, stored.RoomID, frame); err != nil {
		slog.WarnContext(ctx, "Failed to broadcast message", "message_id", stored.ID, "room_id", stored.RoomID, "error", err)
	}

	slog.DebugContext(ctx, "Message delivered", "message_id", stored.ID, "room_id", stored.RoomID, "stage", StageDone)
	return resolved, nil
}

func (p *Pipeline) validate(cmd SendCommand) error {
	switch {
	case strings.TrimSpace(cmd.RoomID) == "":
		return domain.NewValidationError("roomId", "room id is required")
	case cmd.SenderID == "":
		return domain.NewValidationError("senderId", "sender is required")
	case strings.TrimSpace(cmd.Body) == "":
		return domain.NewValidationError("body", "message body is required")
	case utf8.RuneCountInString(cmd.Body) > p.maxLen:
		return domain.NewValidationError("body", fmt.Sprintf("message body exceeds %d characters", p.maxLen))
	}
	return nil
}
