package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nfrund/parley/internal/database"
	"github.com/nfrund/parley/internal/domain"
	"github.com/nfrund/parley/internal/protocol"
	"github.com/nfrund/parley/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recordingBroadcaster keeps every published frame per room.
type recordingBroadcaster struct {
	mu     sync.Mutex
	frames map[string][][]byte
	err    error
}

func newRecorder() *recordingBroadcaster {
	return &recordingBroadcaster{frames: make(map[string][][]byte)}
}

func (r *recordingBroadcaster) Publish(_ context.Context, roomID string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[roomID] = append(r.frames[roomID], payload)
	return r.err
}

func (r *recordingBroadcaster) messages(t *testing.T, roomID string) []domain.ResolvedMessage {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ResolvedMessage, 0, len(r.frames[roomID]))
	for _, raw := range r.frames[roomID] {
		f, err := protocol.Decode(raw)
		require.NoError(t, err)
		require.Equal(t, protocol.EventNewMessage, f.Event)
		var m domain.ResolvedMessage
		require.NoError(t, json.Unmarshal(f.Data, &m))
		out = append(out, m)
	}
	return out
}

type fixture struct {
	users    domain.UserDirectory
	messages domain.MessageStore
	out      *recordingBroadcaster
	pipeline *Pipeline
	history  *History
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores, err := database.NewBadgerStores("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close(context.Background()) })

	resolver := NewResolver(stores.Users)
	out := newRecorder()
	return &fixture{
		users:    stores.Users,
		messages: stores.Messages,
		out:      out,
		pipeline: NewPipeline(stores.Messages, resolver, out, PipelineOptions{MaxMessageLength: 20}),
		history:  NewHistory(stores.Messages, resolver, HistoryOptions{}),
	}
}

func (f *fixture) user(t *testing.T, email, name string) *domain.User {
	t.Helper()
	return testutils.NewUser(t, f.users, email, name)
}

func bodies(msgs []domain.ResolvedMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Body
	}
	return out
}

func TestPipeline_SendThenFetch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.user(t, "ann@example.com", "Ann")

	sent, err := f.pipeline.Send(ctx, SendCommand{RoomID: "lobby", SenderID: ann.ID, Body: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, domain.Profile{ID: ann.ID, Email: ann.Email, Name: "Ann"}, sent.Sender)

	page, err := f.history.Fetch(ctx, "lobby", 1, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, sent.ID, page[0].ID)
	assert.Equal(t, "hello", page[0].Body)
	assert.Equal(t, sent.Sender, page[0].Sender)

	broadcast := f.out.messages(t, "lobby")
	require.Len(t, broadcast, 1)
	assert.Equal(t, sent.ID, broadcast[0].ID)
	assert.Equal(t, "Ann", broadcast[0].Sender.Name)
}

func TestPipeline_Validation(t *testing.T) {
	store := new(testutils.MockMessageStore)
	users := new(testutils.MockUserDirectory)
	p := NewPipeline(store, NewResolver(users), newRecorder(), PipelineOptions{MaxMessageLength: 5})

	tests := []struct {
		name string
		cmd  SendCommand
	}{
		{"missing room", SendCommand{SenderID: "u", Body: "hi"}},
		{"blank room", SendCommand{RoomID: "  ", SenderID: "u", Body: "hi"}},
		{"missing sender", SendCommand{RoomID: "r", Body: "hi"}},
		{"blank body", SendCommand{RoomID: "r", SenderID: "u", Body: " \n"}},
		{"too long", SendCommand{RoomID: "r", SenderID: "u", Body: "toolong"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Send(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	store.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything)

	store.On("AppendMessage", mock.Anything, mock.Anything).Return(nil, domain.ErrStoreUnavailable)
	_, err := p.Send(context.Background(), SendCommand{RoomID: "r", SenderID: "u", Body: "héllo"})
	assert.NotErrorIs(t, err, domain.ErrValidation, "length counts characters, not bytes")
}

func TestPipeline_PersistFailureBroadcastsNothing(t *testing.T) {
	store := new(testutils.MockMessageStore)
	users := new(testutils.MockUserDirectory)
	out := newRecorder()
	p := NewPipeline(store, NewResolver(users), out, PipelineOptions{})

	storeErr := database.NewStoreError("test.AppendMessage", errors.New("disk full"))
	store.On("AppendMessage", mock.Anything, mock.Anything).Return(nil, storeErr)

	_, err := p.Send(context.Background(), SendCommand{RoomID: "r", SenderID: "u", Body: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePersisted, stageErr.Stage)
	assert.False(t, stageErr.Stored())
	assert.Empty(t, out.frames)
	users.AssertNotCalled(t, "FindUserByID", mock.Anything, mock.Anything)
}

func TestPipeline_ResolveFailureBroadcastsNothing(t *testing.T) {
	store := new(testutils.MockMessageStore)
	users := new(testutils.MockUserDirectory)
	out := newRecorder()
	p := NewPipeline(store, NewResolver(users), out, PipelineOptions{})

	store.On("AppendMessage", mock.Anything, mock.Anything).
		Return(&domain.Message{ID: "m1", RoomID: "r", SenderID: "u", Body: "hi", CreatedAt: time.Now()}, nil)
	users.On("FindUserByID", mock.Anything, "u").Return(nil, errors.New("connection reset"))

	_, err := p.Send(context.Background(), SendCommand{RoomID: "r", SenderID: "u", Body: "hi"})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageSenderResolved, stageErr.Stage)
	assert.True(t, stageErr.Stored(), "the message is already in the store")
	assert.Empty(t, out.frames)
}

func TestPipeline_BroadcastFailureKeepsMessage(t *testing.T) {
	f := newFixture(t)
	f.out.err = errors.New("bus closed")
	ann := f.user(t, "ann@example.com", "Ann")

	sent, err := f.pipeline.Send(context.Background(), SendCommand{RoomID: "r", SenderID: ann.ID, Body: "hi"})
	require.NoError(t, err)

	page, err := f.history.Fetch(context.Background(), "r", 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, sent.ID, page[0].ID)
}

func TestPipeline_StoreOutlivesCanceledContext(t *testing.T) {
	f := newFixture(t)
	ann := f.user(t, "ann@example.com", "Ann")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Send(ctx, SendCommand{RoomID: "r", SenderID: ann.ID, Body: "late"})
	require.NoError(t, err)

	page, err := f.history.Fetch(context.Background(), "r", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"late"}, bodies(page))
}

func TestPipeline_BroadcastOrderMatchesPersistOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	senders := []*domain.User{
		f.user(t, "a@example.com", "A"),
		f.user(t, "b@example.com", "B"),
		f.user(t, "c@example.com", "C"),
	}

	var wg sync.WaitGroup
	for i, s := range senders {
		wg.Add(1)
		go func(i int, s *domain.User) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := f.pipeline.Send(ctx, SendCommand{RoomID: "busy", SenderID: s.ID, Body: fmt.Sprintf("%d-%d", i, j)})
				assert.NoError(t, err)
			}
		}(i, s)
	}
	wg.Wait()

	broadcast := f.out.messages(t, "busy")
	page, err := f.history.Fetch(ctx, "busy", 100, 0)
	require.NoError(t, err)

	require.Len(t, broadcast, 30)
	assert.Equal(t, bodies(page), bodies(broadcast))
	assert.Zero(t, f.pipeline.seq.size())
}

func TestHistory_AdjacentPagesEqualDoublePage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.user(t, "ann@example.com", "Ann")

	for i := 0; i < 130; i++ {
		_, err := f.pipeline.Send(ctx, SendCommand{RoomID: "lobby", SenderID: ann.ID, Body: fmt.Sprintf("m%03d", i)})
		require.NoError(t, err)
	}

	wide := NewHistory(f.messages, NewResolver(f.users), HistoryOptions{MaxLimit: 200})

	for _, n := range []int{1, 3, 5, 10, 12, 50, 60} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			older, err := wide.Fetch(ctx, "lobby", n, n)
			require.NoError(t, err)
			newer, err := wide.Fetch(ctx, "lobby", n, 0)
			require.NoError(t, err)
			both, err := wide.Fetch(ctx, "lobby", 2*n, 0)
			require.NoError(t, err)

			require.Len(t, both, 2*n)
			assert.Equal(t, bodies(both), append(bodies(older), bodies(newer)...))
		})
	}

	latest, err := f.history.Fetch(ctx, "lobby", 3, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m127", "m128", "m129"}, bodies(latest), "pages are oldest first")

	beyond, err := f.history.Fetch(ctx, "lobby", 10, 200)
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestHistory_LimitAboveMaxIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.user(t, "ann@example.com", "Ann")

	for i := 0; i < 130; i++ {
		_, err := f.pipeline.Send(ctx, SendCommand{RoomID: "lobby", SenderID: ann.ID, Body: fmt.Sprintf("m%03d", i)})
		require.NoError(t, err)
	}

	page, err := f.history.Fetch(ctx, "lobby", 100, 0)
	require.NoError(t, err)
	assert.Len(t, page, 100)

	page, err = f.history.Fetch(ctx, "lobby", 120, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Nil(t, page, "an oversized page is refused, never shortened")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "limit", verr.Field)
	assert.Equal(t, "Limit must not exceed 100", verr.Reason)
}

func TestHistory_Window(t *testing.T) {
	h := NewHistory(nil, nil, HistoryOptions{DefaultLimit: 50, MaxLimit: 100})

	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
		wantErr               bool
	}{
		{0, 0, 50, 0, false},
		{-1, -5, 50, 0, false},
		{20, 40, 20, 40, false},
		{100, 0, 100, 0, false},
		{101, 0, 0, 0, true},
		{1000, 0, 0, 0, true},
	}
	for _, tt := range tests {
		l, o, err := h.Window(tt.limit, tt.offset)
		if tt.wantErr {
			assert.ErrorIs(t, err, domain.ErrValidation)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.wantLimit, l)
		assert.Equal(t, tt.wantOffset, o)
	}
}

func TestHistory_EmptyRoom(t *testing.T) {
	f := newFixture(t)
	page, err := f.history.Fetch(context.Background(), "quiet", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = f.history.Fetch(context.Background(), "", 0, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestHistory_DeletedSenderGetsPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.user(t, "ann@example.com", "Ann")
	bob := f.user(t, "bob@example.com", "Bob")

	_, err := f.pipeline.Send(ctx, SendCommand{RoomID: "r", SenderID: ann.ID, Body: "from ann"})
	require.NoError(t, err)
	_, err = f.pipeline.Send(ctx, SendCommand{RoomID: "r", SenderID: bob.ID, Body: "from bob"})
	require.NoError(t, err)

	require.NoError(t, f.users.DeleteUser(ctx, ann.ID))

	page, err := f.history.Fetch(ctx, "r", 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, domain.PlaceholderProfile(ann.ID), page[0].Sender)
	assert.Equal(t, "Bob", page[1].Sender.Name)

	// A message from a sender deleted before sending still broadcasts.
	sent, err := f.pipeline.Send(ctx, SendCommand{RoomID: "r", SenderID: ann.ID, Body: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownSenderName, sent.Sender.Name)
}

func TestResolver_ResolveAllLooksUpEachSenderOnce(t *testing.T) {
	users := new(testutils.MockUserDirectory)
	users.On("FindUserByID", mock.Anything, "a").Return(&domain.User{ID: "a", Name: "A"}, nil).Once()
	users.On("FindUserByID", mock.Anything, "gone").Return(nil, domain.ErrNotFound).Once()

	msgs := []domain.Message{
		{ID: "1", SenderID: "a"},
		{ID: "2", SenderID: "gone"},
		{ID: "3", SenderID: "a"},
		{ID: "4", SenderID: "gone"},
	}
	resolved, err := NewResolver(users).ResolveAll(context.Background(), msgs)
	require.NoError(t, err)

	require.Len(t, resolved, 4)
	assert.Equal(t, []string{"1", "2", "3", "4"}, []string{resolved[0].ID, resolved[1].ID, resolved[2].ID, resolved[3].ID})
	assert.Equal(t, "A", resolved[2].Sender.Name)
	assert.Equal(t, domain.UnknownSenderName, resolved[3].Sender.Name)
	users.AssertExpectations(t)
}

func TestResolver_StoreFailure(t *testing.T) {
	users := new(testutils.MockUserDirectory)
	users.On("FindUserByID", mock.Anything, "a").Return(nil, errors.New("timeout"))

	_, err := NewResolver(users).ResolveAll(context.Background(), []domain.Message{{ID: "1", SenderID: "a"}})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "sender-resolved", StageSenderResolved.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
}
