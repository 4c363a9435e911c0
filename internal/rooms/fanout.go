package rooms

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nfrund/parley/internal/pubsub"
)

// TopicBroadcast carries encoded frames destined for every member of a room.
const TopicBroadcast = "rooms.broadcast"

const metaRoomID = "room_id"

// LocalFanout hands frames straight to a Registry.
type LocalFanout struct {
	registry *Registry
}

// NewLocalFanout creates a LocalFanout over registry.
func NewLocalFanout(registry *Registry) *LocalFanout {
	return &LocalFanout{registry: registry}
}

// Publish delivers payload to the members of roomID.
func (f *LocalFanout) Publish(ctx context.Context, roomID string, payload []byte) error {
	n := f.registry.Broadcast(roomID, payload)
	slog.DebugContext(ctx, "Room broadcast", "room_id", roomID, "recipients", n)
	return nil
}

// BusFanout puts frames on the pub/sub bus; a Relay delivers them to the registry.
type BusFanout struct {
	publisher pubsub.Publisher
}

// NewBusFanout creates a BusFanout publishing on publisher.
func NewBusFanout(publisher pubsub.Publisher) *BusFanout {
	return &BusFanout{publisher: publisher}
}

// Publish sends payload for roomID onto the bus.
func (f *BusFanout) Publish(ctx context.Context, roomID string, payload []byte) error {
	return f.publisher.Publish(ctx, pubsub.Message{
		Topic:    TopicBroadcast,
		Payload:  payload,
		Metadata: map[string]string{metaRoomID: roomID},
	})
}

// Relay consumes TopicBroadcast and broadcasts each frame through a Registry.
type Relay struct {
	subscriber pubsub.Subscriber
	registry   *Registry
}

// NewRelay creates a Relay.
func NewRelay(subscriber pubsub.Subscriber, registry *Registry) *Relay {
	return &Relay{subscriber: subscriber, registry: registry}
}

// Start subscribes the relay. It returns once the subscription is active and
// keeps relaying until ctx is canceled.
func (r *Relay) Start(ctx context.Context) error {
	return r.subscriber.Subscribe(ctx, TopicBroadcast, func(ctx context.Context, msg pubsub.Message) error {
		roomID := msg.Metadata[metaRoomID]
		if roomID == "" {
			return errors.New("broadcast without room id")
		}
		r.registry.Broadcast(roomID, msg.Payload)
		return nil
	})
}
