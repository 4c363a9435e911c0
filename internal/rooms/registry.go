// Package rooms tracks which live sessions belong to which chat rooms and
// fans room traffic out to them.
package rooms

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Member is a live session that can be placed in rooms.
type Member interface {
	// ID identifies the session, not the user: one user may hold several sessions.
	ID() string
	// Deliver queues payload for the session without blocking.
	Deliver(payload []byte) error
}

// room is one entry of the registry. A room whose last member left is marked
// dead and dropped from the table; joins that raced with the removal retry.
type room struct {
	mu      sync.RWMutex
	members map[string]Member
	dead    bool
}

// membership is the per-member index used by LeaveAll.
type membership struct {
	mu    sync.Mutex
	rooms map[string]struct{}
}

// Registry maps room ids to their current members. Rooms are created on the
// first join and removed when the last member leaves. Operations on different
// rooms never contend on a shared lock.
type Registry struct {
	rooms   sync.Map // string -> *room
	members sync.Map // member id -> *membership
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Join adds m to roomID. Joining a room twice is a no-op.
func (r *Registry) Join(m Member, roomID string) {
	ms := r.membershipOf(m)
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for {
		v, _ := r.rooms.LoadOrStore(roomID, &room{members: make(map[string]Member)})
		rm := v.(*room)

		rm.mu.Lock()
		if rm.dead {
			rm.mu.Unlock()
			continue
		}
		rm.members[m.ID()] = m
		rm.mu.Unlock()
		break
	}

	ms.rooms[roomID] = struct{}{}
}

// Leave removes m from roomID. Leaving a room m is not in is a no-op.
func (r *Registry) Leave(m Member, roomID string) {
	if v, ok := r.members.Load(m.ID()); ok {
		ms := v.(*membership)
		ms.mu.Lock()
		delete(ms.rooms, roomID)
		ms.mu.Unlock()
	}
	r.removeFromRoom(m.ID(), roomID)
}

// LeaveAll removes m from every room it joined and forgets it. Once LeaveAll
// returns no broadcast reaches m. Callers must stop issuing Join for m first.
func (r *Registry) LeaveAll(m Member) {
	v, ok := r.members.Load(m.ID())
	if !ok {
		return
	}
	ms := v.(*membership)

	ms.mu.Lock()
	joined := ms.rooms
	ms.rooms = make(map[string]struct{})
	ms.mu.Unlock()

	for roomID := range joined {
		r.removeFromRoom(m.ID(), roomID)
	}
	r.members.Delete(m.ID())
}

// Broadcast delivers payload to every current member of roomID, the sender
// included. Delivery is best effort: a failing member is logged and skipped.
// It returns the number of members the payload was handed to.
func (r *Registry) Broadcast(roomID string, payload []byte) int {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return 0
	}
	rm := v.(*room)

	rm.mu.RLock()
	targets := lo.Values(rm.members)
	rm.mu.RUnlock()

	delivered := 0
	for _, m := range targets {
		if err := m.Deliver(payload); err != nil {
			slog.Warn("Failed to deliver room message", "room_id", roomID, "session_id", m.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Members returns the number of members currently in roomID.
func (r *Registry) Members(roomID string) int {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return 0
	}
	rm := v.(*room)
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.members)
}

// RoomsOf returns the rooms m is in, sorted.
func (r *Registry) RoomsOf(m Member) []string {
	v, ok := r.members.Load(m.ID())
	if !ok {
		return nil
	}
	ms := v.(*membership)
	ms.mu.Lock()
	out := lo.Keys(ms.rooms)
	ms.mu.Unlock()
	sort.Strings(out)
	return out
}

// Rooms returns the number of rooms with at least one member.
func (r *Registry) Rooms() int {
	n := 0
	r.rooms.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (r *Registry) membershipOf(m Member) *membership {
	if v, ok := r.members.Load(m.ID()); ok {
		return v.(*membership)
	}
	v, _ := r.members.LoadOrStore(m.ID(), &membership{rooms: make(map[string]struct{})})
	return v.(*membership)
}

func (r *Registry) removeFromRoom(memberID, roomID string) {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return
	}
	rm := v.(*room)

	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.members, memberID)
	if len(rm.members) == 0 && !rm.dead {
		rm.dead = true
		r.rooms.CompareAndDelete(roomID, rm)
	}
}
