// Package room implements the Room Registry: the table mapping room id to
// its member connection ids. Rooms hold only ids; they look sessions up
// through the SessionLocator interface rather than owning them — the
// presence registry owns sessions, this package owns rooms, and the two
// reference each other by id only.
//
// Registry is not internally synchronized, for the same reason
// presence.Registry isn't: the hub's single coarse mutex serializes every
// mutation across both tables.
package room

// SessionLocator is the thin view of the presence registry that the room
// registry needs in order to keep session.roomId in sync with room
// membership.
type SessionLocator interface {
	SetRoomID(sessionID, roomID string) bool
	GetRoomID(sessionID string) (string, bool)
}

// Room is a set of member session ids.
type Room struct {
	ID      string
	Members map[string]struct{}
}

// Registry is the room table.
type Registry struct {
	rooms  map[string]*Room
	locate SessionLocator
}

// NewRegistry constructs an empty Registry bound to a SessionLocator.
func NewRegistry(locator SessionLocator) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		locate: locator,
	}
}

// Ensure returns the room with id, creating it if absent.
func (r *Registry) Ensure(id string) *Room {
	if existing, ok := r.rooms[id]; ok {
		return existing
	}
	room := &Room{ID: id, Members: make(map[string]struct{})}
	r.rooms[id] = room
	return room
}

// Get returns the room with id, if any.
func (r *Registry) Get(id string) (*Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

// Join adds sessionID to room and sets its roomId, keeping room membership
// and session.roomId consistent.
func (r *Registry) Join(room *Room, sessionID string) {
	room.Members[sessionID] = struct{}{}
	r.locate.SetRoomID(sessionID, room.ID)
}

// Leave removes sessionID from room and clears its roomId.
func (r *Registry) Leave(room *Room, sessionID string) {
	delete(room.Members, sessionID)
	r.locate.SetRoomID(sessionID, "")
}

// IsPair reports whether a and b are both members of the room identified by
// roomID, used by the router to confine `signal` relays to same-room
// peers.
func (r *Registry) IsPair(a, b, roomID string) bool {
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	_, aIn := room.Members[a]
	_, bIn := room.Members[b]
	return aIn && bIn
}

// DissolutionResult reports the outcome of DissolveIfSmall.
type DissolutionResult struct {
	Dissolved    bool
	LastMemberID string // set iff Dissolved and a member remained
	RoomExisted  bool
}

// DissolveIfSmall checks whether room now has ≤1 member; if so, the last
// member (if any) has its roomId cleared and the room is deleted. The
// caller is responsible for sending that member the `callEnded` frame
// with reason "alone".
func (r *Registry) DissolveIfSmall(room *Room) DissolutionResult {
	if len(room.Members) > 1 {
		return DissolutionResult{}
	}

	var lastID string
	for id := range room.Members {
		lastID = id
	}
	if lastID != "" {
		r.locate.SetRoomID(lastID, "")
	}
	delete(r.rooms, room.ID)

	return DissolutionResult{Dissolved: true, LastMemberID: lastID, RoomExisted: true}
}

// Count returns the number of active rooms.
func (r *Registry) Count() int {
	return len(r.rooms)
}

// RoomsWithAtLeast returns the number of rooms with at least k members —
// used to compute VoiceStats.activeCalls (k=2).
func (r *Registry) RoomsWithAtLeast(k int) int {
	n := 0
	for _, room := range r.rooms {
		if len(room.Members) >= k {
			n++
		}
	}
	return n
}

// Sizes returns the member count of every room, used to compute
// peerLinksEstimate (the sum over rooms of k·(k-1)/2).
func (r *Registry) Sizes() []int {
	sizes := make([]int, 0, len(r.rooms))
	for _, room := range r.rooms {
		sizes = append(sizes, len(room.Members))
	}
	return sizes
}
