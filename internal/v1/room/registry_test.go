package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLocator is a minimal SessionLocator recording room-id assignments,
// mirroring what presence.Registry does in production.
type fakeLocator struct {
	roomID map[string]string
}

func newFakeLocator() *fakeLocator {
	return &fakeLocator{roomID: make(map[string]string)}
}

func (f *fakeLocator) SetRoomID(sessionID, roomID string) bool {
	f.roomID[sessionID] = roomID
	return true
}

func (f *fakeLocator) GetRoomID(sessionID string) (string, bool) {
	id, ok := f.roomID[sessionID]
	return id, ok
}

func TestEnsure_CreatesOnceReturnsSameRoom(t *testing.T) {
	r := NewRegistry(newFakeLocator())
	a := r.Ensure("room-1")
	b := r.Ensure("room-1")
	assert.Same(t, a, b)
	assert.Equal(t, 1, r.Count())
}

func TestJoinLeave_UpdatesSessionRoomID(t *testing.T) {
	loc := newFakeLocator()
	r := NewRegistry(loc)
	room := r.Ensure("room-1")

	r.Join(room, "alice")
	r.Join(room, "bob")

	roomID, _ := loc.GetRoomID("alice")
	assert.Equal(t, "room-1", roomID)
	assert.True(t, r.IsPair("alice", "bob", "room-1"))

	r.Leave(room, "alice")
	roomID, _ = loc.GetRoomID("alice")
	assert.Empty(t, roomID)
	assert.False(t, r.IsPair("alice", "bob", "room-1"))
}

func TestIsPair_FalseForUnknownRoomOrNonMember(t *testing.T) {
	loc := newFakeLocator()
	r := NewRegistry(loc)
	room := r.Ensure("room-1")
	r.Join(room, "alice")

	assert.False(t, r.IsPair("alice", "bob", "room-1"))
	assert.False(t, r.IsPair("alice", "bob", "no-such-room"))
}

func TestDissolveIfSmall_LeavesRoomAlone_WhenMoreThanOneMember(t *testing.T) {
	loc := newFakeLocator()
	r := NewRegistry(loc)
	room := r.Ensure("room-1")
	r.Join(room, "alice")
	r.Join(room, "bob")
	r.Join(room, "carol")

	result := r.DissolveIfSmall(room)
	assert.False(t, result.Dissolved)
	_, stillExists := r.Get("room-1")
	assert.True(t, stillExists)
}

func TestDissolveIfSmall_ClearsLastMemberAndDeletesRoom(t *testing.T) {
	loc := newFakeLocator()
	r := NewRegistry(loc)
	room := r.Ensure("room-1")
	r.Join(room, "alice")
	r.Join(room, "bob")

	r.Leave(room, "bob")
	result := r.DissolveIfSmall(room)

	require.True(t, result.Dissolved)
	assert.Equal(t, "alice", result.LastMemberID)

	roomID, _ := loc.GetRoomID("alice")
	assert.Empty(t, roomID, "the last member's roomId must be cleared")

	_, exists := r.Get("room-1")
	assert.False(t, exists)
}

func TestDissolveIfSmall_EmptyRoom_NoLastMember(t *testing.T) {
	loc := newFakeLocator()
	r := NewRegistry(loc)
	room := r.Ensure("room-1")

	result := r.DissolveIfSmall(room)
	assert.True(t, result.Dissolved)
	assert.Empty(t, result.LastMemberID)
}

func TestRoomsWithAtLeastAndSizes(t *testing.T) {
	loc := newFakeLocator()
	r := NewRegistry(loc)

	solo := r.Ensure("solo")
	r.Join(solo, "a")

	pair := r.Ensure("pair")
	r.Join(pair, "b")
	r.Join(pair, "c")

	assert.Equal(t, 1, r.RoomsWithAtLeast(2))
	assert.ElementsMatch(t, []int{1, 2}, r.Sizes())
}
