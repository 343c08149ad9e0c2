package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopChannel struct{}

func (noopChannel) Send(any) {}
func (noopChannel) Ready() bool { return true }

func newSession(id string) *Session {
	return &Session{ID: id, Channel: noopChannel{}}
}

func TestAttachAndGet(t *testing.T) {
	r := NewRegistry()
	s := newSession("a1")
	r.Attach(s)

	got, ok := r.Get("a1")
	require.True(t, ok)
	assert.Equal(t, s, got)
	assert.Equal(t, 1, r.Count())
}

func TestClaim_UniqueName(t *testing.T) {
	r := NewRegistry()
	a := newSession("a1")
	b := newSession("b1")
	r.Attach(a)
	r.Attach(b)

	assert.Equal(t, ClaimOK, r.Claim(a, "Alice"))
	assert.Equal(t, "Alice", a.Name)

	assert.Equal(t, ClaimTaken, r.Claim(b, "Alice"))
	assert.Empty(t, b.Name)

	assert.Equal(t, ClaimOK, r.Claim(b, "Bob"))
	assert.Equal(t, "Bob", b.Name)
}

func TestClaim_SameSessionTwiceIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := newSession("a1")
	r.Attach(a)

	assert.Equal(t, ClaimOK, r.Claim(a, "Alice"))
	assert.Equal(t, ClaimOK, r.Claim(a, "Alice"))

	bound, ok := r.ByName("Alice")
	require.True(t, ok)
	assert.Equal(t, "a1", bound.ID)
	assert.Equal(t, 1, r.NamedCount())
}

func TestClaim_Rename_ReleasesOldBinding(t *testing.T) {
	r := NewRegistry()
	a := newSession("a1")
	r.Attach(a)

	require.Equal(t, ClaimOK, r.Claim(a, "Alice"))
	require.Equal(t, ClaimOK, r.Claim(a, "Alicia"))

	_, stillBound := r.ByName("Alice")
	assert.False(t, stillBound, "old name binding must be released on rename")

	bound, ok := r.ByName("Alicia")
	require.True(t, ok)
	assert.Equal(t, "a1", bound.ID)
}

func TestRelease_ClearsNameBinding_Idempotent(t *testing.T) {
	r := NewRegistry()
	a := newSession("a1")
	r.Attach(a)
	require.Equal(t, ClaimOK, r.Claim(a, "Alice"))

	r.Release("a1")
	_, ok := r.Get("a1")
	assert.False(t, ok)
	_, ok = r.ByName("Alice")
	assert.False(t, ok)

	// idempotent: releasing again must not panic
	assert.NotPanics(t, func() { r.Release("a1") })
}

func TestSnapshot_OnlyNamedOrderedByID_BusyReflectsRoom(t *testing.T) {
	r := NewRegistry()
	a := newSession("b-session")
	b := newSession("a-session")
	c := newSession("c-session")
	r.Attach(a)
	r.Attach(b)
	r.Attach(c) // unnamed, excluded from snapshot

	require.Equal(t, ClaimOK, r.Claim(a, "Bob"))
	require.Equal(t, ClaimOK, r.Claim(b, "Alice"))
	a.RoomID = "room-1"

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a-session", snap[0].ID)
	assert.Equal(t, "b-session", snap[1].ID)
	assert.False(t, snap[0].Busy)
	assert.True(t, snap[1].Busy)
}

func TestSetRoomIDAndGetRoomID(t *testing.T) {
	r := NewRegistry()
	a := newSession("a1")
	r.Attach(a)

	ok := r.SetRoomID("a1", "room-9")
	assert.True(t, ok)
	roomID, ok := r.GetRoomID("a1")
	require.True(t, ok)
	assert.Equal(t, "room-9", roomID)

	assert.False(t, r.SetRoomID("missing", "room-9"))
	_, ok = r.GetRoomID("missing")
	assert.False(t, ok)
}
