// Package presence implements the process-wide table mapping connection
// id to session record, plus the secondary name → id index that enforces
// unique display names.
//
// Registry is deliberately not internally synchronized: callers share one
// coarse lock across every shared table rather than one lock per table, so
// the hub package owns that mutex and is the only caller of these methods.
package presence

import (
	"sort"

	"github.com/Preon1/lrcom/internal/v1/ratelimit"
)

// Channel is the write-only handle a session uses to deliver an outbound
// frame to its peer, plus a readiness predicate so callers can tell a live
// connection from one that is already tearing down. The hub's Client type
// implements this.
type Channel interface {
	Send(frame any)
	Ready() bool
}

// Session is the hub's record of one live duplex channel.
type Session struct {
	ID          string
	Name        string
	Channel     Channel
	RoomID      string
	LastFrameAt int64 // unix millis
	Rate        ratelimit.SessionCounter
}

// Busy reports whether the session currently belongs to a room.
func (s *Session) Busy() bool {
	return s.RoomID != ""
}

// Registry is the presence table.
type Registry struct {
	sessions map[string]*Session
	byName   map[string]string // name -> session id
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byName:   make(map[string]string),
	}
}

// Attach inserts a freshly created, unnamed session. It does not broadcast;
// broadcasting is the router's responsibility once the mutation commits.
func (r *Registry) Attach(s *Session) {
	r.sessions[s.ID] = s
}

// Get returns the session for id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// ByName returns the session currently holding name, if any.
func (r *Registry) ByName(name string) (*Session, bool) {
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.Get(id)
}

// ClaimResult is the outcome of Claim.
type ClaimResult int

const (
	ClaimOK ClaimResult = iota
	ClaimTaken
)

// Claim attempts to bind name to session.ID. If name is already held by a
// different session, it fails with ClaimTaken. If the session previously
// held a different name, that binding is released atomically before the
// new one is set.
func (r *Registry) Claim(s *Session, name string) ClaimResult {
	if existingID, ok := r.byName[name]; ok && existingID != s.ID {
		return ClaimTaken
	}

	if s.Name != "" && s.Name != name {
		delete(r.byName, s.Name)
	}

	s.Name = name
	r.byName[name] = s.ID
	return ClaimOK
}

// Release removes the session and, if named, its name binding. Idempotent.
func (r *Registry) Release(id string) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	if s.Name != "" {
		if boundID, ok := r.byName[s.Name]; ok && boundID == id {
			delete(r.byName, s.Name)
		}
	}
	delete(r.sessions, id)
}

// PresenceEntry is one row of a Snapshot.
type PresenceEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Busy bool   `json:"busy"`
}

// Snapshot returns every named session as an ordered {id, name, busy} list,
// ordered by id for deterministic output.
func (r *Registry) Snapshot() []PresenceEntry {
	out := make([]PresenceEntry, 0, len(r.byName))
	for _, s := range r.sessions {
		if s.Name == "" {
			continue
		}
		out = append(out, PresenceEntry{ID: s.ID, Name: s.Name, Busy: s.Busy()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of attached sessions.
func (r *Registry) Count() int {
	return len(r.sessions)
}

// NamedCount returns the number of sessions with a claimed name.
func (r *Registry) NamedCount() int {
	return len(r.byName)
}

// Each calls fn for every attached session. Order is unspecified.
func (r *Registry) Each(fn func(*Session)) {
	for _, s := range r.sessions {
		fn(s)
	}
}

// SetRoomID implements room.SessionLocator, letting the room registry keep
// a session's roomId in sync with its own membership bookkeeping without
// importing this package directly. Returns false if id is not an attached
// session.
func (r *Registry) SetRoomID(sessionID, roomID string) bool {
	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	s.RoomID = roomID
	return true
}

// GetRoomID implements room.SessionLocator.
func (r *Registry) GetRoomID(sessionID string) (string, bool) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	return s.RoomID, true
}
