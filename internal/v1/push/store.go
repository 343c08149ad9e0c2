// Package push implements the Push Subscription Store and the push sink
// collaborator: a narrow interface with Send(ctx, subscription, payload)
// and a single Enabled predicate. The store itself is a plain map, mutated only
// under the hub's coarse lock like the other shared tables.
package push

// Store maps session id to an opaque subscription blob. Entries are
// removed on session close or when the sink reports a permanent failure.
type Store struct {
	subscriptions map[string][]byte
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{subscriptions: make(map[string][]byte)}
}

// Subscribe records subscription (raw JSON) for sessionID, replacing any
// prior value.
func (s *Store) Subscribe(sessionID string, subscription []byte) {
	s.subscriptions[sessionID] = subscription
}

// Unsubscribe removes sessionID's subscription, if any. A no-op if absent.
func (s *Store) Unsubscribe(sessionID string) {
	delete(s.subscriptions, sessionID)
}

// Get returns the subscription blob for sessionID, if any. Callers must
// read this under the hub lock and then issue the network call after
// releasing it — the shared-state lock must never be held across a push
// sink call.
func (s *Store) Get(sessionID string) ([]byte, bool) {
	b, ok := s.subscriptions[sessionID]
	return b, ok
}

// Remove deletes sessionID's subscription — used on session close or when
// the sink reports the subscription permanently gone (404/410).
func (s *Store) Remove(sessionID string) {
	delete(s.subscriptions, sessionID)
}
