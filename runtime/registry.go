package runtime

import (
	"chatter-box/contract"
	"chatter-box/domain"
	"sort"
	"sync"
)

// Registry is the process local presence map.
// Last connect wins: registering a user again replaces the previous sink.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.UserID]contract.EventSink)}
}

// Register inserts or overwrites the sink of userID.
// Broadcasting the new online set is left to the caller.
func (r *Registry) Register(userID domain.UserID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = sink
}

// Unregister removes userID if present.
func (r *Registry) Unregister(userID domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// UnregisterSink removes userID only while sink is still the registered one,
// so an old connection closing after being replaced leaves the new one online.
func (r *Registry) UnregisterSink(userID domain.UserID, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[userID]
	if !ok || current != sink {
		return false
	}
	delete(r.sessions, userID)
	return true
}

func (r *Registry) Lookup(userID domain.UserID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sessions[userID]
	return sink, ok
}

// SnapshotIDs returns the online users sorted, for a stable broadcast payload.
func (r *Registry) SnapshotIDs() []domain.UserID {
	r.mu.RLock()
	ids := make([]domain.UserID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) Sinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sinks := make([]contract.EventSink, 0, len(r.sessions))
	for _, sink := range r.sessions {
		sinks = append(sinks, sink)
	}
	return sinks
}
