// Package registry is a sharded concurrent map of session id to actor
// handle. It generalizes the single-map create/get/list shape the teacher's
// agentsessions.Manager uses into 16 FNV-hashed shards, each guarded by its
// own mutex, so no single global lock serializes every session's lookups
// (spec §4.3: "no global lock").
package registry

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"
)

const shardCount = 16

// Handle is anything the registry can track a live session by. SessionActor
// implements this; tests may supply a fake.
type Handle interface {
	ID() string
	Stop()
	LastActivity() time.Time
	IsEnded() bool
}

type shard struct {
	mu    sync.RWMutex
	items map[string]Handle
}

// Registry is the sharded session_id -> actor handle map.
type Registry struct {
	shards [shardCount]*shard
}

// New returns an empty Registry.
func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{items: make(map[string]Handle)}
	}
	return r
}

func (r *Registry) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return r.shards[h.Sum32()%shardCount]
}

// Create registers handle under id unless one already exists, in which case
// the existing handle is returned and ok is false — idempotent create for
// the hook-driven provider's session_start path, which must be safe to
// replay. Callers that require strict "must not already exist" semantics
// (the client CreateSession command) check ok themselves and reject.
func (r *Registry) Create(id string, handle Handle) (existing Handle, ok bool) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, found := s.items[id]; found {
		return h, false
	}
	s.items[id] = handle
	return handle, true
}

// Lookup returns the handle registered for id, if any.
func (r *Registry) Lookup(id string) (Handle, bool) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.items[id]
	return h, ok
}

// Remove drops id from the registry without stopping its handle; callers
// that want the actor stopped too should call handle.Stop() themselves.
func (r *Registry) Remove(id string) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// IterActive calls fn for every registered handle, for restore diagnostics
// and shutdown broadcast. fn is called with the shard lock held for reads
// only; it must not call back into the Registry.
func (r *Registry) IterActive(fn func(id string, h Handle)) {
	for _, s := range r.shards {
		s.mu.RLock()
		for id, h := range s.items {
			fn(id, h)
		}
		s.mu.RUnlock()
	}
}

// Len returns the total number of registered handles across all shards.
func (r *Registry) Len() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// IDs returns every registered session id, sorted, for diagnostics/tests.
func (r *Registry) IDs() []string {
	var ids []string
	r.IterActive(func(id string, _ Handle) { ids = append(ids, id) })
	sort.Strings(ids)
	return ids
}

// Sweep removes (from the registry only, never the DB — spec §3's
// lifecycle keeps Ended rows in DB until process restart) every Ended
// handle whose LastActivity is older than ttl, and stops it. Returns the
// count removed. Implements spec §4.3's optional remove_ended_after_ttl;
// Active/Idle handles are never swept regardless of age.
func (r *Registry) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for id, h := range s.items {
			if h.IsEnded() && h.LastActivity().Before(cutoff) {
				delete(s.items, id)
				removed++
				h.Stop()
			}
		}
		s.mu.Unlock()
	}
	return removed
}
