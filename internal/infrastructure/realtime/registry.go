package realtime

import (
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"collabhub-realtime/internal/infrastructure/metrics"
)

const registryShards = 64

// Registry tracks every live connection per user. Operations on one user are
// serialized by that user's shard; users in different shards proceed in parallel.
type Registry struct {
	shards [registryShards]registryShard
	count  atomic.Int64
}

type registryShard struct {
	mu    sync.RWMutex
	users map[string]map[string]Handle // userID -> handleID -> handle
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].users = make(map[string]map[string]Handle)
	}
	return r
}

func (r *Registry) shard(userID string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &r.shards[h.Sum32()%registryShards]
}

// Register adds h under its user. Registering the same handle id twice is a no-op;
// the return value reports whether h was newly added.
func (r *Registry) Register(h Handle) bool {
	s := r.shard(h.UserID())
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := s.users[h.UserID()]
	if handles == nil {
		handles = make(map[string]Handle)
		s.users[h.UserID()] = handles
	}
	if _, ok := handles[h.ID()]; ok {
		return false
	}
	handles[h.ID()] = h
	r.count.Add(1)
	metrics.ConnectionOpened()
	return true
}

// Unregister removes h. Unknown handles are ignored.
func (r *Registry) Unregister(h Handle) bool {
	return r.remove(h.UserID(), h.ID())
}

func (r *Registry) remove(userID, handleID string) bool {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := s.users[userID]
	if _, ok := handles[handleID]; !ok {
		return false
	}
	delete(handles, handleID)
	if len(handles) == 0 {
		delete(s.users, userID)
	}
	r.count.Add(-1)
	metrics.ConnectionClosed()
	return true
}

// ConnectionsFor returns a snapshot of the user's live handles.
func (r *Registry) ConnectionsFor(userID string) []Handle {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	handles := s.users[userID]
	out := make([]Handle, 0, len(handles))
	for _, h := range handles {
		out = append(out, h)
	}
	return out
}

// IsOnline reports whether the user holds at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[userID]) > 0
}

// Count returns the number of registered handles across all users.
func (r *Registry) Count() int {
	return int(r.count.Load())
}

// Deliver writes payload to every live connection of userID and returns how many
// accepted it. Handles reporting ErrConnectionClosed are dropped.
func (r *Registry) Deliver(userID string, payload []byte) int {
	delivered := 0
	for _, h := range r.ConnectionsFor(userID) {
		if err := h.Send(payload); err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				r.remove(userID, h.ID())
			}
			log.Debug("dropping delivery to closed connection", "user", userID, "conn", h.ID(), "err", err)
			continue
		}
		delivered++
	}
	return delivered
}

// CloseAll terminates every tracked connection and empties the registry.
func (r *Registry) CloseAll(code int, reason string) {
	var all []Handle
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for userID, handles := range s.users {
			for _, h := range handles {
				all = append(all, h)
				r.count.Add(-1)
				metrics.ConnectionClosed()
			}
			delete(s.users, userID)
		}
		s.mu.Unlock()
	}
	for _, h := range all {
		if c, ok := h.(interface{ Close(int, string) }); ok {
			c.Close(code, reason)
		}
	}
}
