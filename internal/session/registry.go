// Package session holds the catalog of remote terminal sessions known from
// the discovery feed, and the decode boundary that turns feed records into
// canonical Session values.
package session

import (
	"sort"
	"sync"
	"time"
)

// UnknownName is the display name given to sessions the feed left unnamed.
const UnknownName = "Unknown"

// Session is one remote terminal. It is addressed by ID in the catalog and by
// Name when connecting.
type Session struct {
	ID           string
	Name         string
	LastActivity time.Time
}

// ShortID returns the first eight characters of the id.
func (s Session) ShortID() string {
	if len(s.ID) > 8 {
		return s.ID[:8]
	}
	return s.ID
}

// Registry is the in-memory catalog. Its contents are always exactly the
// latest snapshot passed to Replace.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]Session),
	}
}

// Replace overwrites the catalog with the given snapshot and reports which
// ids appeared and which vanished. Later duplicates of an id win.
func (r *Registry) Replace(sessions []Session) (added, removed []string) {
	next := make(map[string]Session, len(sessions))
	for _, s := range sessions {
		next[s.ID] = s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range next {
		if _, ok := r.sessions[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range r.sessions {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	r.sessions = next
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns the sessions newest first, then by name, then by id, so the
// order depends only on the catalog contents.
func (r *Registry) List() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})
	return out
}

// Less is the catalog ordering.
func Less(a, b Session) bool {
	if !a.LastActivity.Equal(b.LastActivity) {
		return a.LastActivity.After(b.LastActivity)
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}
