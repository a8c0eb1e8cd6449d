package escrow

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Registry keeps at most one active session per Key. Terminal sessions stay
// reachable by ID but free their key for a new engagement.
type Registry struct {
	defaults []Option

	mu     sync.Mutex
	active map[Key]*Session
	byID   map[string]*Session
}

// NewRegistry applies defaults to every session it creates.
func NewRegistry(defaults ...Option) *Registry {
	return &Registry{
		defaults: defaults,
		active:   map[Key]*Session{},
		byID:     map[string]*Session{},
	}
}

// Open returns the active session for key, or creates an idle one. The
// boolean reports whether a new session was created.
func (r *Registry) Open(key Key, amount decimal.Decimal, opts ...Option) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.active[key]; ok && !s.Status().Terminal() {
		return s, false
	}
	all := make([]Option, 0, len(r.defaults)+len(opts))
	all = append(all, r.defaults...)
	all = append(all, opts...)
	s := NewSession(key, amount, all...)
	r.active[key] = s
	r.byID[s.ID()] = s
	return s, true
}

// Restore registers a session rebuilt from storage.
func (r *Registry) Restore(key Key, amount decimal.Decimal, opts ...Option) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]Option, 0, len(r.defaults)+len(opts))
	all = append(all, r.defaults...)
	all = append(all, opts...)
	s := NewSession(key, amount, all...)
	if existing, ok := r.byID[s.ID()]; ok {
		return existing
	}
	r.byID[s.ID()] = s
	if cur, ok := r.active[key]; !ok || cur.Status().Terminal() {
		r.active[key] = s
	}
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	return s, ok
}

// Discard closes the session and forgets it.
func (r *Registry) Discard(id string) {
	r.mu.Lock()
	s, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		if r.active[s.Key()] == s {
			delete(r.active, s.Key())
		}
	}
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Close discards every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	r.active = map[Key]*Session{}
	r.byID = map[string]*Session{}
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
