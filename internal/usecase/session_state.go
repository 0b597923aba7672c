package usecase

import (
	"fmt"
	"sync"

	"github.com/eslsoft/lexloop/internal/entity"
)

// sessionRegistry holds the transient sessions of one process. Sessions are
// per-call state rebuilt on demand; only attempts are persisted, so losing
// the registry on restart loses nothing durable.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*entity.Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*entity.Session)}
}

func (r *sessionRegistry) put(s *entity.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *sessionRegistry) get(id string) (*entity.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", entity.ErrItemNotFound, id)
	}
	return s, nil
}

func (r *sessionRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// mutate runs fn while holding the registry write lock, so activity updates
// from concurrent calls never interleave.
func (r *sessionRegistry) mutate(id string, fn func(*entity.Session) error) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", entity.ErrItemNotFound, id)
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	return s, nil
}
