package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/models"
)

// Registry keeps the sessions opened through the API. Each session is
// independent; the registry only maps ids to sessions and remembers when
// each was last used so abandoned ones can be expired.
type Registry struct {
	mu       sync.Mutex
	client   PositionClient
	opts     []Option
	sessions map[string]*Session
	used     map[string]time.Time
	now      func() time.Time
}

// NewRegistry creates a registry whose sessions share client and opts.
func NewRegistry(client PositionClient, opts ...Option) *Registry {
	return &Registry{
		client:   client,
		opts:     opts,
		sessions: make(map[string]*Session),
		used:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Open starts a session on plan and loads its stored positions.
func (r *Registry) Open(ctx context.Context, plan models.Plan) (*Session, error) {
	s, err := NewSession(plan, r.client, r.opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.used[s.ID()] = r.now()
	r.mu.Unlock()
	return s, nil
}

// Get returns an open session and marks it as used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("editor: session %q: %w", id, apperr.ErrNotFound)
	}
	r.used[id] = r.now()
	return s, nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close closes and forgets one session.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	delete(r.used, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("editor: session %q: %w", id, apperr.ErrNotFound)
	}
	s.Close()
	return nil
}

// CloseAll closes every session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.used = make(map[string]time.Time)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}

// Sweep closes sessions not used for longer than idle and returns how many
// it closed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	var stale []*Session
	r.mu.Lock()
	for id, at := range r.used {
		if at.Before(cutoff) {
			stale = append(stale, r.sessions[id])
			delete(r.sessions, id)
			delete(r.used, id)
		}
	}
	r.mu.Unlock()
	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// Expire sweeps idle sessions until ctx is done. A zero idle disables it.
func (r *Registry) Expire(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		return
	}
	tick := idle / 2
	if tick > time.Minute {
		tick = time.Minute
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep(idle)
		}
	}
}
