package sagas

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"artion-backend/application/ports"
)

const minSweepInterval = time.Second

type session struct {
	coordinator *Coordinator
	owner       string
	lastSeen    time.Time
}

// Registry tracks one coordinator per open host session together with the
// caller that opened it. Sessions idle for longer than the idle timeout are
// detached by Sweep; a zero timeout keeps them until closed.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*session
	deps        CoordinatorDeps
	idleTimeout time.Duration
	clock       ports.Clock
	logger      *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRegistry creates an empty session registry
func NewRegistry(deps CoordinatorDeps, idleTimeout time.Duration) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Registry{
		sessions:    make(map[string]*session),
		deps:        deps,
		idleTimeout: idleTimeout,
		clock:       clock,
		logger:      logger,
		stop:        make(chan struct{}),
	}
}

// Open starts a new session for owner with an empty selection
func (r *Registry) Open(owner string) *Coordinator {
	c := NewCoordinator(uuid.New().String(), r.deps)

	r.mu.Lock()
	r.sessions[c.ID()] = &session{coordinator: c, owner: owner, lastSeen: r.clock.Now()}
	r.mu.Unlock()

	r.logger.Info("Session opened",
		zap.String("session_id", c.ID()),
		zap.String("owner", owner))
	return c
}

// Get looks up an open session and marks it active
func (r *Registry) Get(id string) (*Coordinator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = r.clock.Now()
	return s.coordinator, true
}

// Lookup returns the session only when owner opened it, marking it active
func (r *Registry) Lookup(id, owner string) (*Coordinator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.owner != owner {
		return nil, false
	}
	s.lastSeen = r.clock.Now()
	return s.coordinator, true
}

// Close detaches and forgets a session
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.coordinator.Detach()
	r.logger.Info("Session closed", zap.String("session_id", id))
	return true
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep detaches sessions idle for longer than the idle timeout and returns
// how many were evicted. Sessions with a phase in flight are kept.
func (r *Registry) Sweep() int {
	if r.idleTimeout <= 0 {
		return 0
	}
	cutoff := r.clock.Now().Add(-r.idleTimeout)

	r.mu.Lock()
	var expired []*Coordinator
	for id, s := range r.sessions {
		if s.lastSeen.After(cutoff) || s.coordinator.State().IsBusy() {
			continue
		}
		expired = append(expired, s.coordinator)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, c := range expired {
		c.Detach()
		r.logger.Info("Session expired", zap.String("session_id", c.ID()))
	}
	return len(expired)
}

// StartSweeper runs Sweep periodically until CloseAll is called. It does
// nothing when the idle timeout is zero.
func (r *Registry) StartSweeper() {
	if r.idleTimeout <= 0 {
		return
	}
	interval := r.idleTimeout / 4
	if interval < minSweepInterval {
		interval = minSweepInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					r.logger.Debug("Idle sessions evicted", zap.Int("count", n))
				}
			case <-r.stop:
				return
			}
		}
	}()
}

// CloseAll stops the sweeper and detaches every session, used on shutdown
func (r *Registry) CloseAll() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.coordinator.Detach()
	}
}
