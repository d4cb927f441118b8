package health

import (
	"sync"
	"time"
)

// MaxReportedErrors caps how many error entries a snapshot carries.
const MaxReportedErrors = 5

// State is the process-wide health record. The lifecycle is its only
// writer; the HTTP handler, metrics and status publisher only read.
type State struct {
	mu            sync.RWMutex
	initialized   bool
	lastHeartbeat time.Time
	startedAt     time.Time
	errors        []string

	now func() time.Time
}

// Snapshot is a copy of State safe to use without locking.
type Snapshot struct {
	Initialized   bool
	LastHeartbeat time.Time
	StartedAt     time.Time
	// RecentErrors holds at most MaxReportedErrors entries, oldest first.
	RecentErrors []string
	// ErrorCount is the total number of errors ever recorded.
	ErrorCount int
}

// NewState returns an uninitialized state whose clock starts now.
func NewState() *State {
	return NewStateWithClock(time.Now)
}

// NewStateWithClock is NewState with an injectable clock.
func NewStateWithClock(now func() time.Time) *State {
	t := now()
	return &State{
		startedAt:     t,
		lastHeartbeat: t,
		now:           now,
	}
}

// Heartbeat stamps a lifecycle milestone.
func (s *State) Heartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeartbeat = s.now()
}

// MarkInitialized records a successful agent start. There is no way back.
func (s *State) MarkInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	s.lastHeartbeat = s.now()
}

// RecordError appends a timestamped failure message.
func (s *State) RecordError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, s.now().UTC().Format(time.RFC3339)+": "+msg)
}

// Initialized reports whether the agent has started.
func (s *State) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Uptime is the time elapsed since the state was created.
func (s *State) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().Sub(s.startedAt)
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recent := s.errors
	if len(recent) > MaxReportedErrors {
		recent = recent[len(recent)-MaxReportedErrors:]
	}

	return Snapshot{
		Initialized:   s.initialized,
		LastHeartbeat: s.lastHeartbeat,
		StartedAt:     s.startedAt,
		RecentErrors:  append([]string{}, recent...),
		ErrorCount:    len(s.errors),
	}
}
