// Package store holds per-feature request state: the result of the last
// discovery run, protein prediction, evolution generation or status check,
// together with whether a request is in flight and how the last one failed.
package store

import (
	"sync"
	"time"
)

// Phase is the lifecycle position of a store.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// Error is the dismissible failure shown to the user.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Details string `json:"details,omitempty"`
}

// Ticket identifies one Begin call. Only the ticket of the latest Begin can
// complete the request.
type Ticket uint64

// Snapshot is a consistent copy of a store's state.
type Snapshot[T any] struct {
	Name      string    `json:"name"`
	Phase     Phase     `json:"phase"`
	Loading   bool      `json:"loading"`
	Data      *T        `json:"data"`
	Error     *Error    `json:"error"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithKeepData keeps the previous data visible while a new request is loading.
func WithKeepData[T any]() Option[T] {
	return func(s *Store[T]) { s.keepData = true }
}

// WithNotifier registers fn to receive a snapshot after every transition.
func WithNotifier[T any](fn func(Snapshot[T])) Option[T] {
	return func(s *Store[T]) { s.notify = fn }
}

// WithClock replaces time.Now for UpdatedAt.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(s *Store[T]) { s.now = now }
}

// Store is a three-state holder (idle, loading, success or error) for one
// feature's data. Completions are fenced: Succeed and Fail are ignored unless
// their ticket belongs to the most recent Begin.
type Store[T any] struct {
	name     string
	keepData bool
	notify   func(Snapshot[T])
	now      func() time.Time

	// emitMu orders notifications. Notifiers must not call back into the
	// store.
	emitMu sync.Mutex

	mu        sync.Mutex
	phase     Phase
	data      *T
	err       *Error
	ticket    Ticket
	version   uint64
	updatedAt time.Time
}

// New creates an idle store.
func New[T any](name string, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		name:  name,
		now:   time.Now,
		phase: PhaseIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.updatedAt = s.now()
	return s
}

// Name returns the store name.
func (s *Store[T]) Name() string {
	return s.name
}

// Begin moves the store to loading from any phase, clears the previous error
// and, unless the store keeps data, the previous data. The returned ticket
// supersedes every earlier one.
func (s *Store[T]) Begin() Ticket {
	s.mu.Lock()
	s.ticket++
	t := s.ticket
	s.phase = PhaseLoading
	s.err = nil
	if !s.keepData {
		s.data = nil
	}
	s.unlockAndEmit(s.touchLocked())
	return t
}

// Succeed lands data if t is still current. It reports whether it applied.
func (s *Store[T]) Succeed(t Ticket, data T) bool {
	s.mu.Lock()
	if !s.currentLocked(t) {
		s.mu.Unlock()
		return false
	}
	s.phase = PhaseSuccess
	s.data = &data
	s.err = nil
	s.unlockAndEmit(s.touchLocked())
	return true
}

// Fail records err if t is still current. It reports whether it applied.
func (s *Store[T]) Fail(t Ticket, err *Error) bool {
	if err == nil {
		err = &Error{Message: "Unknown error"}
	}

	s.mu.Lock()
	if !s.currentLocked(t) {
		s.mu.Unlock()
		return false
	}
	s.phase = PhaseError
	s.err = err
	if !s.keepData {
		s.data = nil
	}
	s.unlockAndEmit(s.touchLocked())
	return true
}

// Restore lands previously saved data in an idle store without a request.
// It reports false, leaving the store untouched, once a request has begun or
// landed. Restore seeds state and does not notify.
func (s *Store[T]) Restore(data T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseIdle {
		return false
	}
	s.ticket++
	s.phase = PhaseSuccess
	s.data = &data
	s.err = nil
	s.touchLocked()
	return true
}

// Dismiss clears a displayed error and returns the store to idle. It is a
// no-op unless the store is in the error phase.
func (s *Store[T]) Dismiss() bool {
	s.mu.Lock()
	if s.phase != PhaseError {
		s.mu.Unlock()
		return false
	}
	s.phase = PhaseIdle
	s.err = nil
	s.unlockAndEmit(s.touchLocked())
	return true
}

// Reset drops all state and supersedes any request in flight.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	s.ticket++
	s.phase = PhaseIdle
	s.data = nil
	s.err = nil
	s.unlockAndEmit(s.touchLocked())
}

// Snapshot returns a copy of the current state.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Data returns the current data, if any.
func (s *Store[T]) Data() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		var zero T
		return zero, false
	}
	return *s.data, true
}

// Phase returns the current phase.
func (s *Store[T]) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Store[T]) currentLocked(t Ticket) bool {
	return t == s.ticket && s.phase == PhaseLoading
}

func (s *Store[T]) touchLocked() Snapshot[T] {
	s.version++
	s.updatedAt = s.now()
	return s.snapshotLocked()
}

func (s *Store[T]) snapshotLocked() Snapshot[T] {
	snap := Snapshot[T]{
		Name:      s.name,
		Phase:     s.phase,
		Loading:   s.phase == PhaseLoading,
		Version:   s.version,
		UpdatedAt: s.updatedAt,
	}
	if s.data != nil {
		d := *s.data
		snap.Data = &d
	}
	if s.err != nil {
		e := *s.err
		snap.Error = &e
	}
	return snap
}

// unlockAndEmit releases mu and hands snap to the notifier. emitMu is taken
// before mu is released so notifications leave in Version order.
func (s *Store[T]) unlockAndEmit(snap Snapshot[T]) {
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()

	if s.notify != nil {
		s.notify(snap)
	}
}
