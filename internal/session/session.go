// Package session owns the per-browser-session state stores.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/store"
	"github.com/ultrathink/discovery-web/pkg/log"
	"github.com/ultrathink/discovery-web/pkg/pubsub"
)

// ErrNoData is returned when a store has nothing to export or display.
var ErrNoData = errors.New("no data available")

// Store names, also used as event type suffixes.
const (
	StoreDiscovery  = "discovery"
	StoreProtein    = "protein"
	StoreEvolution  = "evolution"
	StoreConnection = "connection"
)

const publishTimeout = 2 * time.Second

// Session is one browser session with its own stores.
type Session struct {
	ID         string
	Discovery  *store.Store[domain.DiscoveryResult]
	Protein    *store.Store[domain.ProteinStructure]
	Evolution  *store.Store[domain.EvolutionResult]
	Connection *store.Store[domain.ConnectionStatus]

	createdAt time.Time

	mu         sync.Mutex
	lastSeen   time.Time
	lastTarget string
}

// State is the snapshot of every store of a session.
type State struct {
	SessionID  string                                  `json:"session_id"`
	LastTarget string                                  `json:"last_target,omitempty"`
	Discovery  store.Snapshot[domain.DiscoveryResult]  `json:"discovery"`
	Protein    store.Snapshot[domain.ProteinStructure] `json:"protein"`
	Evolution  store.Snapshot[domain.EvolutionResult]  `json:"evolution"`
	Connection store.Snapshot[domain.ConnectionStatus] `json:"connection"`
}

func newSession(id string, now time.Time, bus pubsub.Publisher) *Session {
	s := &Session{
		ID:        id,
		createdAt: now,
		lastSeen:  now,
	}
	s.Discovery = store.New(StoreDiscovery,
		store.WithNotifier(publisher[domain.DiscoveryResult](bus, id)))
	s.Protein = store.New(StoreProtein,
		store.WithNotifier(publisher[domain.ProteinStructure](bus, id)))
	s.Evolution = store.New(StoreEvolution,
		store.WithNotifier(publisher[domain.EvolutionResult](bus, id)))
	s.Connection = store.New(StoreConnection,
		store.WithKeepData[domain.ConnectionStatus](),
		store.WithNotifier(publisher[domain.ConnectionStatus](bus, id)))
	return s
}

// publisher forwards store transitions to the session's event channel.
func publisher[T any](bus pubsub.Publisher, sessionID string) func(store.Snapshot[T]) {
	return func(snap store.Snapshot[T]) {
		if bus == nil {
			return
		}
		l := log.L()

		evt, err := pubsub.NewEvent(pubsub.StoreEventType(snap.Name), sessionID, snap)
		if err != nil {
			l.Error().Err(err).Str(log.FieldStore, snap.Name).Msg("failed to encode store event")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := bus.Publish(ctx, pubsub.SessionChannel(sessionID), evt); err != nil {
			l.Warn().Err(err).Str(log.FieldStore, snap.Name).Str(log.FieldSessionID, sessionID).
				Msg("failed to publish store event")
		}
	}
}

// State returns every store's snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	target := s.lastTarget
	s.mu.Unlock()

	return State{
		SessionID:  s.ID,
		LastTarget: target,
		Discovery:  s.Discovery.Snapshot(),
		Protein:    s.Protein.Snapshot(),
		Evolution:  s.Evolution.Snapshot(),
		Connection: s.Connection.Snapshot(),
	}
}

// LastTarget returns the target name of the last discovery run, restored
// from persistence on startup.
func (s *Session) LastTarget() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTarget
}

func (s *Session) setLastTarget(target string) {
	s.mu.Lock()
	s.lastTarget = target
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Candidates returns the current discovery candidates.
func (s *Session) Candidates() ([]domain.Candidate, string, error) {
	res, ok := s.Discovery.Data()
	if !ok || len(res.TopCandidates) == 0 {
		return nil, "", ErrNoData
	}
	return res.TopCandidates, res.Target, nil
}

// Variants returns the current evolution generation.
func (s *Session) Variants() (domain.EvolutionResult, error) {
	res, ok := s.Evolution.Data()
	if !ok || len(res.TopCandidates) == 0 {
		return domain.EvolutionResult{}, ErrNoData
	}
	return res, nil
}

// ProteinStructure returns the current predicted protein.
func (s *Session) ProteinStructure() (domain.ProteinStructure, error) {
	res, ok := s.Protein.Data()
	if !ok || res.PDB == "" {
		return domain.ProteinStructure{}, ErrNoData
	}
	return res, nil
}
