package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/persist"
	"github.com/ultrathink/discovery-web/internal/validate"
	"github.com/ultrathink/discovery-web/pkg/log"
	"github.com/ultrathink/discovery-web/pkg/pubsub"
)

// Config holds session lifetime settings.
type Config struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// Purger is implemented by persistence backends that need explicit removal
// of expired rows.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Manager creates, restores and expires sessions.
type Manager struct {
	kv  persist.KV
	bus pubsub.Publisher
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager. bus may be nil.
func NewManager(kv persist.KV, bus pubsub.Publisher, cfg Config) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Manager{
		kv:       kv,
		bus:      bus,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns a live session without creating one.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if ok {
		s.touch(m.now())
	}
	return s, ok
}

// GetOrCreate returns the session for id. An unknown but well formed id
// gets a fresh session under the same id, restored from persistence, so a
// browser keeps its saved results across restarts. Any other id is replaced
// by a new one. created reports whether a new session was made.
//
// A new session is restored before it is published, so no request can begin
// on it before the saved state lands.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (sess *Session, created bool) {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.New().String()
	} else if s, ok := m.Get(id); ok {
		return s, false
	}

	s := newSession(id, m.now(), m.bus)
	m.restore(ctx, s)

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		existing.touch(m.now())
		m.mu.Unlock()
		return existing, false
	}
	m.sessions[id] = s
	m.mu.Unlock()

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldSessionID, id).Msg("session created")
	return s, true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// restore lands saved discovery results in a session nobody else can see
// yet. Saved blobs that fail validation are deleted and the session starts
// empty.
func (m *Manager) restore(ctx context.Context, s *Session) {
	l := log.Ctx(ctx).With().Str(log.FieldSessionID, s.ID).Logger()

	var candidates domain.SavedCandidates
	candErr := persist.GetJSON(ctx, m.kv, s.ID, persist.KeyDiscoveryCandidates, &candidates)

	var target domain.SavedTarget
	targetErr := persist.GetJSON(ctx, m.kv, s.ID, persist.KeyDiscoveryTarget, &target)

	if errors.Is(candErr, persist.ErrNotFound) && errors.Is(targetErr, persist.ErrNotFound) {
		return
	}

	problem := firstProblem(
		loadProblem(candErr),
		loadProblem(targetErr),
		checkCandidates(candErr, candidates),
		checkTarget(targetErr, target),
	)
	if problem != nil {
		l.Warn().Err(problem).Msg("discarding saved discovery state")
		if err := m.kv.Delete(ctx, s.ID, persist.KeyDiscoveryCandidates, persist.KeyDiscoveryTarget); err != nil {
			l.Warn().Err(err).Msg("failed to delete saved discovery state")
		}
		return
	}

	if targetErr == nil {
		s.setLastTarget(target.Target)
	}
	if candErr == nil {
		s.Discovery.Restore(domain.DiscoveryResult{
			Target:        target.Target,
			Timestamp:     candidates.Timestamp.UTC().Format(time.RFC3339),
			TopCandidates: candidates.Candidates,
		})
		l.Debug().Int("candidates", len(candidates.Candidates)).Msg("restored saved discovery state")
	}
}

func loadProblem(err error) error {
	if err == nil || errors.Is(err, persist.ErrNotFound) {
		return nil
	}
	return err
}

func checkCandidates(loadErr error, saved domain.SavedCandidates) error {
	if loadErr != nil {
		return nil
	}
	if saved.Timestamp.IsZero() {
		return fmt.Errorf("%s: missing timestamp", persist.KeyDiscoveryCandidates)
	}
	if saved.Candidates == nil {
		return fmt.Errorf("%s: missing candidates", persist.KeyDiscoveryCandidates)
	}
	for i, c := range saved.Candidates {
		if c.SMILES == "" {
			return fmt.Errorf("%s: candidate %d has no smiles", persist.KeyDiscoveryCandidates, i)
		}
		if c.Rank <= 0 {
			return fmt.Errorf("%s: candidate %d has rank %d", persist.KeyDiscoveryCandidates, i, c.Rank)
		}
	}
	return nil
}

func checkTarget(loadErr error, saved domain.SavedTarget) error {
	if loadErr != nil {
		return nil
	}
	if saved.Timestamp.IsZero() {
		return fmt.Errorf("%s: missing timestamp", persist.KeyDiscoveryTarget)
	}
	if r := validate.TargetName(saved.Target); !r.Valid {
		return fmt.Errorf("%s: %s", persist.KeyDiscoveryTarget, r.Error)
	}
	return nil
}

func firstProblem(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveDiscovery persists the candidates and target of a finished discovery.
func (m *Manager) SaveDiscovery(ctx context.Context, s *Session, res domain.DiscoveryResult) error {
	now := m.now()

	if err := persist.SetJSON(ctx, m.kv, s.ID, persist.KeyDiscoveryCandidates, domain.SavedCandidates{
		Candidates: res.TopCandidates,
		Timestamp:  now,
	}, 0); err != nil {
		return err
	}
	if err := persist.SetJSON(ctx, m.kv, s.ID, persist.KeyDiscoveryTarget, domain.SavedTarget{
		Target:    res.Target,
		Timestamp: now,
	}, 0); err != nil {
		return err
	}

	s.setLastTarget(res.Target)
	return nil
}

// ClearDiscovery deletes saved discovery state and resets the store.
func (m *Manager) ClearDiscovery(ctx context.Context, s *Session) error {
	s.Discovery.Reset()
	s.setLastTarget("")
	return m.kv.Delete(ctx, s.ID, persist.KeyDiscoveryCandidates, persist.KeyDiscoveryTarget)
}

// Sweep drops sessions idle for longer than the idle ttl. Their persisted
// blobs are kept. It returns how many sessions were removed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	l := log.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				l.Debug().Int("removed", n).Int("remaining", m.Count()).Msg("swept idle sessions")
			}
			if p, ok := m.kv.(Purger); ok {
				if n, err := p.PurgeExpired(ctx); err != nil {
					l.Warn().Err(err).Msg("failed to purge expired entries")
				} else if n > 0 {
					l.Debug().Int64("purged", n).Msg("purged expired entries")
				}
			}
		}
	}
}
