package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/persist"
	"github.com/ultrathink/discovery-web/internal/store"
	"github.com/ultrathink/discovery-web/pkg/pubsub"
)

func savedCandidates() domain.SavedCandidates {
	return domain.SavedCandidates{
		Candidates: []domain.Candidate{
			{Rank: 1, SMILES: "CCO"},
			{Rank: 2, SMILES: "CCN"},
		},
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestGetOrCreate_ReplacesMalformedID(t *testing.T) {
	m := NewManager(persist.NewMemoryKV(), nil, Config{})

	s, created := m.GetOrCreate(context.Background(), "not-a-uuid")
	assert.True(t, created)
	_, err := uuid.Parse(s.ID)
	assert.NoError(t, err)

	again, created := m.GetOrCreate(context.Background(), s.ID)
	assert.False(t, created)
	assert.Same(t, s, again)
	assert.Equal(t, 1, m.Count())
}

func TestGetOrCreate_RestoresSavedDiscovery(t *testing.T) {
	ctx := context.Background()
	kv := persist.NewMemoryKV()
	id := uuid.New().String()

	require.NoError(t, persist.SetJSON(ctx, kv, id, persist.KeyDiscoveryCandidates, savedCandidates(), 0))
	require.NoError(t, persist.SetJSON(ctx, kv, id, persist.KeyDiscoveryTarget,
		domain.SavedTarget{Target: "EBNA1", Timestamp: time.Now()}, 0))

	m := NewManager(kv, nil, Config{})
	s, created := m.GetOrCreate(ctx, id)
	require.True(t, created)
	assert.Equal(t, id, s.ID)

	snap := s.Discovery.Snapshot()
	assert.Equal(t, store.PhaseSuccess, snap.Phase)
	require.NotNil(t, snap.Data)
	assert.Equal(t, "EBNA1", snap.Data.Target)
	assert.Len(t, snap.Data.TopCandidates, 2)
	assert.Equal(t, "EBNA1", s.LastTarget())

	cands, target, err := s.Candidates()
	require.NoError(t, err)
	assert.Equal(t, "EBNA1", target)
	assert.Equal(t, "CCO", cands[0].SMILES)
}

func TestGetOrCreate_ConcurrentFirstRequestKeepsFreshRun(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		kv := persist.NewMemoryKV()
		id := uuid.New().String()
		require.NoError(t, persist.SetJSON(ctx, kv, id, persist.KeyDiscoveryCandidates, savedCandidates(), 0))
		require.NoError(t, persist.SetJSON(ctx, kv, id, persist.KeyDiscoveryTarget,
			domain.SavedTarget{Target: "EBNA1", Timestamp: time.Now()}, 0))

		m := NewManager(kv, nil, Config{})

		var (
			wg      sync.WaitGroup
			start   = make(chan struct{})
			landed  bool
			created int32
			seen    = make([]*Session, 8)
		)
		for i := range seen {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				s, isNew := m.GetOrCreate(ctx, id)
				if isNew {
					atomic.AddInt32(&created, 1)
				}
				seen[i] = s
				if i == 0 {
					tk := s.Discovery.Begin()
					landed = s.Discovery.Succeed(tk, domain.DiscoveryResult{Target: "LMP1"})
				}
			}(i)
		}
		close(start)
		wg.Wait()

		require.True(t, landed, "round %d: fresh run was superseded", round)
		assert.Equal(t, int32(1), created)
		for _, s := range seen[1:] {
			assert.Same(t, seen[0], s)
		}

		s, ok := m.Get(id)
		require.True(t, ok)
		d, ok := s.Discovery.Data()
		require.True(t, ok)
		assert.Equal(t, "LMP1", d.Target)
	}
}

func TestGetOrCreate_DiscardsInvalidBlobs(t *testing.T) {
	tests := []struct {
		name  string
		setup func(ctx context.Context, kv persist.KV, id string)
	}{
		{
			name: "bad json",
			setup: func(ctx context.Context, kv persist.KV, id string) {
				_ = kv.Set(ctx, id, persist.KeyDiscoveryCandidates, []byte("{not json"), 0)
				_ = persist.SetJSON(ctx, kv, id, persist.KeyDiscoveryTarget,
					domain.SavedTarget{Target: "EBNA1", Timestamp: time.Now()}, 0)
			},
		},
		{
			name: "candidate without smiles",
			setup: func(ctx context.Context, kv persist.KV, id string) {
				saved := savedCandidates()
				saved.Candidates[1].SMILES = ""
				_ = persist.SetJSON(ctx, kv, id, persist.KeyDiscoveryCandidates, saved, 0)
			},
		},
		{
			name: "non positive rank",
			setup: func(ctx context.Context, kv persist.KV, id string) {
				saved := savedCandidates()
				saved.Candidates[0].Rank = 0
				_ = persist.SetJSON(ctx, kv, id, persist.KeyDiscoveryCandidates, saved, 0)
			},
		},
		{
			name: "missing timestamp",
			setup: func(ctx context.Context, kv persist.KV, id string) {
				_ = kv.Set(ctx, id, persist.KeyDiscoveryCandidates, []byte(`{"candidates":[{"rank":1,"smiles":"C"}]}`), 0)
			},
		},
		{
			name: "wrong shape",
			setup: func(ctx context.Context, kv persist.KV, id string) {
				_ = kv.Set(ctx, id, persist.KeyDiscoveryCandidates, []byte(`["CCO"]`), 0)
			},
		},
		{
			name: "target fails validation",
			setup: func(ctx context.Context, kv persist.KV, id string) {
				_ = persist.SetJSON(ctx, kv, id, persist.KeyDiscoveryCandidates, savedCandidates(), 0)
				_ = persist.SetJSON(ctx, kv, id, persist.KeyDiscoveryTarget,
					domain.SavedTarget{Target: "<script>", Timestamp: time.Now()}, 0)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := persist.NewMemoryKV()
			id := uuid.New().String()
			tt.setup(ctx, kv, id)

			m := NewManager(kv, nil, Config{})
			s, _ := m.GetOrCreate(ctx, id)

			assert.Equal(t, store.PhaseIdle, s.Discovery.Phase())
			assert.Empty(t, s.LastTarget())

			_, err := kv.Get(ctx, id, persist.KeyDiscoveryCandidates)
			assert.ErrorIs(t, err, persist.ErrNotFound)
			_, err = kv.Get(ctx, id, persist.KeyDiscoveryTarget)
			assert.ErrorIs(t, err, persist.ErrNotFound)
		})
	}
}

func TestSaveAndClearDiscovery(t *testing.T) {
	ctx := context.Background()
	kv := persist.NewMemoryKV()
	m := NewManager(kv, nil, Config{})

	s, _ := m.GetOrCreate(ctx, "")
	res := domain.DiscoveryResult{
		Target:        "KRAS",
		TopCandidates: []domain.Candidate{{Rank: 1, SMILES: "c1ccccc1"}},
	}
	require.NoError(t, m.SaveDiscovery(ctx, s, res))
	assert.Equal(t, "KRAS", s.LastTarget())

	// a second manager, as after a restart, restores the same state
	m2 := NewManager(kv, nil, Config{})
	s2, _ := m2.GetOrCreate(ctx, s.ID)
	d, ok := s2.Discovery.Data()
	require.True(t, ok)
	assert.Equal(t, "KRAS", d.Target)
	assert.Equal(t, "c1ccccc1", d.TopCandidates[0].SMILES)

	require.NoError(t, m2.ClearDiscovery(ctx, s2))
	_, err := kv.Get(ctx, s.ID, persist.KeyDiscoveryCandidates)
	assert.ErrorIs(t, err, persist.ErrNotFound)
	assert.Equal(t, store.PhaseIdle, s2.Discovery.Phase())
}

func TestSweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager(persist.NewMemoryKV(), nil, Config{IdleTTL: 10 * time.Minute})
	m.now = func() time.Time { return now }

	old, _ := m.GetOrCreate(context.Background(), "")
	now = now.Add(8 * time.Minute)
	fresh, _ := m.GetOrCreate(context.Background(), "")

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, m.Sweep())

	_, ok := m.Get(old.ID)
	assert.False(t, ok)
	_, ok = m.Get(fresh.ID)
	assert.True(t, ok)
}

func TestStoreEventsArePublished(t *testing.T) {
	bus := pubsub.NewMemoryPubSub(16)
	t.Cleanup(func() { _ = bus.Close() })

	m := NewManager(persist.NewMemoryKV(), bus, Config{})
	s, _ := m.GetOrCreate(context.Background(), "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := bus.Subscribe(ctx, pubsub.SessionChannel(s.ID))
	require.NoError(t, err)
	defer sub.Close()

	tk := s.Protein.Begin()
	s.Protein.Succeed(tk, domain.ProteinStructure{PDB: "ATOM", Method: "ESMFold"})

	var types []string
	for i := 0; i < 2; i++ {
		select {
		case evt := <-sub.Events():
			types = append(types, evt.Type)
			assert.Equal(t, s.ID, evt.SessionID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for store event")
		}
	}
	assert.Equal(t, []string{pubsub.EventProteinChanged, pubsub.EventProteinChanged}, types)
}

func TestSessionAccessorsWithoutData(t *testing.T) {
	m := NewManager(persist.NewMemoryKV(), nil, Config{})
	s, _ := m.GetOrCreate(context.Background(), "")

	_, _, err := s.Candidates()
	assert.ErrorIs(t, err, ErrNoData)
	_, err = s.Variants()
	assert.ErrorIs(t, err, ErrNoData)
	_, err = s.ProteinStructure()
	assert.ErrorIs(t, err, ErrNoData)

	state := s.State()
	assert.Equal(t, s.ID, state.SessionID)
	assert.Equal(t, store.PhaseIdle, state.Connection.Phase)
}
