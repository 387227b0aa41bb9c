package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrathink/discovery-web/internal/cache"
	"github.com/ultrathink/discovery-web/internal/client"
	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/persist"
	"github.com/ultrathink/discovery-web/internal/session"
	"github.com/ultrathink/discovery-web/internal/store"
	"github.com/ultrathink/discovery-web/pkg/storage"
)

type fakeOrchestrator struct {
	mu sync.Mutex

	discover    func(req domain.DiscoveryRequest) (*domain.DiscoveryResult, error)
	predict     func(req domain.ProteinRequest) (*domain.ProteinStructure, error)
	evolve      func(req domain.EvolutionRequest) (*domain.EvolutionResult, error)
	healthErr   error
	statusErr   map[string]error
	structCalls int32

	evolveReqs []domain.EvolutionRequest
}

func (f *fakeOrchestrator) Discover(_ context.Context, req domain.DiscoveryRequest) (*domain.DiscoveryResult, error) {
	return f.discover(req)
}

func (f *fakeOrchestrator) PredictStructure(_ context.Context, req domain.ProteinRequest) (*domain.ProteinStructure, error) {
	return f.predict(req)
}

func (f *fakeOrchestrator) Evolve(_ context.Context, req domain.EvolutionRequest) (*domain.EvolutionResult, error) {
	f.mu.Lock()
	f.evolveReqs = append(f.evolveReqs, req)
	f.mu.Unlock()
	return f.evolve(req)
}

func (f *fakeOrchestrator) Structure3D(_ context.Context, smiles string) (*domain.Structure3D, error) {
	atomic.AddInt32(&f.structCalls, 1)
	return &domain.Structure3D{SMILES: smiles, SDF: "sdf:" + smiles}, nil
}

func (f *fakeOrchestrator) Health(context.Context) (*client.HealthInfo, error) {
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	return &client.HealthInfo{}, nil
}

func (f *fakeOrchestrator) ServiceStatus(_ context.Context, name string) (domain.ServiceState, error) {
	if err := f.statusErr[name]; err != nil {
		return domain.ServiceState{}, err
	}
	return domain.ServiceState{Name: name, Status: domain.StatusOnline}, nil
}

func (f *fakeOrchestrator) Targets(context.Context) (*domain.Targets, error) {
	return &domain.Targets{AvailableTargets: []string{"EBNA1"}, TotalTargets: 1}, nil
}

func newSession(t *testing.T) (*session.Manager, *session.Session, persist.KV) {
	t.Helper()
	kv := persist.NewMemoryKV()
	m := session.NewManager(kv, nil, session.Config{})
	s, _ := m.GetOrCreate(context.Background(), "")
	return m, s, kv
}

func upstreamErr(msg string) error {
	return &client.APIError{Upstream: "orchestrator", Message: msg, Status: http.StatusInternalServerError, Details: "boom"}
}

func TestDiscoveryService_RunSavesResults(t *testing.T) {
	orch := &fakeOrchestrator{
		discover: func(req domain.DiscoveryRequest) (*domain.DiscoveryResult, error) {
			assert.Equal(t, "EBNA1", req.TargetName)
			assert.Equal(t, domain.DefaultNumMolecules, req.NumMolecules)
			return &domain.DiscoveryResult{
				TopCandidates: []domain.Candidate{{Rank: 1, SMILES: "CCO"}},
			}, nil
		},
	}
	m, sess, kv := newSession(t)
	svc := NewDiscoveryService(orch, m)

	res, err := svc.Run(context.Background(), sess, domain.DiscoveryRequest{TargetName: "  EBNA1  "})
	require.NoError(t, err)
	assert.Equal(t, "EBNA1", res.Target)

	snap := sess.Discovery.Snapshot()
	assert.Equal(t, store.PhaseSuccess, snap.Phase)
	assert.Equal(t, "EBNA1", sess.LastTarget())

	var saved domain.SavedCandidates
	require.NoError(t, persist.GetJSON(context.Background(), kv, sess.ID, persist.KeyDiscoveryCandidates, &saved))
	assert.Len(t, saved.Candidates, 1)
}

func TestDiscoveryService_RunRejectsBadTarget(t *testing.T) {
	orch := &fakeOrchestrator{
		discover: func(domain.DiscoveryRequest) (*domain.DiscoveryResult, error) {
			t.Fatal("orchestrator must not be called")
			return nil, nil
		},
	}
	m, sess, _ := newSession(t)
	svc := NewDiscoveryService(orch, m)

	_, err := svc.Run(context.Background(), sess, domain.DiscoveryRequest{TargetName: "<script>EBNA1"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "target_name", verr.Field)
	assert.Equal(t, store.PhaseIdle, sess.Discovery.Phase())
}

func TestDiscoveryService_RunFailureLandsInStore(t *testing.T) {
	orch := &fakeOrchestrator{
		discover: func(domain.DiscoveryRequest) (*domain.DiscoveryResult, error) {
			return nil, upstreamErr("Discovery pipeline failed")
		},
	}
	m, sess, _ := newSession(t)
	svc := NewDiscoveryService(orch, m)

	_, err := svc.Run(context.Background(), sess, domain.DiscoveryRequest{})
	require.Error(t, err)

	snap := sess.Discovery.Snapshot()
	assert.Equal(t, store.PhaseError, snap.Phase)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "Discovery pipeline failed", snap.Error.Message)
	assert.Equal(t, http.StatusInternalServerError, snap.Error.Status)
	assert.Equal(t, "boom", snap.Error.Details)
}

func TestProteinService_PredictCleansSequence(t *testing.T) {
	var got domain.ProteinRequest
	orch := &fakeOrchestrator{
		predict: func(req domain.ProteinRequest) (*domain.ProteinStructure, error) {
			got = req
			return &domain.ProteinStructure{PDB: "ATOM", Method: "esmfold"}, nil
		},
	}
	_, sess, _ := newSession(t)
	svc := NewProteinService(orch)

	res, err := svc.Predict(context.Background(), sess, domain.ProteinRequest{Sequence: "mk tay\nIAK", ProteinName: " P1 "})
	require.NoError(t, err)
	assert.Equal(t, "MKTAYIAK", got.Sequence)
	assert.Equal(t, "P1", res.ProteinName)
	assert.Equal(t, 8, res.SequenceLength)

	p, err := sess.ProteinStructure()
	require.NoError(t, err)
	assert.Equal(t, "ATOM", p.PDB)
}

func TestProteinService_PredictRejectsInvalidSequence(t *testing.T) {
	_, sess, _ := newSession(t)
	svc := NewProteinService(&fakeOrchestrator{})

	_, err := svc.Predict(context.Background(), sess, domain.ProteinRequest{Sequence: "MK1"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sequence", verr.Field)
}

func TestEvolutionService_ContinueExtendsLineage(t *testing.T) {
	orch := &fakeOrchestrator{
		evolve: func(req domain.EvolutionRequest) (*domain.EvolutionResult, error) {
			return &domain.EvolutionResult{
				TopCandidates: []domain.Variant{{Rank: 1, SMILES: req.ParentSMILES + "C"}},
			}, nil
		},
	}
	_, sess, _ := newSession(t)
	svc := NewEvolutionService(orch)
	ctx := context.Background()

	first, err := svc.Evolve(ctx, sess, domain.EvolutionRequest{ParentSMILES: "CCO"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Generation)
	assert.Empty(t, first.Lineage)

	second, err := svc.Continue(ctx, sess, "CCOC", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Generation)
	assert.Equal(t, []string{"CCO"}, second.Lineage)

	third, err := svc.Continue(ctx, sess, "CCOCC", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Generation)
	assert.Equal(t, []string{"CCO", "CCOC"}, third.Lineage)

	require.Len(t, orch.evolveReqs, 3)
	assert.Equal(t, domain.DefaultNumVariants, orch.evolveReqs[1].NumVariants)
	assert.Equal(t, 5, orch.evolveReqs[2].NumVariants)
}

func TestEvolutionService_ContinueWithoutGeneration(t *testing.T) {
	_, sess, _ := newSession(t)
	svc := NewEvolutionService(&fakeOrchestrator{})

	_, err := svc.Continue(context.Background(), sess, "CCO", 0)
	assert.ErrorIs(t, err, session.ErrNoData)
}

func TestStructureService_CachesBySMILES(t *testing.T) {
	orch := &fakeOrchestrator{}
	svc := NewStructureService(orch, cache.New[domain.Structure3D](time.Minute, 10), nil)
	ctx := context.Background()

	first, err := svc.Get(ctx, " CCO ")
	require.NoError(t, err)
	second, err := svc.Get(ctx, "CCO")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&orch.structCalls))
	assert.Equal(t, uint64(1), svc.CacheStats().Hits)

	view, err := svc.MoleculeViewer(ctx, "CCO")
	require.NoError(t, err)
	assert.Equal(t, "sdf", view.Format)
	assert.Equal(t, "sdf:CCO", view.Data)
}

func TestStructureService_ProteinViewerWithoutStructure(t *testing.T) {
	_, sess, _ := newSession(t)
	svc := NewStructureService(&fakeOrchestrator{}, cache.New[domain.Structure3D](time.Minute, 10), nil)

	_, err := svc.ProteinViewer(sess)
	assert.ErrorIs(t, err, session.ErrNoData)
}

func TestStatusService_CheckReportsOffline(t *testing.T) {
	orch := &fakeOrchestrator{
		statusErr: map[string]error{ServiceBioNeMo: &client.APIError{Upstream: "orchestrator", Message: "BioNeMo is unreachable"}},
	}
	_, sess, _ := newSession(t)
	svc := NewStatusService(orch)

	status := svc.Check(context.Background(), sess)
	assert.True(t, status.Orchestrator.Online())
	assert.True(t, status.SmartChem.Online())
	assert.False(t, status.BioNeMo.Online())
	assert.Equal(t, ServiceBioNeMo, status.BioNeMo.Name)
	assert.Equal(t, "BioNeMo is unreachable", status.BioNeMo.Error)
	assert.False(t, status.CheckedAt.IsZero())

	assert.Equal(t, store.PhaseSuccess, sess.Connection.Phase())
}

func TestDockingService_Simulate(t *testing.T) {
	svc := NewDockingService(0)

	res, err := svc.Simulate(context.Background(), "CCO", "EBNA1")
	require.NoError(t, err)
	assert.True(t, res.Simulated)
	require.Len(t, res.Poses, 3)
	assert.Equal(t, -8.4, res.Poses[0].AffinityKcalMol)

	res.Poses[0].AffinityKcalMol = 0
	again, err := svc.Simulate(context.Background(), "CCO", "EBNA1")
	require.NoError(t, err)
	assert.Equal(t, -8.4, again.Poses[0].AffinityKcalMol)
}

func TestDockingService_SimulateCancelled(t *testing.T) {
	svc := NewDockingService(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Simulate(ctx, "CCO", "EBNA1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDockingService_SimulateValidates(t *testing.T) {
	svc := NewDockingService(0)

	_, err := svc.Simulate(context.Background(), "", "EBNA1")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "smiles", verr.Field)
}

func TestExportService_Archive(t *testing.T) {
	local, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), URLPrefix: "/files"})
	require.NoError(t, err)

	m, sess, _ := newSession(t)
	orch := &fakeOrchestrator{
		discover: func(domain.DiscoveryRequest) (*domain.DiscoveryResult, error) {
			return &domain.DiscoveryResult{TopCandidates: []domain.Candidate{{Rank: 1, SMILES: "CCO"}}}, nil
		},
	}
	_, err = NewDiscoveryService(orch, m).Run(context.Background(), sess, domain.DiscoveryRequest{})
	require.NoError(t, err)

	svc := NewExportService(local)
	archived, err := svc.Archive(context.Background(), sess, "candidates", "csv")
	require.NoError(t, err)
	assert.Contains(t, archived.Key, "exports/"+sess.ID+"/")
	assert.Positive(t, archived.Size)

	files, err := svc.List(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, archived.Key, files[0].Key)
}

func TestExportService_ArchiveWithoutStorage(t *testing.T) {
	_, sess, _ := newSession(t)
	_, err := NewExportService(nil).Archive(context.Background(), sess, "candidates", "csv")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, session.ErrNoData))
}
