package service

import (
	"context"

	"github.com/ultrathink/discovery-web/internal/cache"
	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/session"
	"github.com/ultrathink/discovery-web/internal/validate"
)

// StructureService turns SMILES into 3D coordinates for the molecule viewer.
type StructureService struct {
	orch  Orchestrator
	cache *layeredCache[domain.Structure3D]
}

// NewStructureService creates a new structure service. l2 may be nil.
func NewStructureService(orch Orchestrator, l1 *cache.Cache[domain.Structure3D], l2 *cache.RedisCache[domain.Structure3D]) *StructureService {
	return &StructureService{
		orch:  orch,
		cache: newLayeredCache(l1, l2),
	}
}

// Get returns the SDF structure of smiles.
func (s *StructureService) Get(ctx context.Context, smiles string) (*domain.Structure3D, error) {
	r := validate.SMILES(smiles)
	if !r.Valid {
		return nil, invalid("smiles", r)
	}

	st, err := s.cache.get(ctx, cache.Key("sdf", r.Cleaned), func(ctx context.Context) (domain.Structure3D, error) {
		res, err := s.orch.Structure3D(ctx, r.Cleaned)
		if err != nil {
			return domain.Structure3D{}, err
		}
		return *res, nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// MoleculeViewer returns the viewer payload of a molecule.
func (s *StructureService) MoleculeViewer(ctx context.Context, smiles string) (*domain.ViewerPayload, error) {
	st, err := s.Get(ctx, smiles)
	if err != nil {
		return nil, err
	}
	return &domain.ViewerPayload{Format: "sdf", Data: st.SDF, Label: st.SMILES}, nil
}

// ProteinViewer returns the viewer payload of the session's protein.
func (s *StructureService) ProteinViewer(sess *session.Session) (*domain.ViewerPayload, error) {
	p, err := sess.ProteinStructure()
	if err != nil {
		return nil, err
	}
	return &domain.ViewerPayload{Format: "pdb", Data: p.PDB, Label: p.ProteinName}, nil
}

// CacheStats reports the structure cache counters.
func (s *StructureService) CacheStats() cache.Stats {
	return s.cache.stats()
}
