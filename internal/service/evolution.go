package service

import (
	"context"

	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/session"
	"github.com/ultrathink/discovery-web/internal/validate"
	"github.com/ultrathink/discovery-web/pkg/log"
)

// EvolutionService evolves molecules generation by generation.
type EvolutionService struct {
	orch Orchestrator
}

// NewEvolutionService creates a new evolution service.
func NewEvolutionService(orch Orchestrator) *EvolutionService {
	return &EvolutionService{orch: orch}
}

// Evolve starts a new lineage from req.ParentSMILES.
func (s *EvolutionService) Evolve(ctx context.Context, sess *session.Session, req domain.EvolutionRequest) (*domain.EvolutionResult, error) {
	r := validate.SMILES(req.ParentSMILES)
	if !r.Valid {
		return nil, invalid("parent_smiles", r)
	}
	req.ParentSMILES = r.Cleaned
	req = req.WithDefaults()

	return s.run(ctx, sess, req, nil)
}

// Continue breeds the next generation from a variant of the current one.
// The parents of all earlier generations are kept in the lineage.
func (s *EvolutionService) Continue(ctx context.Context, sess *session.Session, selectedSMILES string, numVariants int) (*domain.EvolutionResult, error) {
	r := validate.SMILES(selectedSMILES)
	if !r.Valid {
		return nil, invalid("selected_smiles", r)
	}

	prev, ok := sess.Evolution.Data()
	if !ok {
		return nil, session.ErrNoData
	}

	lineage := make([]string, 0, len(prev.Lineage)+1)
	lineage = append(lineage, prev.Lineage...)
	lineage = append(lineage, prev.ParentSMILES)

	req := domain.EvolutionRequest{
		ParentSMILES: r.Cleaned,
		NumVariants:  numVariants,
		Generation:   prev.Generation + 1,
	}.WithDefaults()

	return s.run(ctx, sess, req, lineage)
}

func (s *EvolutionService) run(ctx context.Context, sess *session.Session, req domain.EvolutionRequest, lineage []string) (*domain.EvolutionResult, error) {
	l := log.Ctx(ctx)

	tk := sess.Evolution.Begin()
	res, err := s.orch.Evolve(ctx, req)
	if err != nil {
		sess.Evolution.Fail(tk, storeError(err))
		return nil, err
	}

	if res.ParentSMILES == "" {
		res.ParentSMILES = req.ParentSMILES
	}
	if res.Generation == 0 {
		res.Generation = req.Generation
	}
	if lineage == nil {
		lineage = []string{}
	}
	res.Lineage = lineage

	if !sess.Evolution.Succeed(tk, *res) {
		l.Debug().Msg("evolution result superseded by a newer request")
		return res, nil
	}

	l.Info().Int("generation", res.Generation).Int("variants", len(res.TopCandidates)).Msg("generation evolved")
	return res, nil
}
