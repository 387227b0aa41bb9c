package service

import (
	"context"
	"time"

	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/validate"
)

// dockingPoses are the fixed poses every simulated run returns.
var dockingPoses = []domain.DockingPose{
	{Pose: 1, AffinityKcalMol: -8.4, RMSD: 0.0},
	{Pose: 2, AffinityKcalMol: -7.9, RMSD: 1.2},
	{Pose: 3, AffinityKcalMol: -7.1, RMSD: 2.3},
}

// DockingService simulates protein-ligand docking. No docking is computed.
type DockingService struct {
	delay time.Duration
}

// NewDockingService creates a docking simulator that answers after delay.
func NewDockingService(delay time.Duration) *DockingService {
	return &DockingService{delay: delay}
}

// Simulate waits for the configured delay and returns the fixed poses.
func (s *DockingService) Simulate(ctx context.Context, smiles, target string) (*domain.DockingResult, error) {
	r := validate.SMILES(smiles)
	if !r.Valid {
		return nil, invalid("smiles", r)
	}
	t := validate.TargetName(target)
	if !t.Valid {
		return nil, invalid("target", t)
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	poses := make([]domain.DockingPose, len(dockingPoses))
	copy(poses, dockingPoses)

	return &domain.DockingResult{
		SMILES:    r.Cleaned,
		Target:    t.Cleaned,
		Poses:     poses,
		Simulated: true,
	}, nil
}
