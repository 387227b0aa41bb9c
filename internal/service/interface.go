package service

import (
	"context"

	"github.com/ultrathink/discovery-web/internal/client"
	"github.com/ultrathink/discovery-web/internal/domain"
)

// Orchestrator is the subset of the orchestrator client the services use.
type Orchestrator interface {
	Discover(ctx context.Context, req domain.DiscoveryRequest) (*domain.DiscoveryResult, error)
	PredictStructure(ctx context.Context, req domain.ProteinRequest) (*domain.ProteinStructure, error)
	Evolve(ctx context.Context, req domain.EvolutionRequest) (*domain.EvolutionResult, error)
	Structure3D(ctx context.Context, smiles string) (*domain.Structure3D, error)
	Health(ctx context.Context) (*client.HealthInfo, error)
	ServiceStatus(ctx context.Context, name string) (domain.ServiceState, error)
	Targets(ctx context.Context) (*domain.Targets, error)
}

// LiteratureSource searches PubMed.
type LiteratureSource interface {
	Search(ctx context.Context, query string, max int) ([]domain.Article, error)
	Abstract(ctx context.Context, pmid string) (string, error)
}

// CompoundSource searches ChEMBL.
type CompoundSource interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Compound, error)
	Similar(ctx context.Context, smiles string, threshold, limit int) ([]domain.Compound, error)
}

var (
	_ Orchestrator     = (*client.Orchestrator)(nil)
	_ LiteratureSource = (*client.PubMed)(nil)
	_ CompoundSource   = (*client.ChEMBL)(nil)
)
