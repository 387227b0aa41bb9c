package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ultrathink/discovery-web/internal/domain"
)

// Orchestrator wraps the backend that runs discovery pipelines, structure
// prediction and molecule generation.
type Orchestrator struct {
	req requester
}

// NewOrchestrator creates a new orchestrator client.
func NewOrchestrator(baseURL string, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		req: requester{
			name:       "orchestrator",
			baseURL:    strings.TrimRight(baseURL, "/"),
			httpClient: newHTTPClient("orchestrator", timeout),
			errorField: true,
		},
	}
}

// BaseURL returns the configured orchestrator address.
func (c *Orchestrator) BaseURL() string {
	return c.req.baseURL
}

// Discover runs the full generation, docking and ADMET pipeline.
func (c *Orchestrator) Discover(ctx context.Context, in domain.DiscoveryRequest) (*domain.DiscoveryResult, error) {
	var out domain.DiscoveryResult
	if err := c.req.postJSON(ctx, c.req.baseURL+"/orchestrate/discover", in, &out); err != nil {
		return nil, err
	}
	if out.TopCandidates == nil {
		out.TopCandidates = []domain.Candidate{}
	}
	return &out, nil
}

// PredictStructure folds a protein sequence into a PDB structure.
func (c *Orchestrator) PredictStructure(ctx context.Context, in domain.ProteinRequest) (*domain.ProteinStructure, error) {
	var out domain.ProteinStructure
	if err := c.req.postJSON(ctx, c.req.baseURL+"/research/esmfold/predict", in, &out); err != nil {
		return nil, err
	}
	if out.PDB == "" {
		return nil, &APIError{
			Upstream: c.req.name,
			Message:  "structure prediction returned no PDB data",
			Status:   http.StatusBadGateway,
		}
	}
	return &out, nil
}

type evolutionWire struct {
	Generation             int              `json:"generation"`
	ParentSMILES           string           `json:"parent_smiles"`
	Method                 string           `json:"method"`
	TotalVariantsGenerated int              `json:"total_variants_generated"`
	ValidVariants          int              `json:"valid_variants"`
	TopCandidates          []domain.Variant `json:"top_candidates"`
	Top5Candidates         []domain.Variant `json:"top_5_candidates"`
}

// Evolve generates and scores variants of a parent molecule.
func (c *Orchestrator) Evolve(ctx context.Context, in domain.EvolutionRequest) (*domain.EvolutionResult, error) {
	var wire evolutionWire
	if err := c.req.postJSON(ctx, c.req.baseURL+"/research/molgan/generate", in, &wire); err != nil {
		return nil, err
	}

	top := wire.TopCandidates
	if len(top) == 0 {
		top = wire.Top5Candidates
	}
	if top == nil {
		top = []domain.Variant{}
	}

	return &domain.EvolutionResult{
		Generation:             wire.Generation,
		ParentSMILES:           wire.ParentSMILES,
		Method:                 wire.Method,
		TotalVariantsGenerated: wire.TotalVariantsGenerated,
		ValidVariants:          wire.ValidVariants,
		TopCandidates:          top,
	}, nil
}

// Structure3D converts a SMILES string into 3D coordinates (SDF).
func (c *Orchestrator) Structure3D(ctx context.Context, smiles string) (*domain.Structure3D, error) {
	u := c.req.baseURL + "/tools/3d-structure?" + url.Values{"smiles": {smiles}}.Encode()

	var out domain.Structure3D
	if err := c.req.postJSON(ctx, u, nil, &out); err != nil {
		return nil, err
	}
	if out.SDF == "" {
		return nil, &APIError{
			Upstream: c.req.name,
			Message:  "could not generate 3D coordinates",
			Status:   http.StatusBadGateway,
		}
	}
	if out.SMILES == "" {
		out.SMILES = smiles
	}
	return &out, nil
}

// HealthInfo is the orchestrator's health document.
type HealthInfo struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// Health checks whether the orchestrator answers.
func (c *Orchestrator) Health(ctx context.Context) (*HealthInfo, error) {
	var out HealthInfo
	if err := c.req.getJSON(ctx, c.req.baseURL+"/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ServiceStatus asks the orchestrator whether one of its own dependencies
// ("smartchem" or "bionemo") is running.
func (c *Orchestrator) ServiceStatus(ctx context.Context, name string) (domain.ServiceState, error) {
	var out struct {
		Status string `json:"status"`
		Port   int    `json:"port"`
	}
	if err := c.req.getJSON(ctx, c.req.baseURL+"/status/"+url.PathEscape(name), &out); err != nil {
		return domain.ServiceState{Name: name, Status: domain.StatusOffline}, err
	}
	status := out.Status
	if status != domain.StatusOnline {
		status = domain.StatusOffline
	}
	return domain.ServiceState{Name: name, Status: status, Port: out.Port}, nil
}

// Targets lists the disease targets the orchestrator knows.
func (c *Orchestrator) Targets(ctx context.Context) (*domain.Targets, error) {
	var out domain.Targets
	if err := c.req.getJSON(ctx, c.req.baseURL+"/tools/targets", &out); err != nil {
		return nil, err
	}
	if out.AvailableTargets == nil {
		out.AvailableTargets = []string{}
	}
	return &out, nil
}
