package domain

import "time"

// Discovery defaults applied when the form leaves a field empty.
const (
	DefaultTargetName   = "EBNA1"
	DefaultNumMolecules = 10
	DefaultTargetQED    = 0.8
	DefaultTargetLogP   = 2.5
	DefaultTargetSAS    = 3.0
)

// DiscoveryRequest starts a discovery pipeline run for one target.
type DiscoveryRequest struct {
	TargetName   string  `json:"target_name"`
	NumMolecules int     `json:"num_molecules"`
	TargetQED    float64 `json:"target_qed"`
	TargetLogP   float64 `json:"target_logp"`
	TargetSAS    float64 `json:"target_sas"`
	ProteinPDB   *string `json:"protein_pdb,omitempty"`
}

// WithDefaults fills zero-valued fields.
func (r DiscoveryRequest) WithDefaults() DiscoveryRequest {
	if r.TargetName == "" {
		r.TargetName = DefaultTargetName
	}
	if r.NumMolecules <= 0 {
		r.NumMolecules = DefaultNumMolecules
	}
	if r.TargetQED == 0 {
		r.TargetQED = DefaultTargetQED
	}
	if r.TargetLogP == 0 {
		r.TargetLogP = DefaultTargetLogP
	}
	if r.TargetSAS == 0 {
		r.TargetSAS = DefaultTargetSAS
	}
	return r
}

// Candidate is one ranked molecule of a discovery result.
type Candidate struct {
	Rank                   int            `json:"rank"`
	SMILES                 string         `json:"smiles"`
	QED                    *float64       `json:"qed"`
	ADMETScore             *float64       `json:"admet_score"`
	BioavailabilityScore   float64        `json:"bioavailability_score"`
	SyntheticAccessibility float64        `json:"synthetic_accessibility"`
	DrugLikeness           float64        `json:"drug_likeness"`
	ToxicityFlag           *bool          `json:"toxicity_flag"`
	BBBPenetration         *bool          `json:"bbb_penetration"`
	LipinskiViolations     int            `json:"lipinski_violations"`
	LipinskiPass           bool           `json:"lipinski_pass"`
	AromaticRings          int            `json:"aromatic_rings"`
	RotatableBonds         int            `json:"rotatable_bonds"`
	HeavyAtoms             int            `json:"heavy_atoms"`
	GIAbsorption           string         `json:"gi_absorption"`
	Descriptors            map[string]any `json:"descriptors,omitempty"`
}

// DiscoveryResult is the orchestrator's pipeline output.
type DiscoveryResult struct {
	Target          string         `json:"target"`
	Timestamp       string         `json:"timestamp"`
	GenerationStage map[string]any `json:"generation_stage"`
	DockingStage    map[string]any `json:"docking_stage"`
	ADMETStage      map[string]any `json:"admet_stage"`
	TopCandidates   []Candidate    `json:"top_candidates"`
	ToolsUsed       []string       `json:"tools_used"`
}

// SavedCandidates is the persisted form of the last discovery's candidates.
type SavedCandidates struct {
	Candidates []Candidate `json:"candidates"`
	Timestamp  time.Time   `json:"timestamp"`
}

// SavedTarget is the persisted form of the last discovery's target name.
type SavedTarget struct {
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
}

// Targets is the orchestrator's list of known disease targets.
type Targets struct {
	AvailableTargets   []string       `json:"available_targets"`
	TotalTargets       int            `json:"total_targets"`
	MoleculesPerTarget map[string]int `json:"molecules_per_target,omitempty"`
}
