package domain

// Evolution defaults.
const (
	DefaultNumVariants = 100
	FirstGeneration    = 1
)

// EvolutionRequest asks for mutated variants of a parent molecule.
type EvolutionRequest struct {
	ParentSMILES        string         `json:"parent_smiles"`
	NumVariants         int            `json:"num_variants"`
	Generation          int            `json:"generation"`
	PropertyConstraints map[string]any `json:"property_constraints,omitempty"`
}

// WithDefaults fills zero-valued fields.
func (r EvolutionRequest) WithDefaults() EvolutionRequest {
	if r.NumVariants <= 0 {
		r.NumVariants = DefaultNumVariants
	}
	if r.Generation <= 0 {
		r.Generation = FirstGeneration
	}
	return r
}

// VariantProperties are the headline properties of a variant.
type VariantProperties struct {
	MW       float64 `json:"mw"`
	LogP     float64 `json:"logp"`
	TPSA     float64 `json:"tpsa"`
	BBB      bool    `json:"bbb"`
	Toxicity bool    `json:"toxicity"`
}

// Variant is one scored molecule of a generation.
type Variant struct {
	Rank         int               `json:"rank"`
	SMILES       string            `json:"smiles"`
	ADMETScore   float64           `json:"admet_score"`
	Mutations    []string          `json:"mutations"`
	NoveltyScore float64           `json:"novelty_score"`
	Properties   VariantProperties `json:"properties"`
}

// EvolutionResult is one generation of variants. Lineage lists the parent
// SMILES of every earlier generation, oldest first.
type EvolutionResult struct {
	Generation             int       `json:"generation"`
	ParentSMILES           string    `json:"parent_smiles"`
	Method                 string    `json:"method"`
	TotalVariantsGenerated int       `json:"total_variants_generated"`
	ValidVariants          int       `json:"valid_variants"`
	TopCandidates          []Variant `json:"top_candidates"`
	Lineage                []string  `json:"lineage"`
}
