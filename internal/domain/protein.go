package domain

// ProteinRequest asks for a 3D structure of an amino acid sequence.
type ProteinRequest struct {
	Sequence    string `json:"sequence"`
	ProteinName string `json:"protein_name"`
}

// ProteinStructure is a predicted or retrieved structure in PDB format.
type ProteinStructure struct {
	PDB            string `json:"pdb"`
	Method         string `json:"method"`
	Mode           string `json:"mode,omitempty"`
	Source         string `json:"source,omitempty"`
	ProteinName    string `json:"protein_name,omitempty"`
	ProteinID      string `json:"protein_id,omitempty"`
	SequenceLength int    `json:"sequence_length,omitempty"`
	Accuracy       string `json:"accuracy,omitempty"`
	TimeEstimate   string `json:"time_estimate,omitempty"`
	Status         string `json:"status,omitempty"`
	Note           string `json:"note,omitempty"`
}
