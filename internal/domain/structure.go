package domain

// Structure3D carries generated 3D coordinates of a small molecule.
type Structure3D struct {
	SMILES string `json:"smiles"`
	SDF    string `json:"sdf"`
	Format string `json:"format,omitempty"`
}

// ViewerPayload is what the browser's 3D widget loads.
type ViewerPayload struct {
	Format string `json:"format"` // "sdf" or "pdb"
	Data   string `json:"data"`
	Label  string `json:"label,omitempty"`
}

// DockingPose is one simulated binding pose.
type DockingPose struct {
	Pose            int     `json:"pose"`
	AffinityKcalMol float64 `json:"affinity_kcal_mol"`
	RMSD            float64 `json:"rmsd"`
}

// DockingResult is a simulated docking run. Simulated is always true.
type DockingResult struct {
	SMILES    string        `json:"smiles"`
	Target    string        `json:"target"`
	Poses     []DockingPose `json:"poses"`
	Simulated bool          `json:"simulated"`
}
