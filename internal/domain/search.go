package domain

import "time"

// Placeholders used when a vendor record omits a field.
const (
	UntitledArticle = "Untitled"
	UnknownJournal  = "Unknown journal"
	UnknownDate     = "Unknown date"
	UnnamedCompound = "Unnamed compound"
)

// Article is a PubMed search hit.
type Article struct {
	PMID    string   `json:"pmid"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Journal string   `json:"journal"`
	PubDate string   `json:"pub_date"`
}

// Abstract is the text of a PubMed abstract.
type Abstract struct {
	PMID      string    `json:"pmid"`
	Text      string    `json:"text"`
	FetchedAt time.Time `json:"timestamp"`
}

// Compound is a ChEMBL molecule.
type Compound struct {
	ChEMBLID        string   `json:"chembl_id"`
	PrefName        string   `json:"pref_name"`
	SMILES          string   `json:"smiles,omitempty"`
	MolecularWeight *float64 `json:"molecular_weight,omitempty"`
	ALogP           *float64 `json:"alogp,omitempty"`
	MaxPhase        *float64 `json:"max_phase,omitempty"`
	Similarity      *float64 `json:"similarity,omitempty"`
}

// SearchResponse is the unified literature and compound search result.
type SearchResponse struct {
	Query     string     `json:"query"`
	Articles  []Article  `json:"articles"`
	Compounds []Compound `json:"compounds"`
	Total     int        `json:"total"`
}
