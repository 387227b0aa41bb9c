package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ultrathink/discovery-web/internal/domain"
)

// ChEMBL queries the EBI ChEMBL REST API.
type ChEMBL struct {
	req requester
}

// NewChEMBL creates a new ChEMBL client.
func NewChEMBL(baseURL string, timeout time.Duration) *ChEMBL {
	return &ChEMBL{
		req: requester{
			name:       "chembl",
			baseURL:    strings.TrimRight(baseURL, "/"),
			httpClient: newHTTPClient("chembl", timeout),
		},
	}
}

// flexFloat decodes numbers that ChEMBL sends either as JSON numbers or as
// strings ("180.16"). Null and unparsable values decode as absent.
type flexFloat struct {
	v  float64
	ok bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.v, f.ok = v, true
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.ok {
		return nil
	}
	v := f.v
	return &v
}

type chemblMolecule struct {
	ChEMBLID           string    `json:"molecule_chembl_id"`
	PrefName           *string   `json:"pref_name"`
	MaxPhase           flexFloat `json:"max_phase"`
	Similarity         flexFloat `json:"similarity"`
	MoleculeStructures *struct {
		CanonicalSMILES string `json:"canonical_smiles"`
	} `json:"molecule_structures"`
	MoleculeProperties *struct {
		FullMWT flexFloat `json:"full_mwt"`
		ALogP   flexFloat `json:"alogp"`
	} `json:"molecule_properties"`
}

type chemblResponse struct {
	Molecules []chemblMolecule `json:"molecules"`
}

func (m chemblMolecule) compound() domain.Compound {
	c := domain.Compound{
		ChEMBLID:   m.ChEMBLID,
		PrefName:   domain.UnnamedCompound,
		MaxPhase:   m.MaxPhase.ptr(),
		Similarity: m.Similarity.ptr(),
	}
	if m.PrefName != nil && strings.TrimSpace(*m.PrefName) != "" {
		c.PrefName = *m.PrefName
	}
	if m.MoleculeStructures != nil {
		c.SMILES = m.MoleculeStructures.CanonicalSMILES
	}
	if m.MoleculeProperties != nil {
		c.MolecularWeight = m.MoleculeProperties.FullMWT.ptr()
		c.ALogP = m.MoleculeProperties.ALogP.ptr()
	}
	return c
}

func compounds(resp chemblResponse) []domain.Compound {
	out := make([]domain.Compound, 0, len(resp.Molecules))
	for _, m := range resp.Molecules {
		out = append(out, m.compound())
	}
	return out
}

// Search runs a free-text molecule search.
func (c *ChEMBL) Search(ctx context.Context, query string, limit int) ([]domain.Compound, error) {
	u := fmt.Sprintf("%s/molecule/search.json?%s", c.req.baseURL, url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(limit)},
	}.Encode())

	var resp chemblResponse
	if err := c.req.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	return compounds(resp), nil
}

// Similar returns molecules whose Tanimoto similarity to smiles is at least
// threshold percent.
func (c *ChEMBL) Similar(ctx context.Context, smiles string, threshold, limit int) ([]domain.Compound, error) {
	u := fmt.Sprintf("%s/similarity/%s/%d.json?%s", c.req.baseURL,
		url.PathEscape(smiles), threshold, url.Values{"limit": {strconv.Itoa(limit)}}.Encode())

	var resp chemblResponse
	if err := c.req.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	return compounds(resp), nil
}

var _ json.Unmarshaler = (*flexFloat)(nil)
