package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrathink/discovery-web/internal/domain"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestOrchestrator_Discover(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orchestrate/discover", r.URL.Path)

		var req domain.DiscoveryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "EBNA1", req.TargetName)
		assert.Equal(t, 10, req.NumMolecules)

		writeJSON(w, map[string]any{
			"target":    "EBNA1",
			"timestamp": "2024-01-01T00:00:00",
			"top_candidates": []map[string]any{
				{"rank": 1, "smiles": "CCO", "qed": 0.41, "admet_score": 0.8, "gi_absorption": "High"},
			},
			"tools_used": []string{"RDKit"},
		})
	})

	c := NewOrchestrator(srv.URL+"/", time.Second)
	res, err := c.Discover(context.Background(), domain.DiscoveryRequest{}.WithDefaults())
	require.NoError(t, err)

	require.Len(t, res.TopCandidates, 1)
	assert.Equal(t, "CCO", res.TopCandidates[0].SMILES)
	require.NotNil(t, res.TopCandidates[0].QED)
	assert.InDelta(t, 0.41, *res.TopCandidates[0].QED, 1e-9)
	assert.Equal(t, []string{"RDKit"}, res.ToolsUsed)
}

func TestOrchestrator_ErrorBodyWithOK(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"error": "RDKit not installed", "method": "MolGAN"})
	})

	c := NewOrchestrator(srv.URL, time.Second)
	_, err := c.Evolve(context.Background(), domain.EvolutionRequest{ParentSMILES: "CCO"})
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "RDKit not installed", apiErr.Message)
}

func TestOrchestrator_NonOKStatus(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]any{"detail": "Generation failed: boom"})
	})

	c := NewOrchestrator(srv.URL, time.Second)
	_, err := c.Discover(context.Background(), domain.DiscoveryRequest{})

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "Generation failed: boom", apiErr.Details)
}

func TestOrchestrator_LongMultibyteDetails(t *testing.T) {
	detail := "x" + strings.Repeat("é", 600)
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		writeJSON(w, map[string]any{"detail": detail})
	})

	c := NewOrchestrator(srv.URL, time.Second)
	_, err := c.Discover(context.Background(), domain.DiscoveryRequest{})

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.True(t, utf8.ValidString(apiErr.Details))
	assert.True(t, strings.HasSuffix(apiErr.Details, "..."))
	assert.LessOrEqual(t, len(apiErr.Details), maxDetailsBytes+len("..."))
	assert.True(t, strings.HasPrefix(detail, strings.TrimSuffix(apiErr.Details, "...")))
}

func TestTruncate(t *testing.T) {
	short := strings.Repeat("a", maxDetailsBytes)
	assert.Equal(t, short, truncate(short))

	// a three byte rune straddling the limit is dropped whole
	s := strings.Repeat("a", maxDetailsBytes-1) + "€" + "tail"
	assert.Equal(t, strings.Repeat("a", maxDetailsBytes-1)+"...", truncate(s))
}

func TestOrchestrator_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewOrchestrator(addr, time.Second)
	_, err := c.Health(context.Background())

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 0, apiErr.Status)
	assert.Contains(t, apiErr.Message, "unreachable")
}

func TestOrchestrator_EvolveTopFive(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/research/molgan/generate", r.URL.Path)
		writeJSON(w, map[string]any{
			"generation":               2,
			"parent_smiles":            "CCO",
			"method":                   "MolGAN",
			"total_variants_generated": 100,
			"valid_variants":           100,
			"top_5_candidates": []map[string]any{
				{"rank": 1, "smiles": "CCN", "admet_score": 0.7, "mutations": []string{"O->N"},
					"properties": map[string]any{"mw": 45.1, "logp": -0.1, "tpsa": 26.0, "bbb": true, "toxicity": false}},
			},
		})
	})

	c := NewOrchestrator(srv.URL, time.Second)
	res, err := c.Evolve(context.Background(), domain.EvolutionRequest{ParentSMILES: "CCO", Generation: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Generation)
	require.Len(t, res.TopCandidates, 1)
	assert.Equal(t, "CCN", res.TopCandidates[0].SMILES)
	assert.True(t, res.TopCandidates[0].Properties.BBB)
}

func TestOrchestrator_Structure3D(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tools/3d-structure", r.URL.Path)
		smiles := r.URL.Query().Get("smiles")
		if smiles == "bad" {
			writeJSON(w, map[string]any{"error": "Could not generate 3D coordinates", "smiles": smiles})
			return
		}
		writeJSON(w, map[string]any{"smiles": smiles, "sdf": "\n  RDKit 3D\n", "format": "SDF (3D coordinates)"})
	})

	c := NewOrchestrator(srv.URL, time.Second)
	s, err := c.Structure3D(context.Background(), "C1=CC=CC=C1[N+](=O)[O-]")
	require.NoError(t, err)
	assert.Equal(t, "C1=CC=CC=C1[N+](=O)[O-]", s.SMILES)
	assert.Contains(t, s.SDF, "RDKit")

	_, err = c.Structure3D(context.Background(), "bad")
	assert.Error(t, err)
}

func TestOrchestrator_ServiceStatus(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status/smartchem":
			writeJSON(w, map[string]any{"status": "online", "port": 8000})
		default:
			writeJSON(w, map[string]any{"status": "offline", "port": 5000})
		}
	})

	c := NewOrchestrator(srv.URL, time.Second)

	s, err := c.ServiceStatus(context.Background(), "smartchem")
	require.NoError(t, err)
	assert.True(t, s.Online())
	assert.Equal(t, 8000, s.Port)

	s, err = c.ServiceStatus(context.Background(), "bionemo")
	require.NoError(t, err)
	assert.False(t, s.Online())
}

func TestPubMed_Search(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "pubmed", q.Get("db"))
		assert.Equal(t, "secret", q.Get("api_key"))

		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "EBNA1 inhibitor", q.Get("term"))
			assert.Equal(t, "2", q.Get("retmax"))
			writeJSON(w, map[string]any{"esearchresult": map[string]any{"count": "2", "idlist": []string{"111", "222"}}})
		case "/esummary.fcgi":
			assert.Equal(t, "111,222", q.Get("id"))
			writeJSON(w, map[string]any{"result": map[string]any{
				"uids": []string{"111", "222"},
				"111": map[string]any{
					"uid": "111", "title": "EBNA1 small molecules", "fulljournalname": "J Med Chem",
					"pubdate": "2023 May", "authors": []map[string]any{{"name": "Smith J"}, {"name": "Doe A"}},
				},
				"222": map[string]any{"uid": "222"},
			}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	c := NewPubMed(PubMedConfig{BaseURL: srv.URL, Timeout: time.Second, APIKey: "secret"})
	articles, err := c.Search(context.Background(), "EBNA1 inhibitor", 2)
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, domain.Article{
		PMID: "111", Title: "EBNA1 small molecules", Authors: []string{"Smith J", "Doe A"},
		Journal: "J Med Chem", PubDate: "2023 May",
	}, articles[0])

	assert.Equal(t, domain.Article{
		PMID: "222", Title: domain.UntitledArticle, Authors: []string{},
		Journal: domain.UnknownJournal, PubDate: domain.UnknownDate,
	}, articles[1])
}

func TestPubMed_SearchNoHits(t *testing.T) {
	calls := 0
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, map[string]any{"esearchresult": map[string]any{"count": "0", "idlist": []string{}}})
	})

	c := NewPubMed(PubMedConfig{BaseURL: srv.URL, Timeout: time.Second})
	articles, err := c.Search(context.Background(), "nothing", 10)
	require.NoError(t, err)
	assert.Empty(t, articles)
	assert.NotNil(t, articles)
	assert.Equal(t, 1, calls)
}

func TestPubMed_Abstract(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/efetch.fcgi", r.URL.Path)
		assert.Equal(t, "12345", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0"?>
<PubmedArticleSet><PubmedArticle><MedlineCitation><Article><Abstract>
<AbstractText Label="BACKGROUND">EBNA1 is required for <i>EBV</i> episome maintenance.</AbstractText>
<AbstractText Label="RESULTS">Compounds bound with K&lt;sub&gt;d&lt;/sub&gt; &amp; selectivity.</AbstractText>
</Abstract></Article></MedlineCitation></PubmedArticle></PubmedArticleSet>`)
	})

	c := NewPubMed(PubMedConfig{BaseURL: srv.URL, Timeout: time.Second})
	text, err := c.Abstract(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t,
		"BACKGROUND: EBNA1 is required for EBV episome maintenance.\n\nRESULTS: Compounds bound with K<sub>d</sub> & selectivity.",
		text)
}

func TestChEMBL_Search(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/molecule/search.json", r.URL.Path)
		assert.Equal(t, "aspirin", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writeJSON(w, map[string]any{"molecules": []map[string]any{
			{
				"molecule_chembl_id":  "CHEMBL25",
				"pref_name":           "ASPIRIN",
				"max_phase":           "4.0",
				"molecule_structures": map[string]any{"canonical_smiles": "CC(=O)Oc1ccccc1C(=O)O"},
				"molecule_properties": map[string]any{"full_mwt": "180.16", "alogp": 1.31},
			},
			{"molecule_chembl_id": "CHEMBL999", "pref_name": nil, "max_phase": nil},
		}})
	})

	c := NewChEMBL(srv.URL, time.Second)
	got, err := c.Search(context.Background(), "aspirin", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "ASPIRIN", got[0].PrefName)
	assert.Equal(t, "CC(=O)Oc1ccccc1C(=O)O", got[0].SMILES)
	require.NotNil(t, got[0].MolecularWeight)
	assert.InDelta(t, 180.16, *got[0].MolecularWeight, 1e-9)
	require.NotNil(t, got[0].ALogP)
	assert.InDelta(t, 1.31, *got[0].ALogP, 1e-9)
	require.NotNil(t, got[0].MaxPhase)
	assert.InDelta(t, 4.0, *got[0].MaxPhase, 1e-9)

	assert.Equal(t, domain.UnnamedCompound, got[1].PrefName)
	assert.Nil(t, got[1].MaxPhase)
	assert.Nil(t, got[1].MolecularWeight)
}

func TestChEMBL_Similar(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/similarity/CCO/80.json", r.URL.Path)
		writeJSON(w, map[string]any{"molecules": []map[string]any{
			{"molecule_chembl_id": "CHEMBL545", "pref_name": "ETHANOL", "similarity": "100.0"},
		}})
	})

	c := NewChEMBL(srv.URL, time.Second)
	got, err := c.Similar(context.Background(), "CCO", 80, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Similarity)
	assert.InDelta(t, 100.0, *got[0].Similarity, 1e-9)
}

func TestChEMBL_NotFound(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "resource not found", http.StatusNotFound)
	})

	c := NewChEMBL(srv.URL, time.Second)
	_, err := c.Search(context.Background(), "x", 5)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "resource not found", apiErr.Details)
}
