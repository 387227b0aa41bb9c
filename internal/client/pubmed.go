package client

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ultrathink/discovery-web/internal/domain"
)

// PubMedConfig holds NCBI E-utilities settings.
type PubMedConfig struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
	Tool    string
	Email   string
}

// PubMed searches the PubMed literature database through E-utilities.
type PubMed struct {
	req requester
	cfg PubMedConfig
}

// NewPubMed creates a new PubMed client.
func NewPubMed(cfg PubMedConfig) *PubMed {
	return &PubMed{
		req: requester{
			name:       "pubmed",
			baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
			httpClient: newHTTPClient("pubmed", cfg.Timeout),
		},
		cfg: cfg,
	}
}

func (c *PubMed) endpoint(name string, params url.Values) string {
	params.Set("db", "pubmed")
	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}
	if c.cfg.Tool != "" {
		params.Set("tool", c.cfg.Tool)
	}
	if c.cfg.Email != "" {
		params.Set("email", c.cfg.Email)
	}
	return fmt.Sprintf("%s/%s?%s", c.req.baseURL, name, params.Encode())
}

type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type esummaryDoc struct {
	UID     string `json:"uid"`
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	FullJournalName string `json:"fulljournalname"`
	Source          string `json:"source"`
	PubDate         string `json:"pubdate"`
}

// Search returns up to max articles matching query, in relevance order.
func (c *PubMed) Search(ctx context.Context, query string, max int) ([]domain.Article, error) {
	var search esearchResponse
	err := c.req.getJSON(ctx, c.endpoint("esearch.fcgi", url.Values{
		"term":    {query},
		"retmax":  {strconv.Itoa(max)},
		"retmode": {"json"},
		"sort":    {"relevance"},
	}), &search)
	if err != nil {
		return nil, err
	}

	ids := search.Result.IDList
	if len(ids) == 0 {
		return []domain.Article{}, nil
	}

	var summary esummaryResponse
	err = c.req.getJSON(ctx, c.endpoint("esummary.fcgi", url.Values{
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}), &summary)
	if err != nil {
		return nil, err
	}

	articles := make([]domain.Article, 0, len(ids))
	for _, id := range ids {
		raw, ok := summary.Result[id]
		if !ok {
			continue
		}
		var doc esummaryDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		articles = append(articles, articleFromSummary(id, doc))
	}

	return articles, nil
}

func articleFromSummary(id string, doc esummaryDoc) domain.Article {
	a := domain.Article{
		PMID:    id,
		Title:   strings.TrimSpace(doc.Title),
		Journal: doc.FullJournalName,
		PubDate: doc.PubDate,
		Authors: make([]string, 0, len(doc.Authors)),
	}
	for _, au := range doc.Authors {
		if au.Name != "" {
			a.Authors = append(a.Authors, au.Name)
		}
	}
	if a.Title == "" {
		a.Title = domain.UntitledArticle
	}
	if a.Journal == "" {
		a.Journal = doc.Source
	}
	if a.Journal == "" {
		a.Journal = domain.UnknownJournal
	}
	if a.PubDate == "" {
		a.PubDate = domain.UnknownDate
	}
	return a
}

type efetchResponse struct {
	Articles []struct {
		AbstractTexts []struct {
			Label string `xml:"Label,attr"`
			Inner string `xml:",innerxml"`
		} `xml:"MedlineCitation>Article>Abstract>AbstractText"`
	} `xml:"PubmedArticle"`
}

var markupTag = regexp.MustCompile(`<[^>]*>`)

// Abstract fetches the abstract text of one article. Labelled sections are
// joined as "LABEL: text" paragraphs. An article without an abstract yields
// an empty string.
func (c *PubMed) Abstract(ctx context.Context, pmid string) (string, error) {
	data, err := c.req.fetch(ctx, http.MethodGet, c.endpoint("efetch.fcgi", url.Values{
		"id":      {pmid},
		"rettype": {"abstract"},
		"retmode": {"xml"},
	}), nil, "application/xml")
	if err != nil {
		return "", err
	}

	var doc efetchResponse
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", &APIError{
			Upstream: c.req.name,
			Message:  "invalid abstract document",
			Status:   http.StatusBadGateway,
			Details:  err.Error(),
			Err:      err,
		}
	}

	var parts []string
	for _, article := range doc.Articles {
		for _, section := range article.AbstractTexts {
			text := strings.TrimSpace(html.UnescapeString(markupTag.ReplaceAllString(section.Inner, "")))
			if text == "" {
				continue
			}
			if section.Label != "" {
				text = section.Label + ": " + text
			}
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}
