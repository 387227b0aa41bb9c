package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ultrathink/discovery-web/internal/domain"
)

// SearchService queries literature and compounds together.
type SearchService struct {
	literature *LiteratureService
	compounds  *CompoundService
}

// NewSearchService creates a new unified search service.
func NewSearchService(literature *LiteratureService, compounds *CompoundService) *SearchService {
	return &SearchService{literature: literature, compounds: compounds}
}

// All searches PubMed and ChEMBL in parallel. Either side failing fails the
// whole query.
func (s *SearchService) All(ctx context.Context, query string, limit int) (*domain.SearchResponse, error) {
	query, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}

	var articles []domain.Article
	var compounds []domain.Compound

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		articles, err = s.literature.Search(gCtx, query, limit)
		return err
	})

	g.Go(func() error {
		var err error
		compounds, err = s.compounds.Search(gCtx, query, limit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.SearchResponse{
		Query:     query,
		Articles:  articles,
		Compounds: compounds,
		Total:     len(articles) + len(compounds),
	}, nil
}
