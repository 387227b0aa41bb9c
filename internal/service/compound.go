package service

import (
	"context"

	"github.com/ultrathink/discovery-web/internal/cache"
	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/validate"
)

const (
	minSimilarity = 40
	maxSimilarity = 100
)

// CompoundConfig holds compound search settings.
type CompoundConfig struct {
	DefaultLimit     int
	DefaultThreshold int
}

// CompoundService searches ChEMBL.
type CompoundService struct {
	src   CompoundSource
	cache *layeredCache[[]domain.Compound]
	cfg   CompoundConfig
}

// NewCompoundService creates a new compound service. l2 may be nil.
func NewCompoundService(src CompoundSource, l1 *cache.Cache[[]domain.Compound], l2 *cache.RedisCache[[]domain.Compound], cfg CompoundConfig) *CompoundService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaultMaxResults
	}
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = 70
	}
	return &CompoundService{
		src:   src,
		cache: newLayeredCache(l1, l2),
		cfg:   cfg,
	}
}

// Search runs a free-text compound search.
func (s *CompoundService) Search(ctx context.Context, query string, limit int) ([]domain.Compound, error) {
	query, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, s.cfg.DefaultLimit)

	return s.cache.get(ctx, cache.Key("chembl", query, limit), func(ctx context.Context) ([]domain.Compound, error) {
		return s.src.Search(ctx, query, limit)
	})
}

// Similar returns compounds similar to smiles. threshold is a percentage
// between 40 and 100.
func (s *CompoundService) Similar(ctx context.Context, smiles string, threshold, limit int) ([]domain.Compound, error) {
	r := validate.SMILES(smiles)
	if !r.Valid {
		return nil, invalid("smiles", r)
	}
	threshold = clampThreshold(threshold, s.cfg.DefaultThreshold)
	limit = clampLimit(limit, s.cfg.DefaultLimit)

	return s.cache.get(ctx, cache.Key("chembl-similar", r.Cleaned, threshold, limit), func(ctx context.Context) ([]domain.Compound, error) {
		return s.src.Similar(ctx, r.Cleaned, threshold, limit)
	})
}

// clampThreshold pulls threshold into the range ChEMBL accepts; zero picks def.
func clampThreshold(threshold, def int) int {
	switch {
	case threshold == 0:
		return def
	case threshold < minSimilarity:
		return minSimilarity
	case threshold > maxSimilarity:
		return maxSimilarity
	}
	return threshold
}

// CacheStats reports the compound cache counters.
func (s *CompoundService) CacheStats() cache.Stats {
	return s.cache.stats()
}

// ClearCache empties the in-process compound cache.
func (s *CompoundService) ClearCache() {
	s.cache.clear()
}
