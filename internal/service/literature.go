package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ultrathink/discovery-web/internal/cache"
	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/persist"
	"github.com/ultrathink/discovery-web/internal/validate"
	"github.com/ultrathink/discovery-web/pkg/log"
)

const (
	defaultMaxResults = 10
	maxMaxResults     = 100
	maxQueryLength    = 500

	// NoAbstract is shown for articles that have no abstract.
	NoAbstract = "No abstract available."
)

// LiteratureConfig holds literature search settings.
type LiteratureConfig struct {
	DefaultMax  int
	AbstractTTL time.Duration
}

// LiteratureService searches PubMed and fetches abstracts.
type LiteratureService struct {
	src   LiteratureSource
	kv    persist.KV
	cache *layeredCache[[]domain.Article]
	cfg   LiteratureConfig
	now   func() time.Time
}

// NewLiteratureService creates a new literature service. l2 may be nil.
func NewLiteratureService(src LiteratureSource, kv persist.KV, l1 *cache.Cache[[]domain.Article], l2 *cache.RedisCache[[]domain.Article], cfg LiteratureConfig) *LiteratureService {
	if cfg.DefaultMax <= 0 {
		cfg.DefaultMax = defaultMaxResults
	}
	if cfg.AbstractTTL <= 0 {
		cfg.AbstractTTL = 24 * time.Hour
	}
	return &LiteratureService{
		src:   src,
		kv:    kv,
		cache: newLayeredCache(l1, l2),
		cfg:   cfg,
		now:   time.Now,
	}
}

// Search returns up to max articles for query. Results are cached per
// (query, max).
func (s *LiteratureService) Search(ctx context.Context, query string, max int) ([]domain.Article, error) {
	query, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}
	max = clampLimit(max, s.cfg.DefaultMax)

	return s.cache.get(ctx, cache.Key("pubmed", query, max), func(ctx context.Context) ([]domain.Article, error) {
		return s.src.Search(ctx, query, max)
	})
}

// Abstract returns the abstract of pmid. Fetched abstracts are saved in the
// global scope and reused until they are older than the abstract ttl.
func (s *LiteratureService) Abstract(ctx context.Context, pmid string) (*domain.Abstract, error) {
	r := validate.PMID(pmid)
	if !r.Valid {
		return nil, invalid("pmid", r)
	}
	pmid = r.Cleaned
	key := persist.AbstractKey(pmid)
	l := log.Ctx(ctx)

	var saved domain.Abstract
	err := persist.GetJSON(ctx, s.kv, persist.GlobalScope, key, &saved)
	switch {
	case err == nil && saved.Text != "" && s.now().Sub(saved.FetchedAt) < s.cfg.AbstractTTL:
		return &saved, nil
	case err == nil:
		if err := s.kv.Delete(ctx, persist.GlobalScope, key); err != nil {
			l.Warn().Err(err).Str("pmid", pmid).Msg("failed to delete stale abstract")
		}
	case !errors.Is(err, persist.ErrNotFound):
		l.Warn().Err(err).Str("pmid", pmid).Msg("discarding unreadable saved abstract")
		if err := s.kv.Delete(ctx, persist.GlobalScope, key); err != nil {
			l.Warn().Err(err).Str("pmid", pmid).Msg("failed to delete unreadable abstract")
		}
	}

	text, err := s.src.Abstract(ctx, pmid)
	if err != nil {
		return nil, err
	}
	if text == "" {
		text = NoAbstract
	}

	abs := &domain.Abstract{PMID: pmid, Text: text, FetchedAt: s.now()}
	if err := persist.SetJSON(ctx, s.kv, persist.GlobalScope, key, abs, s.cfg.AbstractTTL); err != nil {
		l.Warn().Err(err).Str("pmid", pmid).Msg("failed to save abstract")
	}
	return abs, nil
}

// CacheStats reports the search cache counters.
func (s *LiteratureService) CacheStats() cache.Stats {
	return s.cache.stats()
}

// ClearCache empties the in-process search cache.
func (s *LiteratureService) ClearCache() {
	s.cache.clear()
}

func normalizeQuery(q string) (string, error) {
	q = strings.Join(strings.Fields(q), " ")
	if q == "" {
		return "", &ValidationError{Field: "query", Message: "Search query is required"}
	}
	if len(q) > maxQueryLength {
		return "", &ValidationError{Field: "query", Message: "Search query is too long"}
	}
	return q, nil
}

func clampLimit(n, def int) int {
	if n <= 0 {
		return def
	}
	if n > maxMaxResults {
		return maxMaxResults
	}
	return n
}
