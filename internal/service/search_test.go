package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrathink/discovery-web/internal/cache"
	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/persist"
)

type fakeLiterature struct {
	searches  int32
	abstracts int32
	err       error
	abstract  string
}

func (f *fakeLiterature) Search(_ context.Context, query string, max int) ([]domain.Article, error) {
	atomic.AddInt32(&f.searches, 1)
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Article{{PMID: "1", Title: query}}, nil
}

func (f *fakeLiterature) Abstract(_ context.Context, pmid string) (string, error) {
	atomic.AddInt32(&f.abstracts, 1)
	return f.abstract, nil
}

type fakeCompounds struct {
	searches int32
	similar  int32
	err      error
	lastTh   int
}

func (f *fakeCompounds) Search(_ context.Context, query string, limit int) ([]domain.Compound, error) {
	atomic.AddInt32(&f.searches, 1)
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Compound{{ChEMBLID: "CHEMBL25", PrefName: query}}, nil
}

func (f *fakeCompounds) Similar(_ context.Context, smiles string, threshold, limit int) ([]domain.Compound, error) {
	atomic.AddInt32(&f.similar, 1)
	f.lastTh = threshold
	return []domain.Compound{{ChEMBLID: "CHEMBL1", SMILES: smiles}}, nil
}

func newLiterature(src LiteratureSource, kv persist.KV) *LiteratureService {
	return NewLiteratureService(src, kv, cache.New[[]domain.Article](time.Minute, 10), nil, LiteratureConfig{})
}

func newCompounds(src CompoundSource) *CompoundService {
	return NewCompoundService(src, cache.New[[]domain.Compound](time.Minute, 10), nil, CompoundConfig{})
}

func TestLiteratureService_SearchUsesCache(t *testing.T) {
	src := &fakeLiterature{}
	svc := newLiterature(src, persist.NewMemoryKV())
	ctx := context.Background()

	first, err := svc.Search(ctx, "  EBNA1   inhibitor ", 0)
	require.NoError(t, err)
	second, err := svc.Search(ctx, "EBNA1 inhibitor", 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.searches))

	svc.ClearCache()
	_, err = svc.Search(ctx, "EBNA1 inhibitor", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.searches))
}

func TestLiteratureService_FailuresAreNotCached(t *testing.T) {
	src := &fakeLiterature{err: errors.New("down")}
	svc := newLiterature(src, persist.NewMemoryKV())

	_, err := svc.Search(context.Background(), "EBNA1", 5)
	require.Error(t, err)
	_, err = svc.Search(context.Background(), "EBNA1", 5)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.searches))
}

func TestLiteratureService_SearchRequiresQuery(t *testing.T) {
	svc := newLiterature(&fakeLiterature{}, persist.NewMemoryKV())

	_, err := svc.Search(context.Background(), "   ", 5)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)
}

func TestLiteratureService_SearchUsesRedisLevel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l2 := cache.NewRedisCache[[]domain.Article](rdb, "search", time.Minute)
	ctx := context.Background()
	require.NoError(t, l2.Set(ctx, cache.Key("pubmed", "EBNA1", defaultMaxResults), []domain.Article{{PMID: "42"}}))

	src := &fakeLiterature{}
	svc := NewLiteratureService(src, persist.NewMemoryKV(), cache.New[[]domain.Article](time.Minute, 10), l2, LiteratureConfig{})

	articles, err := svc.Search(ctx, "EBNA1", 0)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "42", articles[0].PMID)
	assert.Zero(t, atomic.LoadInt32(&src.searches))
}

func TestLiteratureService_AbstractFreshness(t *testing.T) {
	ctx := context.Background()
	kv := persist.NewMemoryKV()
	src := &fakeLiterature{abstract: "Fresh text."}
	svc := newLiterature(src, kv)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	require.NoError(t, persist.SetJSON(ctx, kv, persist.GlobalScope, persist.AbstractKey("123"),
		domain.Abstract{PMID: "123", Text: "Old text.", FetchedAt: now.Add(-25 * time.Hour)}, 0))

	abs, err := svc.Abstract(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, "Fresh text.", abs.Text)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.abstracts))

	now = now.Add(time.Hour)
	abs, err = svc.Abstract(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, "Fresh text.", abs.Text)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.abstracts))
}

func TestLiteratureService_AbstractPlaceholder(t *testing.T) {
	svc := newLiterature(&fakeLiterature{}, persist.NewMemoryKV())

	abs, err := svc.Abstract(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, NoAbstract, abs.Text)

	_, err = svc.Abstract(context.Background(), "12a")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pmid", verr.Field)
}

func TestCompoundService_SimilarThreshold(t *testing.T) {
	src := &fakeCompounds{}
	svc := newCompounds(src)
	ctx := context.Background()

	_, err := svc.Similar(ctx, "CCO", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 70, src.lastTh)

	_, err = svc.Similar(ctx, "CCO", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.similar))

	_, err = svc.Similar(ctx, "CCC", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 40, src.lastTh)

	_, err = svc.Similar(ctx, "CCC", 150, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, src.lastTh)
}

func TestSearchService_All(t *testing.T) {
	lit := &fakeLiterature{}
	comp := &fakeCompounds{}
	svc := NewSearchService(newLiterature(lit, persist.NewMemoryKV()), newCompounds(comp))

	resp, err := svc.All(context.Background(), "aspirin", 5)
	require.NoError(t, err)
	assert.Equal(t, "aspirin", resp.Query)
	assert.Len(t, resp.Articles, 1)
	assert.Len(t, resp.Compounds, 1)
	assert.Equal(t, 2, resp.Total)
}

func TestSearchService_AllFailsWhenOneSideFails(t *testing.T) {
	lit := &fakeLiterature{}
	comp := &fakeCompounds{err: errors.New("chembl down")}
	svc := NewSearchService(newLiterature(lit, persist.NewMemoryKV()), newCompounds(comp))

	_, err := svc.All(context.Background(), "aspirin", 5)
	assert.EqualError(t, err, "chembl down")
}
