package grouper

import (
	"context"
	"testing"
)

// fakeKeywordCache is an in-memory KeywordCache for exercising
// cachedTokenize's hit/miss/write paths without a Redis dependency.
type fakeKeywordCache struct {
	store map[string][]string
	gets  int
	sets  int
}

func newFakeKeywordCache() *fakeKeywordCache {
	return &fakeKeywordCache{store: make(map[string][]string)}
}

func (c *fakeKeywordCache) GetKeywords(ctx context.Context, key string) ([]string, bool) {
	c.gets++
	kws, ok := c.store[key]
	return kws, ok
}

func (c *fakeKeywordCache) SetKeywords(ctx context.Context, key string, keywords []string) {
	c.sets++
	c.store[key] = keywords
}

func TestCachedTokenizeMissesThenHits(t *testing.T) {
	cache := newFakeKeywordCache()
	ctx := context.Background()

	first := cachedTokenize(ctx, cache, "proposal:1", "Raise the debt ceiling")
	if cache.gets != 1 || cache.sets != 1 {
		t.Fatalf("expected one get and one set on a miss, got gets=%d sets=%d", cache.gets, cache.sets)
	}

	second := cachedTokenize(ctx, cache, "proposal:1", "this text is ignored on a hit")
	if cache.gets != 2 || cache.sets != 1 {
		t.Fatalf("expected a second get with no extra set on a hit, got gets=%d sets=%d", cache.gets, cache.sets)
	}
	if len(first) != len(second) {
		t.Fatalf("expected cached keyword set to match the original tokenization")
	}
}

func TestCachedTokenizeNilCacheAlwaysTokenizes(t *testing.T) {
	got := cachedTokenize(context.Background(), nil, "proposal:1", "Raise the debt ceiling")
	want := tokenize("Raise the debt ceiling")
	if len(got) != len(want) {
		t.Fatalf("expected nil cache to fall back to plain tokenize, got %v want %v", got, want)
	}
}

func TestTitleJaccardIdenticalTitles(t *testing.T) {
	if got := titleJaccard("Raise the debt ceiling", "Raise the debt ceiling"); got != 1 {
		t.Fatalf("expected 1.0 for identical titles, got %f", got)
	}
}

func TestTitleJaccardDisjointTitles(t *testing.T) {
	if got := titleJaccard("Raise the debt ceiling", "Elect new council member"); got != 0 {
		t.Fatalf("expected 0 for disjoint titles, got %f", got)
	}
}

func TestTitleJaccardEmptyIsZero(t *testing.T) {
	if got := titleJaccard("", "anything"); got != 0 {
		t.Fatalf("expected 0 for empty input, got %f", got)
	}
}

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	v := []float64{1, 2, 3}
	if got := cosineSimilarity(v, v); got < 0.999 {
		t.Fatalf("expected ~1.0 for identical vectors, got %f", got)
	}
}

func TestCosineSimilarityOrthogonalVectors(t *testing.T) {
	if got := cosineSimilarity([]float64{1, 0}, []float64{0, 1}); got != 0 {
		t.Fatalf("expected 0 for orthogonal vectors, got %f", got)
	}
}

func TestDiscussionURLMatchBySlug(t *testing.T) {
	if !discussionURLMatch("https://forum.example.org/t/raise-cap/123", "raise-cap", "") {
		t.Fatal("expected slug substring match")
	}
}

func TestDiscussionURLMatchNoMatch(t *testing.T) {
	if discussionURLMatch("https://forum.example.org/t/unrelated/999", "raise-cap", "123") {
		t.Fatal("did not expect a match")
	}
}
