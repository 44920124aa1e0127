package grouper

import (
	"context"
	"math"
	"strings"
)

// KeywordCache is an optional, TTL-bound cache for an entity's tokenized
// keyword set, keyed by a caller-chosen id. Nil is a valid value (the
// matching pass just tokenizes on every call); a configured cache that
// misses or errors must behave identically to a nil one, per spec.md §6 —
// absence or failure never changes a match result, only whether recomputing
// the token set was necessary.
type KeywordCache interface {
	GetKeywords(ctx context.Context, key string) ([]string, bool)
	SetKeywords(ctx context.Context, key string, keywords []string)
}

// cachedTokenize returns text's tokenized keyword set, consulting cache
// first when one is configured. A miss falls back to tokenizing text
// directly and writes the result back so the next reconciliation pass
// skips the work.
func cachedTokenize(ctx context.Context, cache KeywordCache, key, text string) map[string]struct{} {
	if cache != nil {
		if kws, ok := cache.GetKeywords(ctx, key); ok {
			return tokenSet(kws)
		}
	}
	set := tokenize(text)
	if cache != nil {
		cache.SetKeywords(ctx, key, keysOf(set))
	}
	return set
}

func tokenSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func keysOf(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// tokenize lowercases and splits on non-alphanumeric runs, matching the
// crude tokenization good enough for title Jaccard similarity.
func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

// titleJaccard returns the Jaccard similarity of a's and b's token sets:
// |intersection| / |union|, 0 when both are empty.
func titleJaccard(a, b string) float64 {
	return jaccardSets(tokenize(a), tokenize(b))
}

// jaccardSets is titleJaccard's set-based core, shared with the
// cache-aware path so a cache hit skips tokenization but not the
// similarity math.
func jaccardSets(setA, setB map[string]struct{}) float64 {
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Embedder produces a semantic embedding vector for a text, e.g. a proposal
// title or topic title. Optional: when nil, the grouper skips the
// embedding-similarity signal entirely (off by default per spec.md §9).
type Embedder interface {
	Embed(text string) ([]float64, error)
}

// cosineSimilarity returns the cosine similarity of two equal-length
// vectors, 0 if either is a zero vector.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// discussionURLMatch reports whether a proposal's discussion URL references
// a forum topic, by slug or external (topic) id substring match.
func discussionURLMatch(discussionURL, topicSlug, topicExternalID string) bool {
	if discussionURL == "" {
		return false
	}
	if topicSlug != "" && strings.Contains(discussionURL, topicSlug) {
		return true
	}
	if topicExternalID != "" && strings.Contains(discussionURL, topicExternalID) {
		return true
	}
	return false
}
