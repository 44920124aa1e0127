package cache

import (
	"context"
	"testing"
	"time"
)

func TestNewRejectsInvalidURL(t *testing.T) {
	if _, err := New("not-a-redis-url", 0); err == nil {
		t.Fatal("expected error for an unparseable redis URL")
	}
}

func TestNewRejectsUnreachableHost(t *testing.T) {
	// Port 1 is reserved and nothing will ever answer there, so this
	// exercises the ping-on-connect failure path without a real server.
	if _, err := New("redis://127.0.0.1:1/0", time.Second); err == nil {
		t.Fatal("expected error connecting to an unreachable host")
	}
}

func TestNilCacheGetIsAlwaysMiss(t *testing.T) {
	var c *KeywordCache
	if kws, ok := c.GetKeywords(context.Background(), "k"); ok || kws != nil {
		t.Fatalf("expected a nil cache to always miss, got (%v, %v)", kws, ok)
	}
}

func TestNilCacheSetIsNoop(t *testing.T) {
	var c *KeywordCache
	// Must not panic.
	c.SetKeywords(context.Background(), "k", []string{"a", "b"})
}

func TestNilCacheCloseIsNoop(t *testing.T) {
	var c *KeywordCache
	if err := c.Close(); err != nil {
		t.Fatalf("expected nil cache Close to be a no-op, got %v", err)
	}
}

func TestCacheKeyIsNamespaced(t *testing.T) {
	got := cacheKey("proposal:1")
	if got == "proposal:1" {
		t.Fatal("expected cacheKey to namespace the raw key")
	}
}
