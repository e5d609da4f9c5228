package cache

import (
	"testing"
	"time"

	"github.com/mindprint-labs/mindprint/internal/domain"
)

func TestCache_PutGet(t *testing.T) {
	c := New(30 * time.Minute)
	c.Put("an-1", domain.Analysis{ID: "an-1"})

	got, ok := c.Get("an-1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.ID != "an-1" {
		t.Fatalf("expected an-1, got %q", got.ID)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown id")
	}
}

func TestCache_SweepEvictsExpired(t *testing.T) {
	c := New(30 * time.Minute)

	base := time.Now()
	timeNow = func() time.Time { return base }
	defer func() { timeNow = time.Now }()

	c.Put("old", domain.Analysis{ID: "old"})

	timeNow = func() time.Time { return base.Add(20 * time.Minute) }
	c.Put("fresh", domain.Analysis{ID: "fresh"})

	timeNow = func() time.Time { return base.Add(45 * time.Minute) }
	if evicted := c.Sweep(); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}

	if _, ok := c.Get("old"); ok {
		t.Fatal("expected expired entry to be absent after sweep")
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("expected entry within TTL to survive sweep")
	}
}

func TestCache_GetTreatsExpiredAsAbsent(t *testing.T) {
	c := New(time.Minute)

	base := time.Now()
	timeNow = func() time.Time { return base }
	defer func() { timeNow = time.Now }()

	c.Put("an-1", domain.Analysis{ID: "an-1"})

	timeNow = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := c.Get("an-1"); ok {
		t.Fatal("expected expired entry to be absent even before sweep")
	}
}

func TestCache_Reset(t *testing.T) {
	c := New(time.Minute)
	c.Put("an-1", domain.Analysis{ID: "an-1"})
	c.Reset()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after reset, got %d entries", c.Len())
	}
}
