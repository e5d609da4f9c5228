package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mindprint-labs/mindprint/internal/cache"
	"github.com/mindprint-labs/mindprint/internal/domain"
)

func analysisAt(id, ownerID string, createdAt time.Time) domain.Analysis {
	return domain.Analysis{ID: id, OwnerID: ownerID, CreatedAt: createdAt}
}

func newTestHistory(st domain.AnalysisStore, cooldown time.Duration) (*HistoryService, *Fetcher) {
	f := NewFetcher(st, cache.New(0), zap.NewNop())
	f.SetRetryPolicy(fastPolicy())
	return NewHistoryService(f, cooldown, zap.NewNop()), f
}

func TestMerge_DedupesAndSortsNewestFirst(t *testing.T) {
	h, _ := newTestHistory(newMockStore(), time.Hour)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	h.Merge("owner-1", []domain.Analysis{
		analysisAt("a", "owner-1", base),
		analysisAt("b", "owner-1", base.Add(time.Hour)),
	})
	// Same id again with updated content plus one new entry.
	updated := analysisAt("a", "owner-1", base)
	updated.IntelligenceScore = 91
	h.Merge("owner-1", []domain.Analysis{
		updated,
		analysisAt("c", "owner-1", base.Add(2*time.Hour)),
	})

	entries := h.History("owner-1")
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries after dedupe, got %d", len(entries))
	}
	if entries[0].ID != "c" || entries[1].ID != "b" || entries[2].ID != "a" {
		t.Fatalf("expected newest-first order c,b,a, got %s,%s,%s", entries[0].ID, entries[1].ID, entries[2].ID)
	}
	if entries[2].IntelligenceScore != 91 {
		t.Fatalf("expected replaced entry to carry updated data, got %v", entries[2].IntelligenceScore)
	}
}

func TestCurrent_FallsBackToNewest(t *testing.T) {
	h, _ := newTestHistory(newMockStore(), time.Hour)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	h.Merge("owner-1", []domain.Analysis{
		analysisAt("old", "owner-1", base),
		analysisAt("new", "owner-1", base.Add(time.Hour)),
	})

	current, ok := h.Current("owner-1")
	if !ok {
		t.Fatal("expected a current analysis")
	}
	if current.ID != "new" {
		t.Fatalf("expected newest entry as default current, got %q", current.ID)
	}
}

func TestSelect_MovesPointerOnlyForKnownID(t *testing.T) {
	h, _ := newTestHistory(newMockStore(), time.Hour)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	h.Merge("owner-1", []domain.Analysis{
		analysisAt("old", "owner-1", base),
		analysisAt("new", "owner-1", base.Add(time.Hour)),
	})

	if !h.Select("owner-1", "old") {
		t.Fatal("expected selection of known id to succeed")
	}
	current, _ := h.Current("owner-1")
	if current.ID != "old" {
		t.Fatalf("expected current to be old, got %q", current.ID)
	}

	if h.Select("owner-1", "unknown") {
		t.Fatal("expected selection of unknown id to fail")
	}
	current, _ = h.Current("owner-1")
	if current.ID != "old" {
		t.Fatalf("expected pointer untouched after failed select, got %q", current.ID)
	}
}

func TestCurrent_SeesUpdatedDataAfterMerge(t *testing.T) {
	h, _ := newTestHistory(newMockStore(), time.Hour)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	h.SetCurrent("owner-1", analysisAt("a", "owner-1", base))

	refreshed := analysisAt("a", "owner-1", base)
	refreshed.EmotionalIntelligenceScore = 78
	h.Merge("owner-1", []domain.Analysis{refreshed})

	current, ok := h.Current("owner-1")
	if !ok {
		t.Fatal("expected a current analysis")
	}
	if current.EmotionalIntelligenceScore != 78 {
		t.Fatalf("expected current pointer to resolve to refreshed data, got %v", current.EmotionalIntelligenceScore)
	}
}

func TestRefresh_PopulatesHistoryFromStore(t *testing.T) {
	st := newMockStore(rowsForOwner("owner-1", 4)...)
	h, _ := newTestHistory(st, time.Hour)

	n, err := h.Refresh(context.Background(), "owner-1", false)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 merged entries, got %d", n)
	}
	if got := len(h.History("owner-1")); got != 4 {
		t.Fatalf("expected 4 entries in history, got %d", got)
	}
}

func TestRefresh_CoalescesWithinCooldown(t *testing.T) {
	st := newMockStore(rowsForOwner("owner-1", 2)...)
	h, _ := newTestHistory(st, time.Hour)

	if _, err := h.Refresh(context.Background(), "owner-1", false); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	calls := st.listByOwnerCalls

	n, err := h.Refresh(context.Background(), "owner-1", false)
	if err != nil {
		t.Fatalf("coalesced refresh should not error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected coalesced refresh to merge nothing, got %d", n)
	}
	if st.listByOwnerCalls != calls {
		t.Fatalf("expected no additional store query within cooldown, got %d -> %d", calls, st.listByOwnerCalls)
	}
}

func TestRefresh_ForceBypassesCooldown(t *testing.T) {
	st := newMockStore(rowsForOwner("owner-1", 2)...)
	h, _ := newTestHistory(st, time.Hour)

	if _, err := h.Refresh(context.Background(), "owner-1", false); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	calls := st.listByOwnerCalls

	if _, err := h.Refresh(context.Background(), "owner-1", true); err != nil {
		t.Fatalf("forced refresh failed: %v", err)
	}
	if st.listByOwnerCalls == calls {
		t.Fatal("expected forced refresh to query the store")
	}
}

func TestRefresh_FailureRetainsLastKnownHistory(t *testing.T) {
	st := newMockStore(rowsForOwner("owner-1", 3)...)
	h, _ := newTestHistory(st, time.Hour)

	if _, err := h.Refresh(context.Background(), "owner-1", true); err != nil {
		t.Fatalf("initial refresh failed: %v", err)
	}

	connErr := errors.New("connection refused")
	st.listByOwnerErr = connErr
	st.listRangeErr = connErr
	st.listIDsErr = connErr

	_, err := h.Refresh(context.Background(), "owner-1", true)
	if err == nil {
		t.Fatal("expected refresh to surface the fetch error")
	}
	if got := len(h.History("owner-1")); got != 3 {
		t.Fatalf("expected last known history retained, got %d entries", got)
	}
}

func TestRefresh_RequiresOwner(t *testing.T) {
	h, _ := newTestHistory(newMockStore(), time.Hour)
	if _, err := h.Refresh(context.Background(), "", false); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("expected ErrOwnerRequired, got %v", err)
	}
}

func TestFetchByID_MergesIntoOwnerHistory(t *testing.T) {
	st := newMockStore(rawRow("analysis-xyz789", "owner-1", "2026-01-02T10:00:00Z"))
	h, _ := newTestHistory(st, time.Hour)

	a, err := h.FetchByID(context.Background(), "analysis-xyz789")
	if err != nil {
		t.Fatalf("fetch by id failed: %v", err)
	}
	if a.OwnerID != "owner-1" {
		t.Fatalf("expected owner-1, got %q", a.OwnerID)
	}
	entries := h.History("owner-1")
	if len(entries) != 1 || entries[0].ID != "analysis-xyz789" {
		t.Fatalf("expected fetched analysis merged into owner history, got %v", entries)
	}
}

func TestReset_DropsHistoryAndCooldown(t *testing.T) {
	st := newMockStore(rowsForOwner("owner-1", 2)...)
	h, _ := newTestHistory(st, time.Hour)

	if _, err := h.Refresh(context.Background(), "owner-1", false); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	h.Reset("owner-1")

	if got := len(h.History("owner-1")); got != 0 {
		t.Fatalf("expected empty history after reset, got %d", got)
	}
	// Cooldown state is gone too, so the next refresh hits the store.
	calls := st.listByOwnerCalls
	if _, err := h.Refresh(context.Background(), "owner-1", false); err != nil {
		t.Fatalf("refresh after reset failed: %v", err)
	}
	if st.listByOwnerCalls == calls {
		t.Fatal("expected refresh after reset to query the store")
	}
}
