package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mindprint-labs/mindprint/internal/cache"
	"github.com/mindprint-labs/mindprint/internal/domain"
	"github.com/mindprint-labs/mindprint/internal/retry"
	"github.com/mindprint-labs/mindprint/internal/store"
)

// mockAnalysisStore serves canned rows and counts calls so tests can assert
// which strategies ran.
type mockAnalysisStore struct {
	records []domain.RawRecord

	listByOwnerErr error
	listRangeErr   error
	listIDsErr     error
	getByIDErr     error
	bySourceErr    error
	bySuffixErr    error
	listRecentErr  error
	similarErr     error

	listByOwnerCalls int
	countCalls       int
	listRangeCalls   int
	listIDsCalls     int
	getByIDCalls     int
	bySourceCalls    int
	bySuffixCalls    int
	listRecentCalls  int

	inserted   []domain.Analysis
	embeddings map[string][]float32
	similar    []domain.SimilarRecord
}

func newMockStore(records ...domain.RawRecord) *mockAnalysisStore {
	return &mockAnalysisStore{records: records, embeddings: make(map[string][]float32)}
}

func (m *mockAnalysisStore) Insert(ctx context.Context, a *domain.Analysis) error {
	m.inserted = append(m.inserted, *a)
	return nil
}

func (m *mockAnalysisStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.RawRecord, error) {
	m.listByOwnerCalls++
	if m.listByOwnerErr != nil {
		return nil, m.listByOwnerErr
	}
	return m.ownedBy(ownerID), nil
}

func (m *mockAnalysisStore) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	m.countCalls++
	return len(m.ownedBy(ownerID)), nil
}

func (m *mockAnalysisStore) ListRange(ctx context.Context, ownerID string, offset, pageSize int) ([]domain.RawRecord, error) {
	m.listRangeCalls++
	if m.listRangeErr != nil {
		return nil, m.listRangeErr
	}
	owned := m.ownedBy(ownerID)
	if offset >= len(owned) {
		return nil, nil
	}
	end := offset + pageSize
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], nil
}

func (m *mockAnalysisStore) ListIDsByOwner(ctx context.Context, ownerID string, limit int) ([]domain.RawRecord, error) {
	m.listIDsCalls++
	if m.listIDsErr != nil {
		return nil, m.listIDsErr
	}
	var stubs []domain.RawRecord
	for _, r := range m.ownedBy(ownerID) {
		stubs = append(stubs, domain.RawRecord{ID: r.ID, OwnerID: r.OwnerID, CreatedAt: r.CreatedAt})
	}
	return stubs, nil
}

func (m *mockAnalysisStore) GetByID(ctx context.Context, id string) (*domain.RawRecord, error) {
	m.getByIDCalls++
	if m.getByIDErr != nil {
		return nil, m.getByIDErr
	}
	for i := range m.records {
		if m.records[i].ID == id {
			return &m.records[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockAnalysisStore) GetBySourceAssessment(ctx context.Context, assessmentID string) (*domain.RawRecord, error) {
	m.bySourceCalls++
	if m.bySourceErr != nil {
		return nil, m.bySourceErr
	}
	for i := range m.records {
		if m.records[i].SourceAssessmentID != nil && *m.records[i].SourceAssessmentID == assessmentID {
			return &m.records[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockAnalysisStore) FindByIDSuffix(ctx context.Context, suffix string) (*domain.RawRecord, error) {
	m.bySuffixCalls++
	if m.bySuffixErr != nil {
		return nil, m.bySuffixErr
	}
	for i := range m.records {
		id := m.records[i].ID
		if len(id) >= len(suffix) && id[len(id)-len(suffix):] == suffix {
			return &m.records[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockAnalysisStore) ListRecent(ctx context.Context, limit int) ([]domain.RawRecord, error) {
	m.listRecentCalls++
	if m.listRecentErr != nil {
		return nil, m.listRecentErr
	}
	if len(m.records) > limit {
		return m.records[:limit], nil
	}
	return m.records, nil
}

func (m *mockAnalysisStore) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	m.embeddings[id] = embedding
	return nil
}

func (m *mockAnalysisStore) FindSimilarTo(ctx context.Context, id string, limit int) ([]domain.SimilarRecord, error) {
	if m.similarErr != nil {
		return nil, m.similarErr
	}
	return m.similar, nil
}

func (m *mockAnalysisStore) ownedBy(ownerID string) []domain.RawRecord {
	var owned []domain.RawRecord
	for _, r := range m.records {
		if r.OwnerID != nil && *r.OwnerID == ownerID {
			owned = append(owned, r)
		}
	}
	return owned
}

func rawRow(id, ownerID, createdAt string) domain.RawRecord {
	return domain.RawRecord{
		ID:        id,
		OwnerID:   &ownerID,
		CreatedAt: &createdAt,
	}
}

func rowsForOwner(ownerID string, n int) []domain.RawRecord {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rows := make([]domain.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		ts := base.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339)
		rows = append(rows, rawRow(fmt.Sprintf("analysis-%03d", i), ownerID, ts))
	}
	return rows
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, BaseDelay: time.Microsecond}
}

func newTestFetcher(st domain.AnalysisStore) *Fetcher {
	f := NewFetcher(st, cache.New(0), zap.NewNop())
	f.SetRetryPolicy(fastPolicy())
	return f
}

func TestFetchAll_BulkStrategyWins(t *testing.T) {
	st := newMockStore(rowsForOwner("owner-1", 3)...)
	f := newTestFetcher(st)

	result, err := f.FetchAll(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Strategy != "bulk" {
		t.Fatalf("expected bulk strategy, got %q", result.Strategy)
	}
	if len(result.Analyses) != 3 {
		t.Fatalf("expected 3 analyses, got %d", len(result.Analyses))
	}
	if st.countCalls != 0 || st.listRangeCalls != 0 {
		t.Fatal("expected no pagination calls when bulk succeeds")
	}
}

func TestFetchAll_FallsBackToPaginationOnBulkFailure(t *testing.T) {
	st := newMockStore(rowsForOwner("owner-1", 12)...)
	st.listByOwnerErr = errors.New("payload too large")
	f := newTestFetcher(st)
	f.SetPageSize(10)

	result, err := f.FetchAll(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("expected pagination fallback to succeed, got %v", err)
	}
	if result.Strategy != "counted_pages" {
		t.Fatalf("expected counted_pages strategy, got %q", result.Strategy)
	}
	if len(result.Analyses) != 12 {
		t.Fatalf("expected 12 analyses across pages, got %d", len(result.Analyses))
	}
	if result.Promised != 12 || result.Shortfall() {
		t.Fatalf("expected promised=12 with no shortfall, got promised=%d retrieved=%d", result.Promised, result.Retrieved)
	}
	// Pages of 10: a full page then a short one.
	if st.listRangeCalls != 2 {
		t.Fatalf("expected 2 range queries, got %d", st.listRangeCalls)
	}
}

func TestFetchAll_EmptyHistoryIsNotAnError(t *testing.T) {
	st := newMockStore()
	f := newTestFetcher(st)

	result, err := f.FetchAll(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("expected empty history to be valid, got %v", err)
	}
	if len(result.Analyses) != 0 {
		t.Fatalf("expected empty result, got %d", len(result.Analyses))
	}
}

func TestFetchAll_AllStrategiesFailPropagatesError(t *testing.T) {
	st := newMockStore(rowsForOwner("owner-1", 2)...)
	connErr := errors.New("connection refused")
	st.listByOwnerErr = connErr
	st.listRangeErr = connErr
	st.listIDsErr = connErr
	f := newTestFetcher(st)

	_, err := f.FetchAll(context.Background(), "owner-1")
	if err == nil {
		t.Fatal("expected error when every strategy fails")
	}
	if !errors.Is(err, connErr) {
		t.Fatalf("expected error to wrap the underlying cause, got %v", err)
	}
}

func TestFetchAll_RetriesBeforeGivingUpOnStrategy(t *testing.T) {
	st := newMockStore(rowsForOwner("owner-1", 1)...)
	st.listByOwnerErr = errors.New("flaky")
	f := newTestFetcher(st)

	if _, err := f.FetchAll(context.Background(), "owner-1"); err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if st.listByOwnerCalls != 2 {
		t.Fatalf("expected bulk to be retried to the attempt budget, got %d calls", st.listByOwnerCalls)
	}
}

func TestFetchOne_ExactIDHit(t *testing.T) {
	st := newMockStore(rawRow("analysis-abc123", "owner-1", "2026-01-02T10:00:00Z"))
	f := newTestFetcher(st)

	a, err := f.FetchOne(context.Background(), "analysis-abc123")
	if err != nil {
		t.Fatalf("expected hit, got %v", err)
	}
	if a.ID != "analysis-abc123" {
		t.Fatalf("expected analysis-abc123, got %q", a.ID)
	}
	if st.bySuffixCalls != 0 {
		t.Fatal("expected suffix lookup to be skipped on exact hit")
	}
}

func TestFetchOne_SuffixMatchRecoversTruncatedID(t *testing.T) {
	st := newMockStore(rawRow("analysis-abc123", "owner-1", "2026-01-02T10:00:00Z"))
	f := newTestFetcher(st)

	a, err := f.FetchOne(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("expected suffix recovery, got %v", err)
	}
	if a.ID != "analysis-abc123" {
		t.Fatalf("expected the full id back, got %q", a.ID)
	}
	if st.bySuffixCalls == 0 {
		t.Fatal("expected suffix lookup to run")
	}
}

func TestFetchOne_CleanMissReturnsNotFound(t *testing.T) {
	st := newMockStore()
	f := newTestFetcher(st)

	_, err := f.FetchOne(context.Background(), "missing")
	if !errors.Is(err, ErrAnalysisNotFound) {
		t.Fatalf("expected ErrAnalysisNotFound, got %v", err)
	}
}

func TestFetchOne_TransportErrorPropagates(t *testing.T) {
	st := newMockStore()
	connErr := errors.New("connection reset")
	st.getByIDErr = connErr
	st.bySourceErr = connErr
	st.listRecentErr = connErr
	st.bySuffixErr = connErr
	f := newTestFetcher(st)

	_, err := f.FetchOne(context.Background(), "analysis-abc123")
	if err == nil || errors.Is(err, ErrAnalysisNotFound) {
		t.Fatalf("expected a connectivity error, not a miss, got %v", err)
	}
	if !errors.Is(err, connErr) {
		t.Fatalf("expected error to wrap the underlying cause, got %v", err)
	}
}

func TestFetchOne_SecondLookupServedFromCache(t *testing.T) {
	st := newMockStore(rawRow("analysis-abc123", "owner-1", "2026-01-02T10:00:00Z"))
	f := newTestFetcher(st)

	if _, err := f.FetchOne(context.Background(), "analysis-abc123"); err != nil {
		t.Fatalf("first lookup failed: %v", err)
	}
	calls := st.getByIDCalls
	if _, err := f.FetchOne(context.Background(), "analysis-abc123"); err != nil {
		t.Fatalf("second lookup failed: %v", err)
	}
	if st.getByIDCalls != calls {
		t.Fatalf("expected cache hit, store was queried again (%d -> %d)", calls, st.getByIDCalls)
	}
}

func TestFetchAll_NormalizesEveryRow(t *testing.T) {
	st := newMockStore(rowsForOwner("owner-1", 2)...)
	f := newTestFetcher(st)

	result, err := f.FetchAll(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	for _, a := range result.Analyses {
		if len(a.Traits) == 0 {
			t.Fatalf("expected normalized analysis %s to carry at least a placeholder trait", a.ID)
		}
		if a.CreatedAt.IsZero() {
			t.Fatalf("expected normalized analysis %s to carry a timestamp", a.ID)
		}
	}
}
