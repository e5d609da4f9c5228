package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mindprint-labs/mindprint/internal/cache"
	"github.com/mindprint-labs/mindprint/internal/domain"
	"github.com/mindprint-labs/mindprint/internal/normalize"
	"github.com/mindprint-labs/mindprint/internal/retry"
	"github.com/mindprint-labs/mindprint/internal/store"
)

var (
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrOwnerRequired    = errors.New("owner id is required")
	ErrAnalysisIDEmpty  = errors.New("analysis id is required")
)

const (
	// DefaultBulkLimit caps the direct bulk query.
	DefaultBulkLimit = 1000
	// DefaultPageSize is the range-pagination window.
	DefaultPageSize = 50
	// DefaultMaxPages bounds pagination against a store that keeps
	// returning full pages.
	DefaultMaxPages = 40
	// DefaultCallTimeout is the wall-clock ceiling on any single store
	// call; exceeding it counts as a retryable failure.
	DefaultCallTimeout = 10 * time.Second

	publicScanLimit = 100
)

// Fetcher executes the ordered chain of query strategies against the store
// until one yields usable data. Every raw row it returns has passed through
// the cache (write-through) and the normalizer.
type Fetcher struct {
	store  domain.AnalysisStore
	cache  *cache.Cache
	logger *zap.Logger

	policy      retry.Policy
	bulkLimit   int
	pageSize    int
	maxPages    int
	callTimeout time.Duration
}

func NewFetcher(st domain.AnalysisStore, c *cache.Cache, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		store:       st,
		cache:       c,
		logger:      logger,
		policy:      retry.DefaultPolicy(),
		bulkLimit:   DefaultBulkLimit,
		pageSize:    DefaultPageSize,
		maxPages:    DefaultMaxPages,
		callTimeout: DefaultCallTimeout,
	}
}

func (f *Fetcher) SetRetryPolicy(p retry.Policy) { f.policy = p }

func (f *Fetcher) SetPageSize(n int) {
	if n > 0 {
		f.pageSize = n
	}
}

func (f *Fetcher) SetMaxPages(n int) {
	if n > 0 {
		f.maxPages = n
	}
}

func (f *Fetcher) SetCallTimeout(d time.Duration) {
	if d > 0 {
		f.callTimeout = d
	}
}

// FetchResult reports what a FetchAll run produced. Promised carries the
// authoritative row count when the counted-pagination strategy ran, so
// silent under-fetching is detectable instead of passing for "no data".
type FetchResult struct {
	Analyses  []domain.Analysis
	Strategy  string
	Promised  int
	Retrieved int
}

// Shortfall reports whether the store promised more rows than were
// actually retrieved.
func (r *FetchResult) Shortfall() bool {
	return r.Promised > r.Retrieved
}

type listStrategy struct {
	name string
	run  func(ctx context.Context, ownerID string) ([]domain.RawRecord, int, error)
}

// FetchAll runs the strategy chain for one owner's full history. An empty
// history is a valid terminal state and returns an empty result; a chain
// where every strategy failed returns the last underlying error so the
// caller can retry or report.
func (f *Fetcher) FetchAll(ctx context.Context, ownerID string) (*FetchResult, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	f.cache.Sweep()

	strategies := []listStrategy{
		{"bulk", f.listBulk},
		{"counted_pages", f.listPaged},
		{"minimal_projection", f.listMinimal},
	}

	var lastErr error
	completed := false
	for _, s := range strategies {
		records, promised, err := s.run(ctx, ownerID)
		if err != nil {
			lastErr = err
			f.logger.Warn("fetch strategy failed",
				zap.String("strategy", s.name),
				zap.String("owner_id", ownerID),
				zap.Error(err))
			continue
		}
		completed = true
		if len(records) == 0 {
			continue
		}

		result := &FetchResult{
			Analyses:  f.absorb(records),
			Strategy:  s.name,
			Promised:  promised,
			Retrieved: len(records),
		}
		if result.Shortfall() {
			f.logger.Warn("store returned fewer rows than it counted",
				zap.String("owner_id", ownerID),
				zap.Int("promised", result.Promised),
				zap.Int("retrieved", result.Retrieved))
		}
		f.logger.Info("history fetched",
			zap.String("strategy", s.name),
			zap.String("owner_id", ownerID),
			zap.Int("count", result.Retrieved))
		return result, nil
	}

	if !completed {
		return nil, fmt.Errorf("fetch history for owner %s: %w", ownerID, lastErr)
	}
	return &FetchResult{Analyses: []domain.Analysis{}}, nil
}

func (f *Fetcher) listBulk(ctx context.Context, ownerID string) ([]domain.RawRecord, int, error) {
	var records []domain.RawRecord
	err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, f.callTimeout)
		defer cancel()
		var err error
		records, err = f.store.ListByOwner(cctx, ownerID, f.bulkLimit)
		return err
	})
	return records, 0, err
}

// listPaged asks the store how many rows the owner has, then walks
// fixed-size windows until a short page or the page ceiling.
func (f *Fetcher) listPaged(ctx context.Context, ownerID string) ([]domain.RawRecord, int, error) {
	var count int
	err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, f.callTimeout)
		defer cancel()
		var err error
		count, err = f.store.CountByOwner(cctx, ownerID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return nil, 0, nil
	}

	var records []domain.RawRecord
	for page := 0; page < f.maxPages; page++ {
		var batch []domain.RawRecord
		offset := page * f.pageSize
		err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
			cctx, cancel := context.WithTimeout(ctx, f.callTimeout)
			defer cancel()
			var err error
			batch, err = f.store.ListRange(cctx, ownerID, offset, f.pageSize)
			return err
		})
		if err != nil {
			return nil, count, err
		}
		records = append(records, batch...)
		if len(batch) < f.pageSize {
			return records, count, nil
		}
	}
	f.logger.Warn("pagination hit page ceiling",
		zap.String("owner_id", ownerID),
		zap.Int("max_pages", f.maxPages),
		zap.Int("retrieved", len(records)))
	return records, count, nil
}

// listMinimal isolates payload-size failures: fetch the cheap projection
// first, then re-fetch full rows per discovered id.
func (f *Fetcher) listMinimal(ctx context.Context, ownerID string) ([]domain.RawRecord, int, error) {
	var stubs []domain.RawRecord
	err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, f.callTimeout)
		defer cancel()
		var err error
		stubs, err = f.store.ListIDsByOwner(cctx, ownerID, f.bulkLimit)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	records := make([]domain.RawRecord, 0, len(stubs))
	for i := range stubs {
		rec, err := f.getOne(ctx, "minimal_refetch", func(ctx context.Context) (*domain.RawRecord, error) {
			return f.store.GetByID(ctx, stubs[i].ID)
		})
		if err != nil {
			return nil, len(stubs), err
		}
		if rec == nil {
			// Row vanished between projection and re-fetch; keep the stub so
			// the history still shows the entry existed.
			records = append(records, stubs[i])
			continue
		}
		records = append(records, *rec)
	}
	return records, len(stubs), nil
}

// FetchOne resolves a single analysis by identifier: cache, exact id,
// source-assessment link, a broad unauthenticated scan for an already-known
// id (shared links), and finally an id-suffix match. A clean miss on every
// strategy returns ErrAnalysisNotFound; a transport failure with no hit
// propagates instead.
func (f *Fetcher) FetchOne(ctx context.Context, id string) (*domain.Analysis, error) {
	if id == "" {
		return nil, ErrAnalysisIDEmpty
	}

	f.cache.Sweep()
	if a, ok := f.cache.Get(id); ok {
		return &a, nil
	}

	strategies := []struct {
		name string
		run  func(ctx context.Context) (*domain.RawRecord, error)
	}{
		{"exact_id", func(ctx context.Context) (*domain.RawRecord, error) {
			return f.getOne(ctx, "exact_id", func(ctx context.Context) (*domain.RawRecord, error) {
				return f.store.GetByID(ctx, id)
			})
		}},
		{"source_assessment", func(ctx context.Context) (*domain.RawRecord, error) {
			return f.getOne(ctx, "source_assessment", func(ctx context.Context) (*domain.RawRecord, error) {
				return f.store.GetBySourceAssessment(ctx, id)
			})
		}},
		{"public_scan", f.publicScan(id)},
		{"id_suffix", func(ctx context.Context) (*domain.RawRecord, error) {
			return f.getOne(ctx, "id_suffix", func(ctx context.Context) (*domain.RawRecord, error) {
				return f.store.FindByIDSuffix(ctx, id)
			})
		}},
	}

	var lastErr error
	for _, s := range strategies {
		rec, err := s.run(ctx)
		if err != nil {
			lastErr = err
			f.logger.Warn("lookup strategy failed",
				zap.String("strategy", s.name),
				zap.String("analysis_id", id),
				zap.Error(err))
			continue
		}
		if rec == nil {
			continue
		}
		a := normalize.Record(rec)
		f.cache.Put(a.ID, a)
		f.logger.Info("analysis located",
			zap.String("strategy", s.name),
			zap.String("requested_id", id),
			zap.String("analysis_id", a.ID))
		return &a, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("fetch analysis %s: %w", id, lastErr)
	}
	return nil, ErrAnalysisNotFound
}

// publicScan recovers a record whose identifier is already known from the
// navigation context, via the broad ownerless query. It never reconstructs
// a history.
func (f *Fetcher) publicScan(id string) func(ctx context.Context) (*domain.RawRecord, error) {
	return func(ctx context.Context) (*domain.RawRecord, error) {
		var records []domain.RawRecord
		err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
			cctx, cancel := context.WithTimeout(ctx, f.callTimeout)
			defer cancel()
			var err error
			records, err = f.store.ListRecent(cctx, publicScanLimit)
			return err
		})
		if err != nil {
			return nil, err
		}
		for i := range records {
			if records[i].ID == id {
				return &records[i], nil
			}
		}
		return nil, nil
	}
}

// getOne runs a single-row lookup under the retry policy. A store
// not-found is a definitive miss, not a retryable failure: it returns
// (nil, nil).
func (f *Fetcher) getOne(ctx context.Context, name string, fn func(ctx context.Context) (*domain.RawRecord, error)) (*domain.RawRecord, error) {
	var rec *domain.RawRecord
	err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, f.callTimeout)
		defer cancel()
		r, err := fn(cctx)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				rec = nil
				return nil
			}
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s lookup: %w", name, err)
	}
	return rec, nil
}

// absorb normalizes raw rows and writes them through the cache.
func (f *Fetcher) absorb(records []domain.RawRecord) []domain.Analysis {
	analyses := make([]domain.Analysis, 0, len(records))
	for i := range records {
		a := normalize.Record(&records[i])
		f.cache.Put(a.ID, a)
		analyses = append(analyses, a)
	}
	return analyses
}
