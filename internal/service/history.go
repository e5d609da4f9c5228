package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mindprint-labs/mindprint/internal/domain"
	"github.com/mindprint-labs/mindprint/internal/retry"
)

// DefaultRefreshCooldown bounds how often voluntary refreshes for one owner
// actually reach the store.
const DefaultRefreshCooldown = 30 * time.Second

type ownerHistory struct {
	entries   []domain.Analysis
	currentID string
	syncing   bool
}

// HistoryService owns the per-owner analysis collections and the current
// selection pointer. It is the only writer of those collections; fetched
// data enters through Merge, which dedupes by id and keeps newest-first
// order.
type HistoryService struct {
	mu       sync.Mutex
	fetcher  *Fetcher
	cooldown *retry.Cooldown
	logger   *zap.Logger
	owners   map[string]*ownerHistory
}

func NewHistoryService(fetcher *Fetcher, cooldownInterval time.Duration, logger *zap.Logger) *HistoryService {
	if cooldownInterval <= 0 {
		cooldownInterval = DefaultRefreshCooldown
	}
	return &HistoryService{
		fetcher:  fetcher,
		cooldown: retry.NewCooldown(cooldownInterval),
		logger:   logger,
		owners:   make(map[string]*ownerHistory),
	}
}

func (s *HistoryService) owner(ownerID string) *ownerHistory {
	h, ok := s.owners[ownerID]
	if !ok {
		h = &ownerHistory{}
		s.owners[ownerID] = h
	}
	return h
}

// History returns a copy of the owner's collection, newest first.
func (s *HistoryService) History(ownerID string) []domain.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.owners[ownerID]
	if !ok {
		return []domain.Analysis{}
	}
	out := make([]domain.Analysis, len(h.entries))
	copy(out, h.entries)
	return out
}

// Current returns the owner's selected analysis, falling back to the newest
// entry when no explicit selection exists or the selected entry is gone.
func (s *HistoryService) Current(ownerID string) (*domain.Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.owners[ownerID]
	if !ok || len(h.entries) == 0 {
		return nil, false
	}
	if h.currentID != "" {
		for i := range h.entries {
			if h.entries[i].ID == h.currentID {
				a := h.entries[i]
				return &a, true
			}
		}
	}
	a := h.entries[0]
	return &a, true
}

// Select moves the current pointer to the given entry. Selecting an id not
// present in the history leaves the pointer untouched.
func (s *HistoryService) Select(ownerID, analysisID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.owners[ownerID]
	if !ok {
		return false
	}
	for i := range h.entries {
		if h.entries[i].ID == analysisID {
			h.currentID = analysisID
			return true
		}
	}
	return false
}

// Merge folds fetched analyses into the owner's collection. Entries with a
// known id are replaced in place so the current selection keeps pointing at
// the freshest data; new ids are appended; the collection is re-sorted
// newest first afterwards.
func (s *HistoryService) Merge(ownerID string, analyses []domain.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeLocked(s.owner(ownerID), analyses)
}

func (s *HistoryService) mergeLocked(h *ownerHistory, analyses []domain.Analysis) {
	index := make(map[string]int, len(h.entries))
	for i := range h.entries {
		index[h.entries[i].ID] = i
	}
	for _, a := range analyses {
		if i, ok := index[a.ID]; ok {
			h.entries[i] = a
			continue
		}
		index[a.ID] = len(h.entries)
		h.entries = append(h.entries, a)
	}
	sort.SliceStable(h.entries, func(i, j int) bool {
		return h.entries[i].CreatedAt.After(h.entries[j].CreatedAt)
	})
}

// SetCurrent merges a freshly produced analysis and makes it the selection.
func (s *HistoryService) SetCurrent(ownerID string, a domain.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.owner(ownerID)
	s.mergeLocked(h, []domain.Analysis{a})
	h.currentID = a.ID
}

// Refresh re-fetches the owner's history from the store and merges it in.
// Without force, calls landing inside the cooldown window coalesce into a
// no-op; a concurrent in-flight refresh for the same owner does too. On
// fetch failure the previously merged collection is retained and the error
// is returned. It reports how many entries the merge received.
func (s *HistoryService) Refresh(ctx context.Context, ownerID string, force bool) (int, error) {
	if ownerID == "" {
		return 0, ErrOwnerRequired
	}
	if !force && !s.cooldown.Allow("refresh:"+ownerID) {
		s.logger.Debug("refresh coalesced", zap.String("owner_id", ownerID))
		return 0, nil
	}

	s.mu.Lock()
	h := s.owner(ownerID)
	if h.syncing {
		s.mu.Unlock()
		s.logger.Debug("refresh already in flight", zap.String("owner_id", ownerID))
		return 0, nil
	}
	h.syncing = true
	s.mu.Unlock()

	result, err := s.fetcher.FetchAll(ctx, ownerID)

	s.mu.Lock()
	defer s.mu.Unlock()
	h.syncing = false
	if err != nil {
		s.logger.Warn("refresh failed, keeping last known history",
			zap.String("owner_id", ownerID),
			zap.Int("retained", len(h.entries)),
			zap.Error(err))
		return 0, err
	}

	s.mergeLocked(h, result.Analyses)
	return len(result.Analyses), nil
}

// FetchByID resolves one analysis through the lookup chain and, when the
// record carries an owner, merges it into that owner's history.
func (s *HistoryService) FetchByID(ctx context.Context, id string) (*domain.Analysis, error) {
	a, err := s.fetcher.FetchOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != "" {
		s.Merge(a.OwnerID, []domain.Analysis{*a})
	}
	return a, nil
}

// Reset drops the owner's in-memory history and cooldown state.
func (s *HistoryService) Reset(ownerID string) {
	s.mu.Lock()
	delete(s.owners, ownerID)
	s.mu.Unlock()
	s.cooldown.Reset("refresh:" + ownerID)
}
