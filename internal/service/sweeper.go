package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mindprint-labs/mindprint/internal/cache"
)

const defaultSweeperInterval = 5 * time.Minute

// SweeperService periodically evicts expired cache entries so memory does
// not grow with idle owners. Lookups already treat expired entries as
// absent; the sweeper only reclaims space.
type SweeperService struct {
	cache  *cache.Cache
	logger *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewSweeperService(c *cache.Cache, logger *zap.Logger) *SweeperService {
	return &SweeperService{
		cache:    c,
		logger:   logger,
		interval: defaultSweeperInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *SweeperService) SetInterval(d time.Duration) {
	s.interval = d
}

// Start runs the sweeper on a periodic schedule in a background goroutine.
func (s *SweeperService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("cache sweeper started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				if evicted := s.cache.Sweep(); evicted > 0 {
					s.logger.Info("evicted expired cache entries", zap.Int("count", evicted))
				}
			case <-s.stopCh:
				s.logger.Info("cache sweeper stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the sweeper.
func (s *SweeperService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}
