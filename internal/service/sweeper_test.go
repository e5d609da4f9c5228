package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mindprint-labs/mindprint/internal/cache"
	"github.com/mindprint-labs/mindprint/internal/domain"
)

func TestSweeper_EvictsExpiredEntries(t *testing.T) {
	c := cache.New(time.Millisecond)
	c.Put("stale", domain.Analysis{ID: "stale"})
	assert.Equal(t, 1, c.Len())

	s := NewSweeperService(c, zap.NewNop())
	s.SetInterval(5 * time.Millisecond)
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return c.Len() == 0 },
		time.Second, 10*time.Millisecond, "expected sweeper to evict the expired entry")
}

func TestSweeper_StopTerminatesCleanly(t *testing.T) {
	s := NewSweeperService(cache.New(0), zap.NewNop())
	s.SetInterval(time.Millisecond)
	s.Start()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Stop to return promptly")
	}
}
