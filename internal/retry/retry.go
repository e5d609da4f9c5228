// Package retry wraps fetch attempts in a single declared backoff policy so
// every call site shares the same behavior instead of nesting its own
// recovery chains.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Policy controls how Do schedules attempts.
type Policy struct {
	// MaxAttempts is the total attempt budget, including the first call.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff: the delay before attempt k
	// is BaseDelay * 2^k plus jitter.
	BaseDelay time.Duration
	// MaxJitter bounds the uniform jitter added to each delay. Keep it
	// below BaseDelay so delays stay strictly increasing.
	MaxJitter time.Duration
}

// DefaultPolicy matches the observed call sites: 3 attempts, 200ms base.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxJitter:   100 * time.Millisecond,
	}
}

// sleep is swappable so tests can record scheduled delays without waiting.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn up to p.MaxAttempts times with exponential backoff plus
// jitter between attempts. After the budget is exhausted it returns a
// terminal error wrapping the last underlying failure. Context
// cancellation aborts the wait and surfaces immediately.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p = DefaultPolicy()
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, backoff(p, attempt)); err != nil {
				return err
			}
		}
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", p.MaxAttempts, lastErr)
}

func backoff(p Policy, attempt int) time.Duration {
	d := p.BaseDelay * (1 << attempt)
	if p.MaxJitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.MaxJitter)))
	}
	return d
}

// Cooldown coalesces voluntary re-fetches for the same logical target:
// a request arriving within the interval of the previous one for that
// target becomes a no-op instead of another store query. Built on the same
// limiter the HTTP layer uses for per-IP throttling.
type Cooldown struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Allow reports whether a fetch for target may proceed now.
func (c *Cooldown) Allow(target string) bool {
	return c.limiter(target).Allow()
}

func (c *Cooldown) limiter(target string) *rate.Limiter {
	c.mu.RLock()
	l, ok := c.limiters[target]
	c.mu.RUnlock()
	if ok {
		return l
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok = c.limiters[target]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Every(c.interval), 1)
	c.limiters[target] = l
	return l
}

// Reset forgets a target so its next request is not throttled.
func (c *Cooldown) Reset(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.limiters, target)
}
