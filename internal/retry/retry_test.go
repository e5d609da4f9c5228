package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func captureDelays(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	t.Cleanup(func() { sleep = orig })
	return &delays
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	delays := captureDelays(t)

	calls := 0
	err := Do(context.Background(), DefaultPolicy(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if len(*delays) != 0 {
		t.Fatalf("expected no delays, got %v", *delays)
	}
}

func TestDo_ExhaustsBudgetWithIncreasingDelays(t *testing.T) {
	delays := captureDelays(t)

	p := Policy{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond, MaxJitter: 50 * time.Millisecond}
	sentinel := errors.New("store unreachable")

	calls := 0
	err := Do(context.Background(), p, func(ctx context.Context) error {
		calls++
		return sentinel
	})
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected terminal error to wrap the last cause, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected exactly 4 attempts, got %d", calls)
	}
	if len(*delays) != 3 {
		t.Fatalf("expected 3 inter-attempt delays, got %d", len(*delays))
	}
	for i := 1; i < len(*delays); i++ {
		if (*delays)[i] <= (*delays)[i-1] {
			t.Fatalf("expected strictly increasing delays, got %v", *delays)
		}
	}
}

func TestDo_StopsOnFirstSuccess(t *testing.T) {
	captureDelays(t)

	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ContextCancelAbortsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, Policy{MaxAttempts: 3, BaseDelay: time.Hour}, func(ctx context.Context) error {
		return errors.New("always")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCooldown_CoalescesWithinInterval(t *testing.T) {
	c := NewCooldown(5 * time.Second)

	if !c.Allow("refresh:user-1") {
		t.Fatal("expected first request to pass")
	}
	if c.Allow("refresh:user-1") {
		t.Fatal("expected second request within cooldown to be coalesced")
	}
	// Distinct targets are independent.
	if !c.Allow("refresh:user-2") {
		t.Fatal("expected different target to pass")
	}
}

func TestCooldown_ResetClearsTarget(t *testing.T) {
	c := NewCooldown(time.Hour)
	if !c.Allow("refresh:user-1") {
		t.Fatal("expected first request to pass")
	}
	c.Reset("refresh:user-1")
	if !c.Allow("refresh:user-1") {
		t.Fatal("expected request after reset to pass")
	}
}
