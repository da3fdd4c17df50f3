package limiters

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLockout(t *testing.T, cfg LockoutConfig) (*Lockout, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLockout(client, cfg), mr
}

func TestLockoutCheckCleanPrincipalUnlocked(t *testing.T) {
	l, _ := newTestLockout(t, LockoutConfig{
		Enabled:      true,
		Threshold:    5,
		Window:       time.Minute,
		LockDuration: 30 * time.Minute,
	})

	locked, until, err := l.Check(context.Background(), "never-failed")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if locked {
		t.Fatalf("principal with no failures reported locked (until=%v)", until)
	}
	if !until.IsZero() {
		t.Fatalf("expected zero expiry for unlocked principal, got %v", until)
	}
}

func TestLockoutTripsAtThreshold(t *testing.T) {
	l, _ := newTestLockout(t, LockoutConfig{
		Enabled:      true,
		Threshold:    5,
		Window:       time.Minute,
		LockDuration: 30 * time.Minute,
	})
	ctx := context.Background()

	for i := 1; i < 5; i++ {
		count, locked, err := l.RecordFailure(ctx, "p1")
		if err != nil {
			t.Fatalf("RecordFailure %d: %v", i, err)
		}
		if locked {
			t.Fatalf("locked after %d failures", i)
		}
		if count != i {
			t.Fatalf("count = %d, want %d", count, i)
		}
	}

	count, locked, err := l.RecordFailure(ctx, "p1")
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if !locked || count != 5 {
		t.Fatalf("expected trip at 5, got count=%d locked=%v", count, locked)
	}

	isLocked, until, err := l.Check(ctx, "p1")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !isLocked {
		t.Fatal("Check must report locked after trip")
	}
	if until.Before(time.Now().Add(29 * time.Minute)) {
		t.Fatalf("lock expiry too soon: %v", until)
	}

	// Counter resets at promotion so the next cycle starts from zero.
	n, err := l.FailureCount(ctx, "p1")
	if err != nil || n != 0 {
		t.Fatalf("failure count after trip = %d, %v", n, err)
	}
}

func TestLockoutLockExpires(t *testing.T) {
	l, mr := newTestLockout(t, LockoutConfig{
		Enabled:      true,
		Threshold:    2,
		Window:       time.Minute,
		LockDuration: 10 * time.Second,
	})
	ctx := context.Background()

	l.RecordFailure(ctx, "p1")
	l.RecordFailure(ctx, "p1")

	locked, _, err := l.Check(ctx, "p1")
	if err != nil || !locked {
		t.Fatalf("expected lock, got %v, %v", locked, err)
	}

	mr.FastForward(11 * time.Second)

	locked, _, err = l.Check(ctx, "p1")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if locked {
		t.Fatal("lock must expire after LockDuration")
	}
}

func TestLockoutWindowExpiresCounter(t *testing.T) {
	l, mr := newTestLockout(t, LockoutConfig{
		Enabled:      true,
		Threshold:    3,
		Window:       30 * time.Second,
		LockDuration: time.Hour,
	})
	ctx := context.Background()

	l.RecordFailure(ctx, "p1")
	l.RecordFailure(ctx, "p1")

	mr.FastForward(31 * time.Second)

	count, locked, err := l.RecordFailure(ctx, "p1")
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if locked || count != 1 {
		t.Fatalf("window expiry must restart counting: count=%d locked=%v", count, locked)
	}
}

func TestLockoutReset(t *testing.T) {
	l, _ := newTestLockout(t, LockoutConfig{
		Enabled:      true,
		Threshold:    2,
		Window:       time.Minute,
		LockDuration: time.Hour,
	})
	ctx := context.Background()

	l.RecordFailure(ctx, "p1")
	l.RecordFailure(ctx, "p1")

	if err := l.Reset(ctx, "p1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	locked, _, err := l.Check(ctx, "p1")
	if err != nil || locked {
		t.Fatalf("expected unlock after reset, got %v, %v", locked, err)
	}
	n, _ := l.FailureCount(ctx, "p1")
	if n != 0 {
		t.Fatalf("failure count after reset = %d", n)
	}
}

func TestLockoutManualUnlockOnly(t *testing.T) {
	l, mr := newTestLockout(t, LockoutConfig{
		Enabled:   true,
		Threshold: 1,
		Window:    time.Minute,
		// LockDuration 0: lock never expires on its own.
	})
	ctx := context.Background()

	_, locked, err := l.RecordFailure(ctx, "p1")
	if err != nil || !locked {
		t.Fatalf("expected immediate trip: %v, %v", locked, err)
	}

	mr.FastForward(24 * time.Hour)

	isLocked, until, err := l.Check(ctx, "p1")
	if err != nil || !isLocked {
		t.Fatalf("permanent lock must persist: %v, %v", isLocked, err)
	}
	if !until.IsZero() {
		t.Fatalf("permanent lock must report zero expiry, got %v", until)
	}
}

func TestLockoutDisabledIsNoOp(t *testing.T) {
	l, _ := newTestLockout(t, LockoutConfig{Enabled: false, Threshold: 1})
	ctx := context.Background()

	count, locked, err := l.RecordFailure(ctx, "p1")
	if err != nil || locked || count != 0 {
		t.Fatalf("disabled limiter must be a no-op: %d, %v, %v", count, locked, err)
	}

	var nilLimiter *Lockout
	if _, _, err := nilLimiter.Check(ctx, "p1"); err != nil {
		t.Fatalf("nil limiter must be safe: %v", err)
	}
}

func TestLockoutCheckFailsWhenBackendDown(t *testing.T) {
	l, mr := newTestLockout(t, LockoutConfig{
		Enabled:      true,
		Threshold:    5,
		Window:       time.Minute,
		LockDuration: time.Hour,
	})
	ctx := context.Background()

	mr.Close()

	locked, _, err := l.Check(ctx, "p1")
	if err == nil {
		t.Fatal("expected backend error")
	}
	if !locked {
		t.Fatal("backend failure must report locked so callers fail closed")
	}
}
