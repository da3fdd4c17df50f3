package authkit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func lockoutTestConfig(t *testing.T) Config {
	cfg := testConfig(t)
	cfg.Lockout.Enabled = true
	cfg.Lockout.Threshold = 5
	cfg.Lockout.Window = 15 * time.Minute
	cfg.Lockout.LockDuration = 30 * time.Minute
	return cfg
}

func TestLockoutTripsAtThreshold(t *testing.T) {
	engine, _, _, done := newTestEngine(t, lockoutTestConfig(t))
	defer done()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := engine.Login(ctx, testIdentifier, "wrong-password-123"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	// Correct password is refused while the lock holds.
	_, err := engine.Login(ctx, testIdentifier, testPassword)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked after threshold, got %v", err)
	}
}

func TestLockoutExpiresAfterDuration(t *testing.T) {
	engine, _, mr, done := newTestEngine(t, lockoutTestConfig(t))
	defer done()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = engine.Login(ctx, testIdentifier, "wrong-password-123")
	}
	if _, err := engine.Login(ctx, testIdentifier, testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected lock, got %v", err)
	}

	mr.FastForward(31 * time.Minute)

	if _, err := engine.Login(ctx, testIdentifier, testPassword); err != nil {
		t.Fatalf("expected login to succeed after lock expiry, got %v", err)
	}
}

func TestLockoutCounterDoesNotTripBelowThreshold(t *testing.T) {
	engine, _, _, done := newTestEngine(t, lockoutTestConfig(t))
	defer done()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, _ = engine.Login(ctx, testIdentifier, "wrong-password-123")
	}

	if _, err := engine.Login(ctx, testIdentifier, testPassword); err != nil {
		t.Fatalf("expected success on 5th attempt with correct password, got %v", err)
	}
}

func TestLockoutResetOnlyOnFullSuccess(t *testing.T) {
	engine, _, _, done := newTestEngine(t, lockoutTestConfig(t))
	defer done()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, _ = engine.Login(ctx, testIdentifier, "wrong-password-123")
	}

	// Full-factor success clears the streak.
	if _, err := engine.Login(ctx, testIdentifier, testPassword); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// Four more failures must not trip the lock against a fresh counter.
	for i := 0; i < 4; i++ {
		_, _ = engine.Login(ctx, testIdentifier, "wrong-password-123")
	}
	if _, err := engine.Login(ctx, testIdentifier, testPassword); err != nil {
		t.Fatalf("expected fresh counter after success, got %v", err)
	}
}

func TestLockoutFailsClosedWhenBackendDown(t *testing.T) {
	engine, _, mr, done := newTestEngine(t, lockoutTestConfig(t))
	defer done()

	mr.Close()

	_, err := engine.Login(context.Background(), testIdentifier, testPassword)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected fail-closed ErrAccountLocked with backend down, got %v", err)
	}
}

func TestLockoutDisabledNeverLocks(t *testing.T) {
	cfg := lockoutTestConfig(t)
	cfg.Lockout.Enabled = false
	engine, _, _, done := newTestEngine(t, cfg)
	defer done()

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, _ = engine.Login(ctx, testIdentifier, "wrong-password-123")
	}
	if _, err := engine.Login(ctx, testIdentifier, testPassword); err != nil {
		t.Fatalf("expected login success with lockout disabled, got %v", err)
	}
}
