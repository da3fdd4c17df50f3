package authkit

import (
	"context"
	"errors"
	"testing"
)

const testNewPassword = "an-even-better-password-456"

func TestChangePasswordRotatesCredential(t *testing.T) {
	engine, provider, _, done := newTestEngine(t, testConfig(t))
	defer done()

	ctx := context.Background()
	if err := engine.ChangePassword(ctx, "p1", testPassword, testNewPassword); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if provider.passwordUpdates != 1 {
		t.Fatalf("expected 1 password update, got %d", provider.passwordUpdates)
	}

	if _, err := engine.Login(ctx, testIdentifier, testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := engine.Login(ctx, testIdentifier, testNewPassword); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	ctx := context.Background()
	first, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	second, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}

	if err := engine.ChangePassword(ctx, "p1", testPassword, testNewPassword); err != nil {
		t.Fatalf("change password failed: %v", err)
	}

	for _, token := range []string{first.RefreshToken, second.RefreshToken} {
		if _, err := engine.Refresh(ctx, token); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("expected refresh lineage dead after password change, got %v", err)
		}
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	err := engine.ChangePassword(context.Background(), "p1", "not-the-password", testNewPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePasswordWrongCurrentChargesLockout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lockout.Threshold = 3
	engine, _, _, done := newTestEngine(t, cfg)
	defer done()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := engine.ChangePassword(ctx, "p1", "not-the-password", testNewPassword); err == nil {
			t.Fatalf("attempt %d: expected failure", i+1)
		}
	}

	if _, err := engine.Login(ctx, testIdentifier, testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestChangePasswordPolicy(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	err := engine.ChangePassword(context.Background(), "p1", testPassword, "short")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestChangePasswordRejectsReuse(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	err := engine.ChangePassword(context.Background(), "p1", testPassword, testPassword)
	if !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected ErrPasswordReuse, got %v", err)
	}
}

func TestChangePasswordUnknownPrincipal(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	err := engine.ChangePassword(context.Background(), "nobody", testPassword, testNewPassword)
	if !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}
