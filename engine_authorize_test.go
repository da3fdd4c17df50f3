package authkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scriptdeck/authkit/permission"
)

func TestAuthorizeGrantedAndDenied(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	ctx := context.Background()
	result, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// member holds doc.read only.
	if _, err := engine.Authorize(ctx, result.AccessToken, "doc.read"); err != nil {
		t.Fatalf("expected doc.read granted: %v", err)
	}
	if _, err := engine.Authorize(ctx, result.AccessToken, "doc.write"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for doc.write, got %v", err)
	}
}

func TestAuthorizeUnknownPermission(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	ctx := context.Background()
	result, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	_, err = engine.Authorize(ctx, result.AccessToken, "doc.shred")
	if !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
}

func TestAuthorizeDenyOverrideBeatsGrant(t *testing.T) {
	engine, provider, _, done := newTestEngine(t, testConfig(t))
	defer done()

	readMask, err := engine.registry.MaskOf("doc.read")
	if err != nil {
		t.Fatalf("mask: %v", err)
	}
	writeMask, err := engine.registry.MaskOf("doc.write")
	if err != nil {
		t.Fatalf("mask: %v", err)
	}

	// Grant doc.write on top of the member role, deny the role's own
	// doc.read. Deny wins over both sources.
	provider.mu.Lock()
	provider.byID["p1"].Overrides = permission.Overrides{
		Grant: writeMask.Union(readMask),
		Deny:  readMask,
	}
	provider.mu.Unlock()

	ctx := context.Background()
	result, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := engine.Authorize(ctx, result.AccessToken, "doc.write"); err != nil {
		t.Fatalf("expected granted override to pass: %v", err)
	}
	if _, err := engine.Authorize(ctx, result.AccessToken, "doc.read"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected deny override to win, got %v", err)
	}
}

func TestAuthorizeRootBitBypass(t *testing.T) {
	engine, provider, _, done := newTestEngine(t, testConfig(t))
	defer done()

	rootBit, ok := engine.registry.RootBit()
	if !ok {
		t.Fatal("expected a reserved root bit")
	}
	rootMask, err := permission.Mask{}.Set(rootBit)
	if err != nil {
		t.Fatalf("set root bit: %v", err)
	}

	provider.mu.Lock()
	provider.byID["p1"].Overrides = permission.Overrides{Grant: rootMask}
	provider.mu.Unlock()

	ctx := context.Background()
	result, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// Root bypasses per-permission checks, including ones the role lacks.
	for _, name := range []string{"doc.read", "doc.write", "admin.panel"} {
		if _, err := engine.Authorize(ctx, result.AccessToken, name); err != nil {
			t.Fatalf("root bypass failed for %s: %v", name, err)
		}
	}
}

func TestValidateAccessRejectsTamperedToken(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	ctx := context.Background()
	result, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	tampered := result.AccessToken[:len(result.AccessToken)-2] + "xx"
	if _, err := engine.ValidateAccess(ctx, tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}

	if _, err := engine.ValidateAccess(ctx, "not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestValidateAccessExpiredToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWT.AccessTTL = time.Second
	cfg.JWT.Leeway = 0
	engine, _, _, done := newTestEngine(t, cfg)
	defer done()

	ctx := context.Background()
	result, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	if _, err := engine.ValidateAccess(ctx, result.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateAccessNoStoreRoundTrip(t *testing.T) {
	engine, _, mr, done := newTestEngine(t, testConfig(t))
	defer done()

	ctx := context.Background()
	result, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// Validation is pure token verification; a dead backend must not
	// affect it.
	mr.Close()

	identity, err := engine.ValidateAccess(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("validate with backend down: %v", err)
	}
	if identity.PrincipalID != "p1" || identity.SessionID != result.SessionID {
		t.Fatal("identity does not match issuance")
	}
	if identity.Role != "member" {
		t.Fatalf("expected member role, got %q", identity.Role)
	}
	if identity.ExpiresAt.Before(time.Now()) {
		t.Fatal("expiry already in the past")
	}
}
