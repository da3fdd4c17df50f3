package authkit

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubBroker struct {
	identities map[string]*FederatedIdentity
}

func (b *stubBroker) ExchangeCode(_ context.Context, provider, code string) (*FederatedIdentity, error) {
	identity, ok := b.identities[provider+"/"+code]
	if !ok {
		return nil, fmt.Errorf("code rejected by %s", provider)
	}
	return identity, nil
}

func TestCreateAccountAndLogin(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	ctx := context.Background()
	record, err := engine.CreateAccount(ctx, "bob@example.com", "a-perfectly-fine-password", "editor")
	if err != nil {
		t.Fatalf("create account failed: %v", err)
	}
	if record.PrincipalID == "" {
		t.Fatal("expected a generated principal id")
	}
	if record.Status != StatusActive {
		t.Fatalf("expected active status, got %v", record.Status)
	}
	if record.PasswordHash == "a-perfectly-fine-password" {
		t.Fatal("password stored in the clear")
	}

	result, err := engine.Login(ctx, "bob@example.com", "a-perfectly-fine-password")
	if err != nil {
		t.Fatalf("login as new account failed: %v", err)
	}

	identity, err := engine.ValidateAccess(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if identity.Role != "editor" {
		t.Fatalf("expected editor role in token, got %q", identity.Role)
	}
}

func TestCreateAccountDuplicateIdentifier(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	_, err := engine.CreateAccount(context.Background(), testIdentifier, "a-perfectly-fine-password", "member")
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestCreateAccountPasswordPolicy(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	_, err := engine.CreateAccount(context.Background(), "bob@example.com", "short", "member")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestCreateAccountUnknownRole(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	_, err := engine.CreateAccount(context.Background(), "bob@example.com", "a-perfectly-fine-password", "warlock")
	if !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
}

func TestDisableAccountRevokesSessions(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	ctx := context.Background()
	result, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := engine.DisableAccount(ctx, "p1"); err != nil {
		t.Fatalf("disable failed: %v", err)
	}

	if _, err := engine.Login(ctx, testIdentifier, testPassword); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
	if _, err := engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected revoked refresh lineage, got %v", err)
	}
}

func TestLoginWithIdentityLinked(t *testing.T) {
	engine, provider, _, done := newTestEngine(t, testConfig(t))
	defer done()

	engine.broker = &stubBroker{identities: map[string]*FederatedIdentity{
		"acme/good-code": {Provider: "acme", Subject: "sub-1", Email: testIdentifier},
	}}
	provider.linkFederation("acme", "sub-1", "p1")

	ctx := context.Background()
	result, err := engine.LoginWithIdentity(ctx, "acme", "good-code")
	if err != nil {
		t.Fatalf("federated login failed: %v", err)
	}
	if result.MFARequired {
		t.Fatal("unexpected mfa challenge for unenrolled principal")
	}

	identity, err := engine.ValidateAccess(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if identity.PrincipalID != "p1" {
		t.Fatalf("expected p1, got %q", identity.PrincipalID)
	}
}

func TestLoginWithIdentityUnlinked(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	engine.broker = &stubBroker{identities: map[string]*FederatedIdentity{
		"acme/good-code": {Provider: "acme", Subject: "stranger", Email: "stranger@example.com"},
	}}

	_, err := engine.LoginWithIdentity(context.Background(), "acme", "good-code")
	if !errors.Is(err, ErrIdentityUnlinked) {
		t.Fatalf("expected ErrIdentityUnlinked, got %v", err)
	}
}

func TestLoginWithIdentityBadCode(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	engine.broker = &stubBroker{identities: map[string]*FederatedIdentity{}}

	_, err := engine.LoginWithIdentity(context.Background(), "acme", "forged")
	if !errors.Is(err, ErrIdentityCodeInvalid) {
		t.Fatalf("expected ErrIdentityCodeInvalid, got %v", err)
	}
}

func TestLoginWithIdentityNoBroker(t *testing.T) {
	engine, _, _, done := newTestEngine(t, testConfig(t))
	defer done()

	_, err := engine.LoginWithIdentity(context.Background(), "acme", "good-code")
	if !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady without a broker, got %v", err)
	}
}

func TestLoginWithIdentityStillGatesOnTOTP(t *testing.T) {
	engine, provider, _, done := newTestEngine(t, testConfig(t))
	defer done()

	setup, _ := enrollTOTP(t, engine, "p1")

	engine.broker = &stubBroker{identities: map[string]*FederatedIdentity{
		"acme/good-code": {Provider: "acme", Subject: "sub-1", Email: testIdentifier},
	}}
	provider.linkFederation("acme", "sub-1", "p1")

	ctx := context.Background()
	result, err := engine.LoginWithIdentity(ctx, "acme", "good-code")
	if err != nil {
		t.Fatalf("federated login failed: %v", err)
	}
	if !result.MFARequired {
		t.Fatal("expected mfa challenge for enrolled principal")
	}

	final, err := engine.ConfirmLoginMFA(ctx, result.ChallengeToken, totpCodeAt(t, engine.config.TOTP, setup.SecretBase32, 1))
	if err != nil {
		t.Fatalf("confirm mfa failed: %v", err)
	}
	if final.AccessToken == "" {
		t.Fatal("expected access token after mfa confirmation")
	}
}
