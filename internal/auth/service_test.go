package auth

import (
	"strings"
	"testing"
	"time"
)

func testConfig(ttl time.Duration) *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "conference-test",
		Audience: "conference-test",
		TTL:      ttl,
	}
}

func TestGuestTokenRoundTrip(t *testing.T) {
	svc := NewService(testConfig(time.Hour))

	token, err := svc.IssueGuestToken("Alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Name != "Alice" {
		t.Fatalf("unexpected name claim: %q", claims.Name)
	}
}

func TestGuestTokenNameConstraints(t *testing.T) {
	svc := NewService(testConfig(time.Hour))

	if _, err := svc.IssueGuestToken("   "); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName for blank name, got %v", err)
	}
	if _, err := svc.IssueGuestToken(strings.Repeat("x", 65)); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName for oversized name, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewService(testConfig(-time.Minute))

	token, err := svc.IssueGuestToken("Bob")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	issuer := NewService(testConfig(time.Hour))
	token, err := issuer.IssueGuestToken("Carol")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	other := testConfig(time.Hour)
	other.Secret = []byte("other-secret")
	if _, err := ValidateToken(other, token); err == nil {
		t.Fatal("expected error for token signed with a different secret")
	}
}

func TestWrongIssuerRejected(t *testing.T) {
	cfg := testConfig(time.Hour)
	token, err := GenerateToken(cfg, "Dave")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	strict := testConfig(time.Hour)
	strict.Issuer = "someone-else"
	if _, err := ValidateToken(strict, token); err == nil {
		t.Fatal("expected error for wrong issuer")
	}
}
