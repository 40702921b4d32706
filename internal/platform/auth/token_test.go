package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParse_RoundTrip(t *testing.T) {
	cfg := testConfig()
	now := time.Now()

	tok, exp, err := IssueToken(cfg, Identity{UserID: "u-1", Email: "a@b.co", Name: "Ana"}, now)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if got := exp.Sub(now); got != time.Hour {
		t.Errorf("expected expiry one hour after issue, got %s", got)
	}

	claims, err := ParseToken(tok, cfg, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Identity() != (Identity{UserID: "u-1", Email: "a@b.co", Name: "Ana"}) {
		t.Errorf("unexpected identity %+v", claims.Identity())
	}
	if claims.Issuer != "curakidney" {
		t.Errorf("expected issuer curakidney, got %q", claims.Issuer)
	}
}

func TestParseToken_Expired(t *testing.T) {
	cfg := testConfig()
	now := time.Now()
	tok, _, err := IssueToken(cfg, Identity{UserID: "u-1"}, now)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	_, err = ParseToken(tok, cfg, now.Add(2*time.Hour))
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_MissingExpiry(t *testing.T) {
	claims := validClaims(time.Now())
	claims.ExpiresAt = nil
	tok := createTestToken(t, claims, testSigningKey)

	_, err := ParseToken(tok, testConfig(), time.Now())
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for token without exp, got %v", err)
	}
}

func TestParseToken_MissingSubject(t *testing.T) {
	claims := validClaims(time.Now().Add(time.Hour))
	claims.Subject = ""
	tok := createTestToken(t, claims, testSigningKey)

	_, err := ParseToken(tok, testConfig(), time.Now())
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for token without sub, got %v", err)
	}
}

func TestParseToken_Malformed(t *testing.T) {
	_, err := ParseToken("not.a.jwt", testConfig(), time.Now())
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestIssueToken_RequiresKeyAndTTL(t *testing.T) {
	if _, _, err := IssueToken(JWTConfig{TTL: time.Hour}, Identity{UserID: "u"}, time.Now()); err == nil {
		t.Error("expected error for empty signing key")
	}
	if _, _, err := IssueToken(JWTConfig{SigningKey: testSigningKey}, Identity{UserID: "u"}, time.Now()); err == nil {
		t.Error("expected error for zero ttl")
	}
}
