package jwks

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testClaims() jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Issuer:    "https://auth.example.com",
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
}

func TestSignAndVerify(t *testing.T) {
	kr, err := NewEphemeralKeyring(2048)
	if err != nil {
		t.Fatalf("failed to create keyring: %v", err)
	}

	signed, kid, err := kr.Sign(testClaims())
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if kid != kr.ActiveKID() {
		t.Fatalf("expected kid %s, got %s", kr.ActiveKID(), kid)
	}

	parsed, err := jwt.Parse(signed, kr.Keyfunc)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("expected token to be valid")
	}
	if parsed.Header["kid"] != kid {
		t.Fatalf("expected kid header %s, got %v", kid, parsed.Header["kid"])
	}
	if parsed.Header["alg"] != "RS256" {
		t.Fatalf("expected RS256, got %v", parsed.Header["alg"])
	}
}

func TestRotationKeepsOldKeysVerifiable(t *testing.T) {
	kr, err := NewEphemeralKeyring(2048)
	if err != nil {
		t.Fatalf("failed to create keyring: %v", err)
	}

	signed, oldKID, err := kr.Sign(testClaims())
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	newKID, err := kr.Rotate(2048)
	if err != nil {
		t.Fatalf("failed to rotate: %v", err)
	}
	if newKID == oldKID {
		t.Fatal("rotation must mint a new kid")
	}
	if kr.ActiveKID() != newKID {
		t.Fatalf("expected active kid %s, got %s", newKID, kr.ActiveKID())
	}

	// Tokens signed before rotation still verify.
	parsed, err := jwt.Parse(signed, kr.Keyfunc)
	if err != nil || !parsed.Valid {
		t.Fatalf("pre-rotation token no longer verifies: %v", err)
	}

	// New signatures carry the new kid.
	_, kid, err := kr.Sign(testClaims())
	if err != nil {
		t.Fatalf("failed to sign after rotation: %v", err)
	}
	if kid != newKID {
		t.Fatalf("expected new signatures under %s, got %s", newKID, kid)
	}
}

func TestKeyfuncRejectsMissingKID(t *testing.T) {
	kr, err := NewEphemeralKeyring(2048)
	if err != nil {
		t.Fatalf("failed to create keyring: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, testClaims())
	// No kid header set.
	if _, err := kr.Keyfunc(token); err == nil {
		t.Fatal("expected error for missing kid")
	}

	token.Header["kid"] = "unknown"
	if _, err := kr.Keyfunc(token); err == nil {
		t.Fatal("expected error for unknown kid")
	}
}

func TestJWKSProjection(t *testing.T) {
	kr, err := NewEphemeralKeyring(2048)
	if err != nil {
		t.Fatalf("failed to create keyring: %v", err)
	}
	if _, err := kr.Rotate(2048); err != nil {
		t.Fatalf("failed to rotate: %v", err)
	}

	set := kr.JWKS()
	if len(set.Keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(set.Keys))
	}

	for _, key := range set.Keys {
		if key.KTY != "RSA" || key.Alg != "RS256" || key.Use != "sig" {
			t.Fatalf("unexpected key metadata: %+v", key)
		}
		if key.KID == "" || key.N == "" || key.E == "" {
			t.Fatalf("incomplete key projection: %+v", key)
		}
	}
}
