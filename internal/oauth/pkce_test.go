package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	apperrors "github.com/truxe-io/heimdall/internal/errors"
)

func TestValidateCodeChallenge(t *testing.T) {
	valid := strings.Repeat("a", 43)

	t.Run("accepts S256", func(t *testing.T) {
		if err := ValidateCodeChallenge(valid, ChallengeMethodS256); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("accepts plain", func(t *testing.T) {
		if err := ValidateCodeChallenge(valid, ChallengeMethodPlain); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("rejects missing challenge", func(t *testing.T) {
		err := ValidateCodeChallenge("", ChallengeMethodS256)
		if !apperrors.IsKind(err, apperrors.KindPKCERequired) {
			t.Fatalf("expected PKCE required error, got %v", err)
		}
	})

	t.Run("rejects missing method", func(t *testing.T) {
		err := ValidateCodeChallenge(valid, "")
		if !apperrors.IsKind(err, apperrors.KindInvalidChallengeMethod) {
			t.Fatalf("expected invalid challenge method error, got %v", err)
		}
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		err := ValidateCodeChallenge(valid, "S512")
		if !apperrors.IsKind(err, apperrors.KindInvalidChallengeMethod) {
			t.Fatalf("expected invalid challenge method error, got %v", err)
		}
	})

	t.Run("rejects short challenge", func(t *testing.T) {
		err := ValidateCodeChallenge(strings.Repeat("a", 42), ChallengeMethodS256)
		if err == nil {
			t.Fatal("expected error for 42 character challenge")
		}
	})

	t.Run("rejects long challenge", func(t *testing.T) {
		err := ValidateCodeChallenge(strings.Repeat("a", 129), ChallengeMethodS256)
		if err == nil {
			t.Fatal("expected error for 129 character challenge")
		}
	})

	t.Run("accepts boundary lengths", func(t *testing.T) {
		for _, n := range []int{43, 128} {
			if err := ValidateCodeChallenge(strings.Repeat("a", n), ChallengeMethodPlain); err != nil {
				t.Fatalf("expected %d character challenge to be accepted, got %v", n, err)
			}
		}
	})
}

func TestVerifyCodeChallenge(t *testing.T) {
	verifier := strings.Repeat("v", 64)
	hash := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(hash[:])

	t.Run("S256 round trip", func(t *testing.T) {
		if err := VerifyCodeChallenge(verifier, challenge, ChallengeMethodS256); err != nil {
			t.Fatalf("expected verifier to match, got %v", err)
		}
	})

	t.Run("S256 wrong verifier", func(t *testing.T) {
		err := VerifyCodeChallenge(strings.Repeat("w", 64), challenge, ChallengeMethodS256)
		if !apperrors.IsKind(err, apperrors.KindPKCEVerificationFailed) {
			t.Fatalf("expected verification failure, got %v", err)
		}
	})

	t.Run("plain round trip", func(t *testing.T) {
		if err := VerifyCodeChallenge(verifier, verifier, ChallengeMethodPlain); err != nil {
			t.Fatalf("expected verifier to match, got %v", err)
		}
	})

	t.Run("plain mismatch", func(t *testing.T) {
		err := VerifyCodeChallenge(verifier, strings.Repeat("w", 64), ChallengeMethodPlain)
		if !apperrors.IsKind(err, apperrors.KindPKCEVerificationFailed) {
			t.Fatalf("expected verification failure, got %v", err)
		}
	})

	t.Run("missing verifier", func(t *testing.T) {
		err := VerifyCodeChallenge("", challenge, ChallengeMethodS256)
		if !apperrors.IsKind(err, apperrors.KindPKCEVerificationFailed) {
			t.Fatalf("expected verification failure, got %v", err)
		}
	})

	t.Run("verifier length bounds", func(t *testing.T) {
		for _, n := range []int{42, 129} {
			err := VerifyCodeChallenge(strings.Repeat("v", n), challenge, ChallengeMethodS256)
			if !apperrors.IsKind(err, apperrors.KindPKCEVerificationFailed) {
				t.Fatalf("expected %d character verifier to be rejected, got %v", n, err)
			}
		}
	})
}
