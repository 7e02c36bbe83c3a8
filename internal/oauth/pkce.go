package oauth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	apperrors "github.com/truxe-io/heimdall/internal/errors"
)

const (
	ChallengeMethodS256  = "S256"
	ChallengeMethodPlain = "plain"
)

// ValidateCodeChallenge validates the PKCE code challenge parameters at
// authorization time. RFC 7636 bounds both challenge and verifier to
// 43..128 characters.
func ValidateCodeChallenge(codeChallenge, codeChallengeMethod string) error {
	if codeChallenge == "" {
		return apperrors.PKCERequiredError("code_challenge is required", nil)
	}

	switch codeChallengeMethod {
	case ChallengeMethodS256, ChallengeMethodPlain:
	case "":
		return apperrors.InvalidChallengeMethodError("code_challenge_method is required", nil)
	default:
		return apperrors.InvalidChallengeMethodError(fmt.Sprintf("unsupported code_challenge_method %s", codeChallengeMethod), nil)
	}

	if len(codeChallenge) < 43 || len(codeChallenge) > 128 {
		return apperrors.PKCERequiredError(fmt.Sprintf("invalid code_challenge length for %s", codeChallengeMethod), nil)
	}

	return nil
}

// VerifyCodeChallenge verifies the code verifier presented at token exchange
// against the challenge recorded at issuance. S256 recomputes
// base64url(SHA-256(verifier)); plain compares directly.
func VerifyCodeChallenge(codeVerifier, codeChallenge, codeChallengeMethod string) error {
	if codeVerifier == "" {
		return apperrors.PKCEVerificationFailedError("code_verifier is required", nil)
	}

	if len(codeVerifier) < 43 || len(codeVerifier) > 128 {
		return apperrors.PKCEVerificationFailedError("invalid code_verifier length", nil)
	}

	switch codeChallengeMethod {
	case ChallengeMethodPlain:
		if subtle.ConstantTimeCompare([]byte(codeVerifier), []byte(codeChallenge)) != 1 {
			return apperrors.PKCEVerificationFailedError("code verifier does not match challenge", nil)
		}
	case ChallengeMethodS256:
		hash := sha256.Sum256([]byte(codeVerifier))
		computed := base64.RawURLEncoding.EncodeToString(hash[:])

		if subtle.ConstantTimeCompare([]byte(computed), []byte(codeChallenge)) != 1 {
			return apperrors.PKCEVerificationFailedError("code verifier does not match challenge", nil)
		}
	default:
		return apperrors.InvalidChallengeMethodError(fmt.Sprintf("unsupported code_challenge_method %s", codeChallengeMethod), nil)
	}

	return nil
}
