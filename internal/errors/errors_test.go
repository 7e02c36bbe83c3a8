package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsKind(t *testing.T) {
	err := CodeAlreadyUsedError("code already used", nil)

	if !IsKind(err, KindCodeAlreadyUsed) {
		t.Fatal("expected kind to match")
	}
	if IsKind(err, KindCodeExpired) {
		t.Fatal("expected kind not to match")
	}
	if IsKind(errors.New("plain"), KindCodeAlreadyUsed) {
		t.Fatal("expected plain error not to match")
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("token exchange: %w", RefreshTokenRevokedError("revoked", nil))

	if !IsKind(err, KindRefreshTokenRevoked) {
		t.Fatal("expected kind to match through wrapping")
	}
}

func TestRetryability(t *testing.T) {
	// Infrastructure kinds are retryable; protocol rejections never are.
	if !IsRetryable(DatabaseError("connection reset", nil)) {
		t.Fatal("expected database error to be retryable")
	}
	if !IsRetryable(CacheError("redis down", nil)) {
		t.Fatal("expected cache error to be retryable")
	}
	if !IsRetryable(SigningKeyUnavailableError("no key", nil)) {
		t.Fatal("expected signing key error to be retryable")
	}

	for _, err := range []error{
		ClientNotFoundError("", nil),
		PKCEVerificationFailedError("", nil),
		CodeAlreadyUsedError("", nil),
		RefreshTokenRevokedError("", nil),
		ScopeExpansionDeniedError("", nil),
		InternalError("", nil),
	} {
		if IsRetryable(err) {
			t.Fatalf("expected %v not to be retryable", err)
		}
	}
}

func TestOAuthWireCodes(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ClientNotFoundError("", nil), OAuthInvalidClient},
		{InvalidClientSecretError("", nil), OAuthInvalidClient},
		{InvalidRedirectURIError("", nil), OAuthInvalidRequest},
		{ScopeNotAllowedError("", nil), OAuthInvalidScope},
		{CodeAlreadyUsedError("", nil), OAuthInvalidGrant},
		{RefreshTokenRevokedError("", nil), OAuthInvalidGrant},
		{UserNotFoundError("", nil), OAuthAccessDenied},
		{CrossTenantAccessError("", nil), OAuthAccessDenied},
		{UnsupportedResponseTypeError("", nil), OAuthUnsupportedResponseType},
		{DatabaseError("", nil), OAuthServerError},
		{errors.New("plain"), OAuthServerError},
	}

	for _, tt := range tests {
		if got := GetOAuthCode(tt.err); got != tt.want {
			t.Fatalf("GetOAuthCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestHTTPCodes(t *testing.T) {
	if got := GetHTTPCode(ClientNotFoundError("", nil)); got != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", got)
	}
	if got := GetHTTPCode(CrossTenantAccessError("", nil)); got != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", got)
	}
	if got := GetHTTPCode(DatabaseError("", nil)); got != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", got)
	}
	if got := GetHTTPCode(errors.New("plain")); got != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", got)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := DatabaseError("failed to query", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to unwrap")
	}
	if err.Error() == "" {
		t.Fatal("expected non-empty message")
	}
}
