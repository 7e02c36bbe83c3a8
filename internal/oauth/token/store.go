package token

import (
	"context"
	"time"
)

// RefreshTokenStore persists opaque refresh tokens.
type RefreshTokenStore interface {
	CreateToken(ctx context.Context, token RefreshToken) error
	// GetToken returns the row for a token value, revoked or not, or a
	// RefreshTokenNotFound error.
	GetToken(ctx context.Context, token string) (RefreshToken, error)
	// RotateToken revokes a live token and inserts its successor row in one
	// atomic step. It reports true iff this call won; concurrent rotations
	// of the same token observe false. A failed or lost call leaves both
	// rows untouched, so the presented token stays usable after transient
	// failures. The conditional update is the linearization point for
	// single-use rotation.
	RotateToken(ctx context.Context, token string, successor RefreshToken, now time.Time) (bool, error)
	// RevokeToken marks the token revoked. Revoking a missing or
	// already-revoked token is a no-op.
	RevokeToken(ctx context.Context, token string, now time.Time) error
	// DeleteExpiredTokens reaps rows past expiry and returns the count.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
	// DeleteRevokedBefore reaps rows revoked before the cutoff and returns
	// the count.
	DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RevocationStore persists the access token denylist, keyed by jti.
type RevocationStore interface {
	// RevokeJTI records a marker. Recording the same jti twice is a no-op.
	RevokeJTI(ctx context.Context, marker RevocationMarker) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// DeleteExpiredMarkers reaps markers whose token has expired anyway.
	DeleteExpiredMarkers(ctx context.Context, now time.Time) (int64, error)
}
