package authorize

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CodeStore persists authorization codes. The Authorization Service is the
// only owner of these rows.
type CodeStore interface {
	CreateCode(ctx context.Context, code AuthorizationCode) error
	// GetCode returns the row for a code value, consumed or not, or a
	// CodeNotFound error.
	GetCode(ctx context.Context, code string) (AuthorizationCode, error)
	// ConsumeCode conditionally sets consumed_at. It reports true iff this
	// call won; concurrent callers observe false. The conditional update is
	// the linearization point for single use.
	ConsumeCode(ctx context.Context, code string, now time.Time) (bool, error)
	// DeleteExpiredCodes reaps rows past expiry and returns the count.
	DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error)
}

// ConsentStore persists (user, client) consent grants.
type ConsentStore interface {
	// UpsertConsent records or extends a consent grant, clearing any
	// previous revocation.
	UpsertConsent(ctx context.Context, consent Consent) error
	// GetConsent returns the consent row and whether one exists.
	GetConsent(ctx context.Context, userID uuid.UUID, clientID string) (Consent, bool, error)
	// RevokeConsent marks the consent revoked. Revoking a missing or
	// already-revoked consent is a no-op.
	RevokeConsent(ctx context.Context, userID uuid.UUID, clientID string) error
}
