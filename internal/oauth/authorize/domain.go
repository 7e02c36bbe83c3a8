package authorize

import (
	"time"

	"github.com/google/uuid"
)

// AuthorizationCodeTTL is the fixed lifetime of an authorization code.
const AuthorizationCodeTTL = 10 * time.Minute

// AuthorizationCode is a single-use grant binding a client, a user, a
// redirect URI, and a PKCE challenge. State machine: issued, then exactly
// one of consumed (ConsumedAt set) or expired (detected lazily).
type AuthorizationCode struct {
	Code                string
	ClientID            string
	UserID              uuid.UUID
	Scopes              []string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	CreatedAt           time.Time
	ConsumedAt          *time.Time
}

func (c AuthorizationCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func (c AuthorizationCode) Consumed() bool {
	return c.ConsumedAt != nil
}

// Consent records a user's approval of a client for a set of scopes, keyed
// by (user, client). A later request for any scope outside GrantedScopes
// requires fresh consent.
type Consent struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	ClientID      string
	GrantedScopes []string
	GrantedAt     time.Time
	RevokedAt     *time.Time
}

func (c Consent) Revoked() bool {
	return c.RevokedAt != nil
}

// IssuedCode is what GenerateAuthorizationCode hands back to the caller.
type IssuedCode struct {
	Code      string
	ExpiresAt time.Time
}

// Grant is the outcome of a successful code consumption, fed into token
// issuance.
type Grant struct {
	UserID uuid.UUID
	Scopes []string
}
