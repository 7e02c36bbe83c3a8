package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AccessTokenTTL is the fixed lifetime of an access token.
	AccessTokenTTL = time.Hour

	// RefreshTokenTTL is the fixed lifetime of a refresh token (30 days).
	RefreshTokenTTL = 720 * time.Hour

	// TokenTypeBearer is the only token_type this server issues.
	TokenTypeBearer = "Bearer"
)

// RefreshToken is a stored opaque refresh token. Rotation is single use: a
// rotated row gets RevokedAt set and ReplacedBy pointing at its successor.
type RefreshToken struct {
	Token      string
	ClientID   string
	UserID     uuid.UUID
	Scopes     []string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
}

func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// AccessTokenClaims is the RS256-signed payload of an access token. The
// OIDC profile claims are populated only when the grant carries the
// corresponding scope.
type AccessTokenClaims struct {
	jwt.RegisteredClaims

	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
	TenantID string `json:"tenant_id,omitempty"`

	Email         string `json:"email,omitempty"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// RevocationMarker denylists an access token by jti until the token would
// have expired anyway, after which the marker is reaped.
type RevocationMarker struct {
	JTI       string
	ExpiresAt time.Time
	RevokedAt time.Time
}

// TokenResponse is the RFC 6749 §5.1 success body of the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// Introspection is the RFC 7662 response body. Everything except Active is
// omitted for inactive tokens.
type Introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Subject   string `json:"sub,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	JTI       string `json:"jti,omitempty"`
}
