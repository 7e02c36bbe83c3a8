package directory

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ClientStatus is the registration state of a client application. Only
// active clients may participate in any flow.
type ClientStatus string

const (
	ClientStatusActive    ClientStatus = "active"
	ClientStatusSuspended ClientStatus = "suspended"
	ClientStatusDeleted   ClientStatus = "deleted"
)

// Client is a registered third-party application as the directory exposes it.
// Records are immutable per call: the core reads, never writes.
type Client struct {
	ClientID       string       `json:"client_id"`
	SecretHash     string       `json:"-"`
	Name           string       `json:"name"`
	RedirectURIs   []string     `json:"redirect_uris"`
	AllowedScopes  []string     `json:"allowed_scopes"`
	RequirePKCE    bool         `json:"require_pkce"`
	RequireConsent bool         `json:"require_consent"`
	Trusted        bool         `json:"trusted"`
	TenantID       string       `json:"tenant_id"`
	Status         ClientStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
}

func (c Client) IsActive() bool {
	return c.Status == ClientStatusActive
}

// AllowsRedirectURI reports whether uri is a byte-exact member of the
// registered set. No prefix or pattern matching: partial matches are how
// open-redirect bypasses happen.
func (c Client) AllowsRedirectURI(uri string) bool {
	return uri != "" && slices.Contains(c.RedirectURIs, uri)
}

func (c Client) AllowsScope(scope string) bool {
	return slices.Contains(c.AllowedScopes, scope)
}

// User is an end user record as the directory exposes it. The optional OIDC
// profile fields feed access-token claims when the matching scopes are
// granted.
type User struct {
	ID            uuid.UUID `json:"id"`
	TenantID      string    `json:"tenant_id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Name          string    `json:"name"`
	GivenName     string    `json:"given_name"`
	FamilyName    string    `json:"family_name"`
	Picture       string    `json:"picture"`
}
