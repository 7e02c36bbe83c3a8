// Package validator is the shared defense-in-depth validator set. The HTTP
// entry points and the authorization/token services call the same functions,
// so a direct internal call that skipped the endpoint still hits every check.
package validator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/truxe-io/heimdall/internal/directory"
	apperrors "github.com/truxe-io/heimdall/internal/errors"
	"github.com/truxe-io/heimdall/internal/oauth"
)

// Set binds the stateless validators to the directory collaborator. All
// methods are read-only; the only side effects are directory lookups.
type Set struct {
	Clients directory.ClientStore
	Users   directory.UserStore
}

func New(clients directory.ClientStore, users directory.UserStore) *Set {
	return &Set{
		Clients: clients,
		Users:   users,
	}
}

// ValidateClient returns the client record iff it exists and is active.
func (v *Set) ValidateClient(ctx context.Context, clientID string) (directory.Client, error) {
	client, err := v.Clients.GetClient(ctx, clientID)
	if err != nil {
		return directory.Client{}, err
	}

	if !client.IsActive() {
		return directory.Client{}, apperrors.ClientInactiveError(
			fmt.Sprintf("client %s has status %s", clientID, client.Status), nil)
	}

	return client, nil
}

// ValidateRedirectURI checks the URI against the client's registered set.
func (v *Set) ValidateRedirectURI(ctx context.Context, clientID, redirectURI string) error {
	client, err := v.ValidateClient(ctx, clientID)
	if err != nil {
		return err
	}
	return ValidateRedirectURIForClient(client, redirectURI)
}

// ValidateRedirectURIForClient requires a byte-exact member of the
// registered set; no prefix or pattern matching.
func ValidateRedirectURIForClient(client directory.Client, redirectURI string) error {
	if !client.AllowsRedirectURI(redirectURI) {
		return apperrors.InvalidRedirectURIError(
			fmt.Sprintf("redirect URI is not registered for client %s", client.ClientID), nil)
	}
	return nil
}

// ValidateScopes requires every requested scope to be whitelisted. The error
// message lists every offending scope, not just the first.
func ValidateScopes(requested, allowed []string) error {
	if disallowed := oauth.DisallowedScopes(requested, allowed); len(disallowed) > 0 {
		return apperrors.ScopeNotAllowedError(
			fmt.Sprintf("scopes not allowed: %s", oauth.JoinScope(disallowed)), nil)
	}
	return nil
}

// ValidatePKCE enforces the client's PKCE policy. Clients with RequirePKCE
// must always present a challenge; any presented challenge must be
// well-formed regardless of policy.
func ValidatePKCE(client directory.Client, codeChallenge, codeChallengeMethod string) error {
	if codeChallenge == "" {
		if client.RequirePKCE {
			return apperrors.PKCERequiredError(
				fmt.Sprintf("client %s requires PKCE", client.ClientID), nil)
		}
		return nil
	}

	return oauth.ValidateCodeChallenge(codeChallenge, codeChallengeMethod)
}

// ValidateTenantIsolation resolves the user's tenant and rejects any
// cross-tenant authorization.
func (v *Set) ValidateTenantIsolation(ctx context.Context, userID uuid.UUID, clientTenantID string) error {
	userTenant, err := v.Users.TenantOf(ctx, userID)
	if err != nil {
		return err
	}

	if userTenant != clientTenantID {
		return apperrors.CrossTenantAccessError(
			fmt.Sprintf("user tenant %s does not match client tenant %s", userTenant, clientTenantID), nil)
	}

	return nil
}

// ValidateResponseType accepts only the authorization code flow.
func ValidateResponseType(responseType string) error {
	if responseType != "code" {
		return apperrors.UnsupportedResponseTypeError(
			fmt.Sprintf("unsupported response_type %q", responseType), nil)
	}
	return nil
}

// ValidateState requires the opaque CSRF token to be present. The caller is
// responsible for round-tripping it unmodified.
func ValidateState(state string) error {
	if state == "" {
		return apperrors.InvalidStateError("state parameter is required", nil)
	}
	return nil
}
