package authorize

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/truxe-io/heimdall/internal/directory"
	apperrors "github.com/truxe-io/heimdall/internal/errors"
	"github.com/truxe-io/heimdall/internal/oauth"
	"github.com/truxe-io/heimdall/internal/oauth/validator"
	"github.com/truxe-io/heimdall/internal/random"
)

// Service owns the authorization-code state machine and user consent.
type Service struct {
	Validators *validator.Set
	Codes      CodeStore
	Consents   ConsentStore
	CodeTTL    time.Duration
	Logger     *slog.Logger

	// now is swappable in tests; defaults to time.Now.
	now func() time.Time
}

func NewService(validators *validator.Set, codes CodeStore, consents ConsentStore, codeTTL time.Duration, logger *slog.Logger) *Service {
	if codeTTL <= 0 {
		codeTTL = AuthorizationCodeTTL
	}

	return &Service{
		Validators: validators,
		Codes:      codes,
		Consents:   consents,
		CodeTTL:    codeTTL,
		Logger:     logger,
		now:        time.Now,
	}
}

// AuthorizationRequest carries the query parameters of an authorization
// request. UserID is uuid.Nil before the resident user has authenticated;
// tenant isolation is checked once it is known.
type AuthorizationRequest struct {
	ClientID            string
	UserID              uuid.UUID
	RedirectURI         string
	ResponseType        string
	Scopes              []string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ValidateAuthorizationRequest runs every validator in sequence and fails
// fast on the first violated invariant. No side effects on any path.
func (s *Service) ValidateAuthorizationRequest(ctx context.Context, req AuthorizationRequest) error {
	if err := validator.ValidateResponseType(req.ResponseType); err != nil {
		return err
	}

	if err := validator.ValidateState(req.State); err != nil {
		return err
	}

	client, err := s.Validators.ValidateClient(ctx, req.ClientID)
	if err != nil {
		return err
	}

	if err := validator.ValidateRedirectURIForClient(client, req.RedirectURI); err != nil {
		return err
	}

	if err := validator.ValidateScopes(req.Scopes, client.AllowedScopes); err != nil {
		return err
	}

	if err := validator.ValidatePKCE(client, req.CodeChallenge, req.CodeChallengeMethod); err != nil {
		return err
	}

	if req.UserID != uuid.Nil {
		if err := s.Validators.ValidateTenantIsolation(ctx, req.UserID, client.TenantID); err != nil {
			return err
		}
	}

	return nil
}

// GenerateCodeRequest carries everything needed to issue a code after the
// user has authenticated and consented.
type GenerateCodeRequest struct {
	ClientID            string
	UserID              uuid.UUID
	RedirectURI         string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresIn           time.Duration
}

// GenerateAuthorizationCode re-validates the full request and persists a
// single-use code. The endpoint layer already validated once; running the
// same validators again means a direct internal call cannot skip them.
// The PKCE verifier is never seen here, only the challenge.
func (s *Service) GenerateAuthorizationCode(ctx context.Context, req GenerateCodeRequest) (IssuedCode, error) {
	client, err := s.Validators.ValidateClient(ctx, req.ClientID)
	if err != nil {
		return IssuedCode{}, err
	}

	if err := validator.ValidateRedirectURIForClient(client, req.RedirectURI); err != nil {
		return IssuedCode{}, err
	}

	if err := validator.ValidateScopes(req.Scopes, client.AllowedScopes); err != nil {
		return IssuedCode{}, err
	}

	if err := validator.ValidatePKCE(client, req.CodeChallenge, req.CodeChallengeMethod); err != nil {
		return IssuedCode{}, err
	}

	if err := s.Validators.ValidateTenantIsolation(ctx, req.UserID, client.TenantID); err != nil {
		return IssuedCode{}, err
	}

	code, err := random.NewAuthorizationCode()
	if err != nil {
		return IssuedCode{}, apperrors.InternalError("failed to generate authorization code", err)
	}

	expiresIn := req.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = s.CodeTTL
	}

	now := s.now().UTC()
	row := AuthorizationCode{
		Code:                code,
		ClientID:            req.ClientID,
		UserID:              req.UserID,
		Scopes:              req.Scopes,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ExpiresAt:           now.Add(expiresIn),
		CreatedAt:           now,
	}

	if err := s.Codes.CreateCode(ctx, row); err != nil {
		return IssuedCode{}, err
	}

	s.Logger.InfoContext(ctx, "authorization code issued",
		"client_id", req.ClientID, "user_id", req.UserID, "scopes", oauth.JoinScope(req.Scopes))

	return IssuedCode{Code: code, ExpiresAt: row.ExpiresAt}, nil
}

// ConsumeCodeRequest is the token-endpoint side of the code exchange.
type ConsumeCodeRequest struct {
	Code         string
	ClientID     string
	RedirectURI  string
	CodeVerifier string
}

// ValidateAndConsumeCode validates a code and consumes it exactly once.
// Reuse and races fail closed with a definitive kind; the store's
// conditional update guarantees at most one winner per code.
func (s *Service) ValidateAndConsumeCode(ctx context.Context, req ConsumeCodeRequest) (Grant, error) {
	row, err := s.Codes.GetCode(ctx, req.Code)
	if err != nil {
		return Grant{}, err
	}

	// A code presented by the wrong client is indistinguishable from an
	// unknown code; anything else is an enumeration oracle.
	if row.ClientID != req.ClientID {
		return Grant{}, apperrors.CodeNotFoundError("authorization code not found", nil)
	}

	now := s.now().UTC()
	if row.Consumed() {
		return Grant{}, apperrors.CodeAlreadyUsedError("authorization code already used", nil)
	}
	if row.Expired(now) {
		return Grant{}, apperrors.CodeExpiredError("authorization code expired", nil)
	}

	if row.RedirectURI != req.RedirectURI {
		return Grant{}, apperrors.RedirectURIMismatchError("redirect URI does not match the one used at issuance", nil)
	}

	if row.CodeChallenge != "" {
		if err := oauth.VerifyCodeChallenge(req.CodeVerifier, row.CodeChallenge, row.CodeChallengeMethod); err != nil {
			return Grant{}, err
		}
	}

	won, err := s.Codes.ConsumeCode(ctx, req.Code, now)
	if err != nil {
		return Grant{}, err
	}
	if !won {
		// Lost the race between lookup and consumption.
		return Grant{}, apperrors.CodeAlreadyUsedError("authorization code already used", nil)
	}

	s.Logger.InfoContext(ctx, "authorization code consumed",
		"client_id", req.ClientID, "user_id", row.UserID)

	return Grant{UserID: row.UserID, Scopes: row.Scopes}, nil
}

// NeedsConsent reports whether the user must (re-)approve the requested
// scopes. Trusted clients and clients registered without the consent
// requirement never prompt. Any requested scope outside the previously
// granted set requires fresh consent.
func (s *Service) NeedsConsent(ctx context.Context, client directory.Client, userID uuid.UUID, requestedScopes []string) (bool, error) {
	if !client.RequireConsent || client.Trusted {
		return false, nil
	}

	consent, found, err := s.Consents.GetConsent(ctx, userID, client.ClientID)
	if err != nil {
		return false, err
	}
	if !found || consent.Revoked() {
		return true, nil
	}

	return !oauth.ScopesWithin(requestedScopes, consent.GrantedScopes), nil
}

// RecordUserConsent stores approval for (user, client), merging the new
// scopes into any previously granted set.
func (s *Service) RecordUserConsent(ctx context.Context, userID uuid.UUID, clientID string, scopes []string) error {
	granted := scopes

	existing, found, err := s.Consents.GetConsent(ctx, userID, clientID)
	if err != nil {
		return err
	}
	if found && !existing.Revoked() {
		merged := append([]string{}, existing.GrantedScopes...)
		for _, scope := range scopes {
			if !oauth.ScopesWithin([]string{scope}, merged) {
				merged = append(merged, scope)
			}
		}
		granted = merged
	}

	return s.Consents.UpsertConsent(ctx, Consent{
		ID:            uuid.New(),
		UserID:        userID,
		ClientID:      clientID,
		GrantedScopes: granted,
		GrantedAt:     s.now().UTC(),
	})
}

// CheckUserConsent reports whether a non-revoked consent covers every
// requested scope.
func (s *Service) CheckUserConsent(ctx context.Context, userID uuid.UUID, clientID string, scopes []string) (bool, error) {
	consent, found, err := s.Consents.GetConsent(ctx, userID, clientID)
	if err != nil {
		return false, err
	}
	if !found || consent.Revoked() {
		return false, nil
	}
	return oauth.ScopesWithin(scopes, consent.GrantedScopes), nil
}

// RevokeUserConsent withdraws approval. Idempotent.
func (s *Service) RevokeUserConsent(ctx context.Context, userID uuid.UUID, clientID string) error {
	return s.Consents.RevokeConsent(ctx, userID, clientID)
}

// CleanupExpiredCodes reaps expired code rows and returns the count.
func (s *Service) CleanupExpiredCodes(ctx context.Context) (int64, error) {
	return s.Codes.DeleteExpiredCodes(ctx, s.now().UTC())
}
