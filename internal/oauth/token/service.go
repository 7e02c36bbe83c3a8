package token

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/truxe-io/heimdall/internal/directory"
	apperrors "github.com/truxe-io/heimdall/internal/errors"
	"github.com/truxe-io/heimdall/internal/jwks"
	"github.com/truxe-io/heimdall/internal/oauth"
	"github.com/truxe-io/heimdall/internal/oauth/validator"
	"github.com/truxe-io/heimdall/internal/random"
)

// Service mints, refreshes, introspects and revokes tokens.
type Service struct {
	Validators  *validator.Set
	Refresh     RefreshTokenStore
	Revocations RevocationStore
	Signer      jwks.Signer
	Users       directory.UserStore
	Issuer      string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	Logger      *slog.Logger

	// now is swappable in tests; defaults to time.Now.
	now func() time.Time
}

func NewService(
	validators *validator.Set,
	refresh RefreshTokenStore,
	revocations RevocationStore,
	signer jwks.Signer,
	users directory.UserStore,
	issuer string,
	accessTTL, refreshTTL time.Duration,
	logger *slog.Logger,
) *Service {
	if accessTTL <= 0 {
		accessTTL = AccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = RefreshTokenTTL
	}

	return &Service{
		Validators:  validators,
		Refresh:     refresh,
		Revocations: revocations,
		Signer:      signer,
		Users:       users,
		Issuer:      issuer,
		AccessTTL:   accessTTL,
		RefreshTTL:  refreshTTL,
		Logger:      logger,
		now:         time.Now,
	}
}

// GenerateTokenPair mints an RS256 access token and an opaque refresh token
// for an authenticated grant. The access token lives for AccessTTL with
// exp - iat equal to the TTL exactly.
func (s *Service) GenerateTokenPair(ctx context.Context, clientID string, userID uuid.UUID, scopes []string) (TokenResponse, error) {
	client, err := s.Validators.ValidateClient(ctx, clientID)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := validator.ValidateScopes(scopes, client.AllowedScopes); err != nil {
		return TokenResponse{}, err
	}

	now := s.now().UTC()

	accessToken, err := s.mintAccessToken(ctx, client, userID, scopes, now)
	if err != nil {
		return TokenResponse{}, err
	}

	refreshToken, err := random.NewRefreshToken()
	if err != nil {
		return TokenResponse{}, apperrors.InternalError("failed to generate refresh token", err)
	}

	if err := s.Refresh.CreateToken(ctx, RefreshToken{
		Token:     refreshToken,
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    scopes,
		ExpiresAt: now.Add(s.RefreshTTL),
		CreatedAt: now,
	}); err != nil {
		return TokenResponse{}, err
	}

	s.Logger.InfoContext(ctx, "token pair issued",
		"client_id", clientID, "user_id", userID, "scopes", oauth.JoinScope(scopes))

	return TokenResponse{
		AccessToken:  accessToken,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
		RefreshToken: refreshToken,
		Scope:        oauth.JoinScope(scopes),
	}, nil
}

// RefreshTokens rotates a refresh token and mints a fresh pair. The old
// token is revoked exactly once; a second presentation, concurrent or not,
// fails with a revoked kind. Requested scopes may only narrow the original
// grant; an empty request inherits it. Everything that can fail transiently
// (signing, token generation) happens before the store rotation, and the
// rotation itself revokes and inserts atomically, so an error anywhere
// leaves the presented token usable for a retry.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken, clientID string, requestedScopes []string) (TokenResponse, error) {
	row, err := s.Refresh.GetToken(ctx, refreshToken)
	if err != nil {
		return TokenResponse{}, err
	}

	if row.ClientID != clientID {
		return TokenResponse{}, apperrors.ClientMismatchError("refresh token was issued to a different client", nil)
	}

	now := s.now().UTC()
	if row.Revoked() {
		return TokenResponse{}, apperrors.RefreshTokenRevokedError("refresh token has been revoked", nil)
	}
	if row.Expired(now) {
		return TokenResponse{}, apperrors.RefreshTokenExpiredError("refresh token expired", nil)
	}

	scopes := requestedScopes
	if len(scopes) == 0 {
		scopes = row.Scopes
	} else if !oauth.ScopesWithin(scopes, row.Scopes) {
		return TokenResponse{}, apperrors.ScopeExpansionDeniedError(
			"requested scopes exceed the original grant", nil)
	}

	client, err := s.Validators.ValidateClient(ctx, clientID)
	if err != nil {
		return TokenResponse{}, err
	}

	accessToken, err := s.mintAccessToken(ctx, client, row.UserID, scopes, now)
	if err != nil {
		return TokenResponse{}, err
	}

	successor, err := random.NewRefreshToken()
	if err != nil {
		return TokenResponse{}, apperrors.InternalError("failed to generate refresh token", err)
	}

	won, err := s.Refresh.RotateToken(ctx, refreshToken, RefreshToken{
		Token:     successor,
		ClientID:  clientID,
		UserID:    row.UserID,
		Scopes:    scopes,
		ExpiresAt: now.Add(s.RefreshTTL),
		CreatedAt: now,
	}, now)
	if err != nil {
		return TokenResponse{}, err
	}
	if !won {
		// Lost the race between lookup and rotation, or the token was
		// revoked in between. Either way the presented token is spent.
		return TokenResponse{}, apperrors.RefreshTokenRevokedError("refresh token has been revoked", nil)
	}

	s.Logger.InfoContext(ctx, "refresh token rotated",
		"client_id", clientID, "user_id", row.UserID)

	return TokenResponse{
		AccessToken:  accessToken,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
		RefreshToken: successor,
		Scope:        oauth.JoinScope(scopes),
	}, nil
}

func (s *Service) mintAccessToken(ctx context.Context, client directory.Client, userID uuid.UUID, scopes []string, now time.Time) (string, error) {
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{client.ClientID},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		ClientID: client.ClientID,
		Scope:    oauth.JoinScope(scopes),
		TenantID: client.TenantID,
	}

	hasEmail := oauth.ScopesWithin([]string{"email"}, scopes)
	hasProfile := oauth.ScopesWithin([]string{"profile"}, scopes)

	if hasEmail || hasProfile {
		user, err := s.Users.GetUser(ctx, userID)
		if err != nil {
			return "", err
		}

		if hasEmail {
			claims.Email = user.Email
			verified := user.EmailVerified
			claims.EmailVerified = &verified
		}
		if hasProfile {
			claims.Name = user.Name
			claims.GivenName = user.GivenName
			claims.FamilyName = user.FamilyName
			claims.Picture = user.Picture
		}
	}

	signed, _, err := s.Signer.Sign(claims)
	if err != nil {
		return "", err
	}

	return signed, nil
}

// IntrospectToken implements RFC 7662. Malformed, expired, revoked or
// simply unknown tokens all introspect as inactive; only infrastructure
// failures surface as errors.
func (s *Service) IntrospectToken(ctx context.Context, token string) (Introspection, error) {
	ref := oauth.ParseTokenRef(token)

	switch ref.Kind {
	case oauth.TokenKindAccessJWT:
		return s.introspectAccessToken(ctx, ref.Value)
	case oauth.TokenKindOpaqueRefresh:
		return s.introspectRefreshToken(ctx, ref.Value)
	default:
		return Introspection{Active: false}, nil
	}
}

func (s *Service) introspectAccessToken(ctx context.Context, token string) (Introspection, error) {
	var claims AccessTokenClaims

	parsed, err := jwt.ParseWithClaims(token, &claims, s.Signer.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return Introspection{Active: false}, nil
	}

	revoked, err := s.Revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Introspection{}, err
	}
	if revoked {
		return Introspection{Active: false}, nil
	}

	resp := Introspection{
		Active:    true,
		Scope:     claims.Scope,
		ClientID:  claims.ClientID,
		Subject:   claims.Subject,
		TokenType: oauth.TokenKindAccessJWT.String(),
		Issuer:    claims.Issuer,
		JTI:       claims.ID,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		resp.IssuedAt = claims.IssuedAt.Unix()
	}

	return resp, nil
}

func (s *Service) introspectRefreshToken(ctx context.Context, token string) (Introspection, error) {
	row, err := s.Refresh.GetToken(ctx, token)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindRefreshTokenNotFound) {
			return Introspection{Active: false}, nil
		}
		return Introspection{}, err
	}

	if row.Revoked() || row.Expired(s.now().UTC()) {
		return Introspection{Active: false}, nil
	}

	return Introspection{
		Active:    true,
		Scope:     oauth.JoinScope(row.Scopes),
		ClientID:  row.ClientID,
		Subject:   row.UserID.String(),
		TokenType: oauth.TokenKindOpaqueRefresh.String(),
		ExpiresAt: row.ExpiresAt.Unix(),
		IssuedAt:  row.CreatedAt.Unix(),
	}, nil
}

// RevokeToken implements RFC 7009. Revocation is idempotent and never
// reveals whether the token existed; unknown and malformed tokens succeed
// silently.
func (s *Service) RevokeToken(ctx context.Context, token string) error {
	ref := oauth.ParseTokenRef(token)

	switch ref.Kind {
	case oauth.TokenKindOpaqueRefresh:
		return s.Refresh.RevokeToken(ctx, ref.Value, s.now().UTC())

	case oauth.TokenKindAccessJWT:
		var claims AccessTokenClaims

		// An expired token needs no marker; a forged one gets none.
		parsed, err := jwt.ParseWithClaims(ref.Value, &claims, s.Signer.Keyfunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithTimeFunc(s.now),
		)
		if err != nil || !parsed.Valid || claims.ID == "" || claims.ExpiresAt == nil {
			return nil
		}

		return s.Revocations.RevokeJTI(ctx, RevocationMarker{
			JTI:       claims.ID,
			ExpiresAt: claims.ExpiresAt.Time,
			RevokedAt: s.now().UTC(),
		})

	default:
		return nil
	}
}

// CleanupExpiredTokens reaps expired refresh tokens and expired revocation
// markers, returning the combined count.
func (s *Service) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	now := s.now().UTC()

	tokens, err := s.Refresh.DeleteExpiredTokens(ctx, now)
	if err != nil {
		return 0, err
	}

	markers, err := s.Revocations.DeleteExpiredMarkers(ctx, now)
	if err != nil {
		return tokens, err
	}

	return tokens + markers, nil
}

// CleanupOldRevokedTokens reaps refresh tokens revoked longer than the
// retention window ago and returns the count.
func (s *Service) CleanupOldRevokedTokens(ctx context.Context, retention time.Duration) (int64, error) {
	return s.Refresh.DeleteRevokedBefore(ctx, s.now().UTC().Add(-retention))
}
