package token

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truxe-io/heimdall/internal/directory"
	apperrors "github.com/truxe-io/heimdall/internal/errors"
	"github.com/truxe-io/heimdall/internal/jwks"
	"github.com/truxe-io/heimdall/internal/oauth/validator"
)

type fixture struct {
	service *Service
	dir     *directory.InMemoryDirectory
	keyring *jwks.Keyring
	userID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := directory.NewInMemoryDirectory()
	dir.PutClient(directory.Client{
		ClientID:      "cl_app",
		Name:          "Test App",
		RedirectURIs:  []string{"https://app.example.com/callback"},
		AllowedScopes: []string{"openid", "email", "profile"},
		TenantID:      "tenant-a",
		Status:        directory.ClientStatusActive,
	})
	dir.PutClient(directory.Client{
		ClientID:      "cl_other",
		Name:          "Other App",
		AllowedScopes: []string{"openid"},
		TenantID:      "tenant-a",
		Status:        directory.ClientStatusActive,
	})

	userID := uuid.New()
	dir.PutUser(directory.User{
		ID:            userID,
		TenantID:      "tenant-a",
		Email:         "user@example.com",
		EmailVerified: true,
		Name:          "Test User",
		GivenName:     "Test",
		FamilyName:    "User",
	})

	keyring, err := jwks.NewEphemeralKeyring(2048)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewService(
		validator.New(dir, dir),
		NewInMemoryRefreshTokenStore(),
		NewInMemoryRevocationStore(),
		keyring,
		dir,
		"https://auth.example.com",
		0, 0,
		logger,
	)

	return &fixture{service: service, dir: dir, keyring: keyring, userID: userID}
}

func (f *fixture) parseAccessToken(t *testing.T, raw string) *AccessTokenClaims {
	t.Helper()

	var claims AccessTokenClaims
	parsed, err := jwt.ParseWithClaims(raw, &claims, f.keyring.Keyfunc)
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	return &claims
}

func TestGenerateTokenPair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid", "email"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(3600), pair.ExpiresIn)
	assert.Equal(t, "openid email", pair.Scope)
	assert.True(t, strings.HasPrefix(pair.RefreshToken, "rt_"), "refresh token %q lacks prefix", pair.RefreshToken)

	claims := f.parseAccessToken(t, pair.AccessToken)
	assert.Equal(t, "https://auth.example.com", claims.Issuer)
	assert.Equal(t, f.userID.String(), claims.Subject)
	assert.Equal(t, "cl_app", claims.ClientID)
	assert.Equal(t, "openid email", claims.Scope)
	assert.Equal(t, "tenant-a", claims.TenantID)
	assert.NotEmpty(t, claims.ID)

	// exp - iat equals the access token TTL exactly.
	assert.Equal(t, int64(3600), claims.ExpiresAt.Unix()-claims.IssuedAt.Unix())

	// email scope pulls in the email claims.
	assert.Equal(t, "user@example.com", claims.Email)
	require.NotNil(t, claims.EmailVerified)
	assert.True(t, *claims.EmailVerified)

	// profile was not requested.
	assert.Empty(t, claims.Name)
}

func TestGenerateTokenPairProfileClaims(t *testing.T) {
	f := newFixture(t)

	pair, err := f.service.GenerateTokenPair(context.Background(), "cl_app", f.userID, []string{"openid", "profile"})
	require.NoError(t, err)

	claims := f.parseAccessToken(t, pair.AccessToken)
	assert.Equal(t, "Test User", claims.Name)
	assert.Equal(t, "Test", claims.GivenName)
	assert.Equal(t, "User", claims.FamilyName)
	assert.Empty(t, claims.Email)
}

func TestGenerateTokenPairRejectsDisallowedScopes(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.GenerateTokenPair(context.Background(), "cl_app", f.userID, []string{"admin"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindScopeNotAllowed), "got %v", err)
}

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("rotation invalidates the old token", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid", "email"})
		require.NoError(t, err)

		next, err := f.service.RefreshTokens(ctx, pair.RefreshToken, "cl_app", nil)
		require.NoError(t, err)
		assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
		assert.Equal(t, "openid email", next.Scope)

		// The spent token is definitively revoked.
		_, err = f.service.RefreshTokens(ctx, pair.RefreshToken, "cl_app", nil)
		assert.True(t, apperrors.IsKind(err, apperrors.KindRefreshTokenRevoked), "got %v", err)

		// The successor works.
		_, err = f.service.RefreshTokens(ctx, next.RefreshToken, "cl_app", nil)
		require.NoError(t, err)
	})

	t.Run("scope narrowing allowed, expansion denied", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid", "email"})
		require.NoError(t, err)

		narrowed, err := f.service.RefreshTokens(ctx, pair.RefreshToken, "cl_app", []string{"openid"})
		require.NoError(t, err)
		assert.Equal(t, "openid", narrowed.Scope)

		// The narrowed grant is the new baseline; the dropped scope is gone.
		_, err = f.service.RefreshTokens(ctx, narrowed.RefreshToken, "cl_app", []string{"openid", "email"})
		assert.True(t, apperrors.IsKind(err, apperrors.KindScopeExpansionDenied), "got %v", err)
	})

	t.Run("client mismatch", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid"})
		require.NoError(t, err)

		_, err = f.service.RefreshTokens(ctx, pair.RefreshToken, "cl_other", nil)
		assert.True(t, apperrors.IsKind(err, apperrors.KindClientMismatch), "got %v", err)
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.RefreshTokens(ctx, "rt_unknown", "cl_app", nil)
		assert.True(t, apperrors.IsKind(err, apperrors.KindRefreshTokenNotFound), "got %v", err)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid"})
		require.NoError(t, err)

		f.service.now = func() time.Time { return time.Now().Add(721 * time.Hour) }

		_, err = f.service.RefreshTokens(ctx, pair.RefreshToken, "cl_app", nil)
		assert.True(t, apperrors.IsKind(err, apperrors.KindRefreshTokenExpired), "got %v", err)
	})
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid"})
	require.NoError(t, err)

	const workers = 16

	var wg sync.WaitGroup
	results := make(chan error, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.RefreshTokens(ctx, pair.RefreshToken, "cl_app", nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var winners, losers int
	for err := range results {
		if err == nil {
			winners++
			continue
		}
		if apperrors.IsKind(err, apperrors.KindRefreshTokenRevoked) {
			losers++
			continue
		}
		t.Fatalf("unexpected error kind: %v", err)
	}

	assert.Equal(t, 1, winners, "exactly one rotation must win")
	assert.Equal(t, workers-1, losers)
}

// unavailableSigner fails every signing attempt while delegating
// verification to the wrapped signer.
type unavailableSigner struct {
	jwks.Signer
}

func (unavailableSigner) Sign(jwt.Claims) (string, string, error) {
	return "", "", apperrors.SigningKeyUnavailableError("no active signing key", nil)
}

func TestRefreshSurvivesSigningOutage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid"})
	require.NoError(t, err)

	healthy := f.service.Signer
	f.service.Signer = unavailableSigner{Signer: healthy}

	_, err = f.service.RefreshTokens(ctx, pair.RefreshToken, "cl_app", nil)
	require.True(t, apperrors.IsKind(err, apperrors.KindSigningKeyUnavailable), "got %v", err)
	require.True(t, apperrors.IsRetryable(err), "signing outage must stay retryable")

	// The failed attempt changed nothing; the token is still live.
	active, err := f.service.IntrospectToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, active.Active)

	f.service.Signer = healthy

	rotated, err := f.service.RefreshTokens(ctx, pair.RefreshToken, "cl_app", nil)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
}

func TestRotateTokenAtomicity(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRefreshTokenStore()
	now := time.Now().UTC()

	original := RefreshToken{
		Token:     "rt_original",
		ClientID:  "cl_app",
		UserID:    uuid.New(),
		Scopes:    []string{"openid"},
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
	require.NoError(t, store.CreateToken(ctx, original))

	successor := original
	successor.Token = "rt_successor"

	won, err := store.RotateToken(ctx, original.Token, successor, now)
	require.NoError(t, err)
	require.True(t, won)

	// Winning installs the successor and revokes the original in one step.
	row, err := store.GetToken(ctx, successor.Token)
	require.NoError(t, err)
	assert.Nil(t, row.RevokedAt)

	old, err := store.GetToken(ctx, original.Token)
	require.NoError(t, err)
	require.NotNil(t, old.ReplacedBy)
	assert.Equal(t, successor.Token, *old.ReplacedBy)

	// Losing installs nothing.
	second := original
	second.Token = "rt_second"
	won, err = store.RotateToken(ctx, original.Token, second, now)
	require.NoError(t, err)
	require.False(t, won)

	_, err = store.GetToken(ctx, second.Token)
	assert.True(t, apperrors.IsKind(err, apperrors.KindRefreshTokenNotFound), "got %v", err)
}

func TestIntrospectToken(t *testing.T) {
	ctx := context.Background()

	t.Run("active access token", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid"})
		require.NoError(t, err)

		result, err := f.service.IntrospectToken(ctx, pair.AccessToken)
		require.NoError(t, err)
		assert.True(t, result.Active)
		assert.Equal(t, "access_token", result.TokenType)
		assert.Equal(t, "cl_app", result.ClientID)
		assert.Equal(t, f.userID.String(), result.Subject)
		assert.Equal(t, "openid", result.Scope)
		assert.NotZero(t, result.ExpiresAt)
	})

	t.Run("active refresh token", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid"})
		require.NoError(t, err)

		result, err := f.service.IntrospectToken(ctx, pair.RefreshToken)
		require.NoError(t, err)
		assert.True(t, result.Active)
		assert.Equal(t, "refresh_token", result.TokenType)
	})

	t.Run("never throws for invalid tokens", func(t *testing.T) {
		f := newFixture(t)

		for _, token := range []string{"", "garbage", "rt_unknown", "a.b.c", "eyJ.eyJ.sig"} {
			result, err := f.service.IntrospectToken(ctx, token)
			require.NoError(t, err, "token %q", token)
			assert.False(t, result.Active, "token %q", token)
			assert.Empty(t, result.Scope, "inactive response must carry no metadata")
		}
	})

	t.Run("expired access token is inactive", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid"})
		require.NoError(t, err)

		f.service.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

		result, err := f.service.IntrospectToken(ctx, pair.AccessToken)
		require.NoError(t, err)
		assert.False(t, result.Active)
	})

	t.Run("revoked tokens are inactive", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid"})
		require.NoError(t, err)

		require.NoError(t, f.service.RevokeToken(ctx, pair.AccessToken))
		require.NoError(t, f.service.RevokeToken(ctx, pair.RefreshToken))

		access, err := f.service.IntrospectToken(ctx, pair.AccessToken)
		require.NoError(t, err)
		assert.False(t, access.Active)

		refresh, err := f.service.IntrospectToken(ctx, pair.RefreshToken)
		require.NoError(t, err)
		assert.False(t, refresh.Active)
	})

	t.Run("token signed by rotated-out key stays active", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid"})
		require.NoError(t, err)

		_, err = f.keyring.Rotate(2048)
		require.NoError(t, err)

		result, err := f.service.IntrospectToken(ctx, pair.AccessToken)
		require.NoError(t, err)
		assert.True(t, result.Active)
	})
}

func TestRevokeToken(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent for all shapes", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid"})
		require.NoError(t, err)

		for range 2 {
			require.NoError(t, f.service.RevokeToken(ctx, pair.RefreshToken))
			require.NoError(t, f.service.RevokeToken(ctx, pair.AccessToken))
		}

		// Unknown and malformed tokens succeed silently.
		require.NoError(t, f.service.RevokeToken(ctx, "rt_unknown"))
		require.NoError(t, f.service.RevokeToken(ctx, "garbage"))
		require.NoError(t, f.service.RevokeToken(ctx, ""))
	})

	t.Run("revoked refresh token cannot rotate", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid"})
		require.NoError(t, err)

		require.NoError(t, f.service.RevokeToken(ctx, pair.RefreshToken))

		_, err = f.service.RefreshTokens(ctx, pair.RefreshToken, "cl_app", nil)
		assert.True(t, apperrors.IsKind(err, apperrors.KindRefreshTokenRevoked), "got %v", err)
	})
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid"})
	require.NoError(t, err)
	require.NoError(t, f.service.RevokeToken(ctx, pair.AccessToken))

	f.service.now = func() time.Time { return time.Now().Add(800 * time.Hour) }

	// The refresh token and the revocation marker have both aged out.
	removed, err := f.service.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}

func TestCleanupOldRevokedTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.service.GenerateTokenPair(ctx, "cl_app", f.userID, []string{"openid"})
	require.NoError(t, err)
	require.NoError(t, f.service.RevokeToken(ctx, pair.RefreshToken))

	f.service.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	removed, err := f.service.CleanupOldRevokedTokens(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
