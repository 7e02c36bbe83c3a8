package directory

import (
	"context"

	"github.com/google/uuid"

	apperrors "github.com/truxe-io/heimdall/internal/errors"
	"github.com/truxe-io/heimdall/internal/random"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the minimum acceptable cost for client secret hashes.
const bcryptCost = 12

// ClientStore supplies client records. Implementations may cache with any
// invalidation contract they like; callers always go through this interface.
type ClientStore interface {
	// GetClient returns the record for clientID or a ClientNotFound error.
	GetClient(ctx context.Context, clientID string) (Client, error)
}

// UserStore resolves end users, primarily for tenant isolation checks and
// OIDC profile claims.
type UserStore interface {
	GetUser(ctx context.Context, userID uuid.UUID) (User, error)
	// TenantOf resolves the tenant a user belongs to.
	TenantOf(ctx context.Context, userID uuid.UUID) (string, error)
}

// NewClientCredentials mints a cl_/cs_ pair and the bcrypt hash to store.
// The plaintext secret is returned exactly once, at registration time.
func NewClientCredentials() (clientID, secret, secretHash string, err error) {
	clientID, err = random.NewClientID()
	if err != nil {
		return "", "", "", apperrors.InternalError("failed to generate client ID", err)
	}

	secret, err = random.NewClientSecret()
	if err != nil {
		return "", "", "", apperrors.InternalError("failed to generate client secret", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", "", "", apperrors.InternalError("failed to hash client secret", err)
	}

	return clientID, secret, string(hash), nil
}

// VerifySecret checks a presented client secret against the stored hash.
func VerifySecret(client Client, secret string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)); err != nil {
		return apperrors.InvalidClientSecretError("client secret verification failed", nil)
	}
	return nil
}
