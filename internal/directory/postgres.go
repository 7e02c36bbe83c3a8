package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/truxe-io/heimdall/internal/database"
	apperrors "github.com/truxe-io/heimdall/internal/errors"
)

// PostgresStore reads client and user rows owned by the registration and
// identity subsystems. The core never writes to these tables.
type PostgresStore struct {
	DB *database.Database
}

func NewPostgresStore(db *database.Database) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (s *PostgresStore) GetClient(ctx context.Context, clientID string) (Client, error) {
	var client Client

	query := `
		SELECT client_id, client_secret_hash, name, redirect_uris, allowed_scopes,
		       require_pkce, require_consent, trusted, tenant_id, status, created_at
		FROM tbl_client
		WHERE client_id = $1
	`

	row := s.DB.QueryRow(ctx, query, clientID)
	if err := row.Scan(
		&client.ClientID,
		&client.SecretHash,
		&client.Name,
		&client.RedirectURIs,
		&client.AllowedScopes,
		&client.RequirePKCE,
		&client.RequireConsent,
		&client.Trusted,
		&client.TenantID,
		&client.Status,
		&client.CreatedAt,
	); err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return Client{}, apperrors.ClientNotFoundError(fmt.Sprintf("client %s not found", clientID), err)
		}
		return Client{}, apperrors.DatabaseError("failed to get client", err)
	}

	return client, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID uuid.UUID) (User, error) {
	var user User

	query := `
		SELECT id, tenant_id, email, email_verified, name, given_name, family_name, picture
		FROM tbl_user
		WHERE id = $1
	`

	row := s.DB.QueryRow(ctx, query, userID)
	if err := row.Scan(
		&user.ID,
		&user.TenantID,
		&user.Email,
		&user.EmailVerified,
		&user.Name,
		&user.GivenName,
		&user.FamilyName,
		&user.Picture,
	); err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return User{}, apperrors.UserNotFoundError(fmt.Sprintf("user %s not found", userID), err)
		}
		return User{}, apperrors.DatabaseError("failed to get user", err)
	}

	return user, nil
}

func (s *PostgresStore) TenantOf(ctx context.Context, userID uuid.UUID) (string, error) {
	var tenantID string

	row := s.DB.QueryRow(ctx, `SELECT tenant_id FROM tbl_user WHERE id = $1`, userID)
	if err := row.Scan(&tenantID); err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return "", apperrors.UserNotFoundError(fmt.Sprintf("user %s not found", userID), err)
		}
		return "", apperrors.DatabaseError("failed to resolve user tenant", err)
	}

	return tenantID, nil
}
