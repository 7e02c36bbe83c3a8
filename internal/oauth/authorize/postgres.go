package authorize

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/truxe-io/heimdall/internal/database"
	apperrors "github.com/truxe-io/heimdall/internal/errors"
)

// PostgresCodeStore stores authorization codes in tbl_authorization_code.
type PostgresCodeStore struct {
	DB *database.Database
}

func NewPostgresCodeStore(db *database.Database) *PostgresCodeStore {
	return &PostgresCodeStore{DB: db}
}

func (s *PostgresCodeStore) CreateCode(ctx context.Context, code AuthorizationCode) error {
	query := `
		INSERT INTO tbl_authorization_code (
			code, client_id, user_id, scopes, redirect_uri,
			code_challenge, code_challenge_method, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if _, err := s.DB.Exec(ctx, query,
		code.Code,
		code.ClientID,
		code.UserID,
		code.Scopes,
		code.RedirectURI,
		code.CodeChallenge,
		code.CodeChallengeMethod,
		code.ExpiresAt,
		code.CreatedAt,
	); err != nil {
		return apperrors.DatabaseError("failed to save authorization code", err)
	}

	return nil
}

func (s *PostgresCodeStore) GetCode(ctx context.Context, code string) (AuthorizationCode, error) {
	var row AuthorizationCode

	query := `
		SELECT code, client_id, user_id, scopes, redirect_uri,
		       code_challenge, code_challenge_method, expires_at, created_at, consumed_at
		FROM tbl_authorization_code
		WHERE code = $1
	`

	err := s.DB.QueryRow(ctx, query, code).Scan(
		&row.Code,
		&row.ClientID,
		&row.UserID,
		&row.Scopes,
		&row.RedirectURI,
		&row.CodeChallenge,
		&row.CodeChallengeMethod,
		&row.ExpiresAt,
		&row.CreatedAt,
		&row.ConsumedAt,
	)

	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return AuthorizationCode{}, apperrors.CodeNotFoundError("authorization code not found", err)
		}
		return AuthorizationCode{}, apperrors.DatabaseError("failed to get authorization code", err)
	}

	return row, nil
}

// ConsumeCode is the single-winner linearization point: the conditional
// update commits at most once per code, whatever the application layer saw
// beforehand.
func (s *PostgresCodeStore) ConsumeCode(ctx context.Context, code string, now time.Time) (bool, error) {
	query := `
		UPDATE tbl_authorization_code
		SET consumed_at = $2
		WHERE code = $1 AND consumed_at IS NULL AND expires_at > $2
	`

	tag, err := s.DB.Exec(ctx, query, code, now)
	if err != nil {
		return false, apperrors.DatabaseError("failed to consume authorization code", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *PostgresCodeStore) DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `DELETE FROM tbl_authorization_code WHERE expires_at < $1`, now)
	if err != nil {
		return 0, apperrors.DatabaseError("failed to delete expired authorization codes", err)
	}
	return tag.RowsAffected(), nil
}

// PostgresConsentStore stores consent grants in tbl_user_consent.
type PostgresConsentStore struct {
	DB *database.Database
}

func NewPostgresConsentStore(db *database.Database) *PostgresConsentStore {
	return &PostgresConsentStore{DB: db}
}

func (s *PostgresConsentStore) UpsertConsent(ctx context.Context, consent Consent) error {
	query := `
		INSERT INTO tbl_user_consent (id, user_id, client_id, granted_scopes, granted_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, NULL)
		ON CONFLICT (user_id, client_id)
		DO UPDATE SET granted_scopes = $4, granted_at = $5, revoked_at = NULL
	`

	if _, err := s.DB.Exec(ctx, query,
		consent.ID,
		consent.UserID,
		consent.ClientID,
		consent.GrantedScopes,
		consent.GrantedAt,
	); err != nil {
		return apperrors.DatabaseError("failed to upsert consent", err)
	}

	return nil
}

func (s *PostgresConsentStore) GetConsent(ctx context.Context, userID uuid.UUID, clientID string) (Consent, bool, error) {
	var consent Consent

	query := `
		SELECT id, user_id, client_id, granted_scopes, granted_at, revoked_at
		FROM tbl_user_consent
		WHERE user_id = $1 AND client_id = $2
	`

	err := s.DB.QueryRow(ctx, query, userID, clientID).Scan(
		&consent.ID,
		&consent.UserID,
		&consent.ClientID,
		&consent.GrantedScopes,
		&consent.GrantedAt,
		&consent.RevokedAt,
	)

	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return Consent{}, false, nil
		}
		return Consent{}, false, apperrors.DatabaseError("failed to get consent", err)
	}

	return consent, true, nil
}

func (s *PostgresConsentStore) RevokeConsent(ctx context.Context, userID uuid.UUID, clientID string) error {
	query := `
		UPDATE tbl_user_consent
		SET revoked_at = NOW()
		WHERE user_id = $1 AND client_id = $2 AND revoked_at IS NULL
	`

	if _, err := s.DB.Exec(ctx, query, userID, clientID); err != nil {
		return apperrors.DatabaseError("failed to revoke consent", err)
	}

	return nil
}
