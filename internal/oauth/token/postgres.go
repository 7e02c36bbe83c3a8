package token

import (
	"context"
	"errors"
	"time"

	"github.com/truxe-io/heimdall/internal/database"
	apperrors "github.com/truxe-io/heimdall/internal/errors"
)

// PostgresRefreshTokenStore stores refresh tokens in tbl_refresh_token.
type PostgresRefreshTokenStore struct {
	DB *database.Database
}

func NewPostgresRefreshTokenStore(db *database.Database) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{DB: db}
}

func (s *PostgresRefreshTokenStore) CreateToken(ctx context.Context, token RefreshToken) error {
	query := `
		INSERT INTO tbl_refresh_token (
			token, client_id, user_id, scopes, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := s.DB.Exec(ctx, query,
		token.Token,
		token.ClientID,
		token.UserID,
		token.Scopes,
		token.ExpiresAt,
		token.CreatedAt,
	); err != nil {
		return apperrors.DatabaseError("failed to save refresh token", err)
	}

	return nil
}

func (s *PostgresRefreshTokenStore) GetToken(ctx context.Context, token string) (RefreshToken, error) {
	var row RefreshToken

	query := `
		SELECT token, client_id, user_id, scopes, expires_at, created_at, revoked_at, replaced_by
		FROM tbl_refresh_token
		WHERE token = $1
	`

	err := s.DB.QueryRow(ctx, query, token).Scan(
		&row.Token,
		&row.ClientID,
		&row.UserID,
		&row.Scopes,
		&row.ExpiresAt,
		&row.CreatedAt,
		&row.RevokedAt,
		&row.ReplacedBy,
	)

	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return RefreshToken{}, apperrors.RefreshTokenNotFoundError("refresh token not found", err)
		}
		return RefreshToken{}, apperrors.DatabaseError("failed to get refresh token", err)
	}

	return row, nil
}

// RotateToken is the single-winner linearization point for rotation. The
// conditional revoke and the successor insert run in one transaction, so a
// failure on either side rolls back and the presented token stays live.
func (s *PostgresRefreshTokenStore) RotateToken(ctx context.Context, token string, successor RefreshToken, now time.Time) (bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, apperrors.DatabaseError("failed to begin rotation", err)
	}
	defer tx.Rollback(ctx)

	update := `
		UPDATE tbl_refresh_token
		SET revoked_at = $3, replaced_by = $2
		WHERE token = $1 AND revoked_at IS NULL AND expires_at > $3
	`

	tag, err := tx.Exec(ctx, update, token, successor.Token, now)
	if err != nil {
		return false, apperrors.DatabaseError("failed to rotate refresh token", err)
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	insert := `
		INSERT INTO tbl_refresh_token (
			token, client_id, user_id, scopes, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := tx.Exec(ctx, insert,
		successor.Token,
		successor.ClientID,
		successor.UserID,
		successor.Scopes,
		successor.ExpiresAt,
		successor.CreatedAt,
	); err != nil {
		return false, apperrors.DatabaseError("failed to save rotated refresh token", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, apperrors.DatabaseError("failed to commit rotation", err)
	}

	return true, nil
}

func (s *PostgresRefreshTokenStore) RevokeToken(ctx context.Context, token string, now time.Time) error {
	query := `
		UPDATE tbl_refresh_token
		SET revoked_at = $2
		WHERE token = $1 AND revoked_at IS NULL
	`

	if _, err := s.DB.Exec(ctx, query, token, now); err != nil {
		return apperrors.DatabaseError("failed to revoke refresh token", err)
	}

	return nil
}

func (s *PostgresRefreshTokenStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `DELETE FROM tbl_refresh_token WHERE expires_at < $1`, now)
	if err != nil {
		return 0, apperrors.DatabaseError("failed to delete expired refresh tokens", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresRefreshTokenStore) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `DELETE FROM tbl_refresh_token WHERE revoked_at IS NOT NULL AND revoked_at < $1`, cutoff)
	if err != nil {
		return 0, apperrors.DatabaseError("failed to delete revoked refresh tokens", err)
	}
	return tag.RowsAffected(), nil
}

// PostgresRevocationStore stores the access token denylist in
// tbl_revoked_access_token.
type PostgresRevocationStore struct {
	DB *database.Database
}

func NewPostgresRevocationStore(db *database.Database) *PostgresRevocationStore {
	return &PostgresRevocationStore{DB: db}
}

func (s *PostgresRevocationStore) RevokeJTI(ctx context.Context, marker RevocationMarker) error {
	query := `
		INSERT INTO tbl_revoked_access_token (jti, expires_at, revoked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING
	`

	if _, err := s.DB.Exec(ctx, query, marker.JTI, marker.ExpiresAt, marker.RevokedAt); err != nil {
		return apperrors.DatabaseError("failed to record access token revocation", err)
	}

	return nil
}

func (s *PostgresRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var found int

	err := s.DB.QueryRow(ctx, `SELECT 1 FROM tbl_revoked_access_token WHERE jti = $1`, jti).Scan(&found)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return false, nil
		}
		return false, apperrors.DatabaseError("failed to check access token revocation", err)
	}

	return true, nil
}

func (s *PostgresRevocationStore) DeleteExpiredMarkers(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `DELETE FROM tbl_revoked_access_token WHERE expires_at < $1`, now)
	if err != nil {
		return 0, apperrors.DatabaseError("failed to delete expired revocation markers", err)
	}
	return tag.RowsAffected(), nil
}
