package token

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/truxe-io/heimdall/internal/errors"
)

// InMemoryRefreshTokenStore implements RefreshTokenStore with the same
// single-winner rotation contract as the Postgres store, enforced under a
// mutex.
type InMemoryRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func NewInMemoryRefreshTokenStore() *InMemoryRefreshTokenStore {
	return &InMemoryRefreshTokenStore{tokens: make(map[string]*RefreshToken)}
}

func (s *InMemoryRefreshTokenStore) CreateToken(ctx context.Context, token RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := token
	s.tokens[token.Token] = &stored
	return nil
}

func (s *InMemoryRefreshTokenStore) GetToken(ctx context.Context, token string) (RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tokens[token]
	if !ok {
		return RefreshToken{}, apperrors.RefreshTokenNotFoundError("refresh token not found", nil)
	}
	return *stored, nil
}

func (s *InMemoryRefreshTokenStore) RotateToken(ctx context.Context, token string, successor RefreshToken, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tokens[token]
	if !ok || stored.RevokedAt != nil || !now.Before(stored.ExpiresAt) {
		return false, nil
	}

	revokedAt := now
	replacedBy := successor.Token
	stored.RevokedAt = &revokedAt
	stored.ReplacedBy = &replacedBy

	row := successor
	s.tokens[successor.Token] = &row
	return true, nil
}

func (s *InMemoryRefreshTokenStore) RevokeToken(ctx context.Context, token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tokens[token]
	if !ok || stored.RevokedAt != nil {
		return nil
	}

	revokedAt := now
	stored.RevokedAt = &revokedAt
	return nil
}

func (s *InMemoryRefreshTokenStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for token, stored := range s.tokens {
		if stored.ExpiresAt.Before(now) {
			delete(s.tokens, token)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemoryRefreshTokenStore) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for token, stored := range s.tokens {
		if stored.RevokedAt != nil && stored.RevokedAt.Before(cutoff) {
			delete(s.tokens, token)
			removed++
		}
	}
	return removed, nil
}

// InMemoryRevocationStore implements RevocationStore with a map.
type InMemoryRevocationStore struct {
	mu      sync.Mutex
	markers map[string]RevocationMarker
}

func NewInMemoryRevocationStore() *InMemoryRevocationStore {
	return &InMemoryRevocationStore{markers: make(map[string]RevocationMarker)}
}

func (s *InMemoryRevocationStore) RevokeJTI(ctx context.Context, marker RevocationMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markers[marker.JTI]; !ok {
		s.markers[marker.JTI] = marker
	}
	return nil
}

func (s *InMemoryRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.markers[jti]
	return ok, nil
}

func (s *InMemoryRevocationStore) DeleteExpiredMarkers(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for jti, marker := range s.markers {
		if marker.ExpiresAt.Before(now) {
			delete(s.markers, jti)
			removed++
		}
	}
	return removed, nil
}
