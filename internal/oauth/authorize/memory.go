package authorize

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/truxe-io/heimdall/internal/errors"
)

// InMemoryCodeStore implements CodeStore with the same single-winner
// consumption contract as the Postgres store, enforced under a mutex.
type InMemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]*AuthorizationCode
}

func NewInMemoryCodeStore() *InMemoryCodeStore {
	return &InMemoryCodeStore{codes: make(map[string]*AuthorizationCode)}
}

func (s *InMemoryCodeStore) CreateCode(ctx context.Context, code AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := code
	s.codes[code.Code] = &stored
	return nil
}

func (s *InMemoryCodeStore) GetCode(ctx context.Context, code string) (AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.codes[code]
	if !ok {
		return AuthorizationCode{}, apperrors.CodeNotFoundError("authorization code not found", nil)
	}
	return *stored, nil
}

func (s *InMemoryCodeStore) ConsumeCode(ctx context.Context, code string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.codes[code]
	if !ok || stored.ConsumedAt != nil || !now.Before(stored.ExpiresAt) {
		return false, nil
	}

	consumedAt := now
	stored.ConsumedAt = &consumedAt
	return true, nil
}

func (s *InMemoryCodeStore) DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for code, stored := range s.codes {
		if stored.ExpiresAt.Before(now) {
			delete(s.codes, code)
			removed++
		}
	}
	return removed, nil
}

// InMemoryConsentStore implements ConsentStore with maps.
type InMemoryConsentStore struct {
	mu       sync.Mutex
	consents map[consentKey]*Consent
}

type consentKey struct {
	userID   uuid.UUID
	clientID string
}

func NewInMemoryConsentStore() *InMemoryConsentStore {
	return &InMemoryConsentStore{consents: make(map[consentKey]*Consent)}
}

func (s *InMemoryConsentStore) UpsertConsent(ctx context.Context, consent Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := consent
	stored.RevokedAt = nil
	s.consents[consentKey{consent.UserID, consent.ClientID}] = &stored
	return nil
}

func (s *InMemoryConsentStore) GetConsent(ctx context.Context, userID uuid.UUID, clientID string) (Consent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.consents[consentKey{userID, clientID}]
	if !ok {
		return Consent{}, false, nil
	}
	return *stored, true, nil
}

func (s *InMemoryConsentStore) RevokeConsent(ctx context.Context, userID uuid.UUID, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.consents[consentKey{userID, clientID}]
	if !ok || stored.RevokedAt != nil {
		return nil
	}

	revokedAt := time.Now()
	stored.RevokedAt = &revokedAt
	return nil
}
