package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/truxe-io/heimdall/internal/errors"
)

// InMemoryDirectory is a ClientStore and UserStore backed by maps. It backs
// the test suites and single-process deployments that embed the core.
type InMemoryDirectory struct {
	mu      sync.RWMutex
	clients map[string]Client
	users   map[uuid.UUID]User
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		clients: make(map[string]Client),
		users:   make(map[uuid.UUID]User),
	}
}

func (d *InMemoryDirectory) PutClient(client Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[client.ClientID] = client
}

func (d *InMemoryDirectory) PutUser(user User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

func (d *InMemoryDirectory) GetClient(ctx context.Context, clientID string) (Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	client, ok := d.clients[clientID]
	if !ok {
		return Client{}, apperrors.ClientNotFoundError(fmt.Sprintf("client %s not found", clientID), nil)
	}
	return client, nil
}

func (d *InMemoryDirectory) GetUser(ctx context.Context, userID uuid.UUID) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[userID]
	if !ok {
		return User{}, apperrors.UserNotFoundError(fmt.Sprintf("user %s not found", userID), nil)
	}
	return user, nil
}

func (d *InMemoryDirectory) TenantOf(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := d.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.TenantID, nil
}
