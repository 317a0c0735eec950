// Package auth is the seam to the external credential service. The game
// core never authenticates; it only consumes verified identities attached
// to inbound connections and requests.
package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is an opaque verified participant identity.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Verifier resolves a bearer token to the identity it was issued for.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Registry is an in-process credential issuer standing in for the
// external service: it mints opaque tokens for guest identities and
// verifies them. Suitable for single-node deployments and tests.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]Identity
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]Identity)}
}

// Issue mints a token for a new identity with the given display name.
func (r *Registry) Issue(username string) (string, Identity) {
	id := Identity{ID: uuid.NewString(), Username: username}
	token := uuid.NewString()
	r.mu.Lock()
	r.tokens[token] = id
	r.mu.Unlock()
	return token, id
}

func (r *Registry) Verify(_ context.Context, token string) (Identity, error) {
	r.mu.RLock()
	id, ok := r.tokens[token]
	r.mu.RUnlock()
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}
