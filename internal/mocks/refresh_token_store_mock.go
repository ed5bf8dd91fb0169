package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
)

var _ ports.RefreshTokenStore = (*MockRefreshTokenStore)(nil)

// MockRefreshTokenStore keeps tokens in a map keyed by value; Err fails every call
type MockRefreshTokenStore struct {
	mu         sync.Mutex
	Tokens     map[string]*domain.RefreshToken
	Err        error
	PurgeCalls int
}

func NewMockRefreshTokenStore() *MockRefreshTokenStore {
	return &MockRefreshTokenStore{Tokens: map[string]*domain.RefreshToken{}}
}

// update runs fn under the lock unless Err is set
func (m *MockRefreshTokenStore) update(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	return fn()
}

func (m *MockRefreshTokenStore) Save(_ context.Context, token *domain.RefreshToken) error {
	return m.update(func() error {
		cp := *token
		m.Tokens[token.Token] = &cp
		return nil
	})
}

func (m *MockRefreshTokenStore) Get(_ context.Context, value string) (*domain.RefreshToken, error) {
	var out *domain.RefreshToken
	err := m.update(func() error {
		token, ok := m.Tokens[value]
		if !ok {
			return ports.ErrNotFound
		}
		cp := *token
		out = &cp
		return nil
	})
	return out, err
}

func (m *MockRefreshTokenStore) Revoke(_ context.Context, value string) error {
	return m.update(func() error {
		token, ok := m.Tokens[value]
		if !ok {
			return ports.ErrNotFound
		}
		token.IsRevoked = true
		return nil
	})
}

func (m *MockRefreshTokenStore) RevokeAllForUser(_ context.Context, userID int64) error {
	return m.update(func() error {
		for _, token := range m.Tokens {
			if token.UserID == userID {
				token.IsRevoked = true
			}
		}
		return nil
	})
}

func (m *MockRefreshTokenStore) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	var n int64
	err := m.update(func() error {
		m.PurgeCalls++
		for value, token := range m.Tokens {
			if token.ExpiresAt.Before(before) {
				delete(m.Tokens, value)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (m *MockRefreshTokenStore) WithTx(ports.DBTX) ports.RefreshTokenStore { return m }

// Active counts the user's tokens still usable for a refresh / Compte les tokens encore utilisables
func (m *MockRefreshTokenStore) Active(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, token := range m.Tokens {
		if token.UserID == userID && !token.IsRevoked {
			n++
		}
	}
	return n
}
