// Package cache holds the role-permission caches used by the RBAC service.
// Package cache contient les caches de permissions par rôle du service RBAC.
package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
)

var _ ports.PermissionCache = (*Memory)(nil)

type entry struct {
	perms     []domain.Permission
	expiresAt time.Time
}

// Memory is a process-local TTL cache / Cache TTL local au processus
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates empty memory cache / Crée un cache mémoire vide
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns cached permissions if not expired / Retourne les permissions si non expirées
func (m *Memory) Get(_ context.Context, role string) ([]domain.Permission, bool) {
	m.mu.RLock()
	e, ok := m.entries[role]
	m.mu.RUnlock()

	if !ok || !m.now().Before(e.expiresAt) {
		return nil, false
	}
	return slices.Clone(e.perms), true
}

// Set stores permissions for ttl / Stocke les permissions pour ttl
func (m *Memory) Set(_ context.Context, role string, perms []domain.Permission, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.entries[role] = entry{perms: slices.Clone(perms), expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}

// Invalidate drops one role, or every role when role is empty
// Invalidate supprime un rôle, ou tous les rôles si role est vide
func (m *Memory) Invalidate(_ context.Context, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if role == "" {
		m.entries = make(map[string]entry)
		return
	}
	delete(m.entries, role)
}
