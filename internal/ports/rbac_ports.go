package ports

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
)

// RoleRepository persists roles and their permissions / Persiste les rôles et leurs permissions
type RoleRepository interface {
	List(ctx context.Context) ([]*domain.Role, error)
	Get(ctx context.Context, name string) (*domain.Role, error)
	Create(ctx context.Context, role *domain.Role) error
	Update(ctx context.Context, role *domain.Role) error
	Delete(ctx context.Context, name string) error
	// SetPermissions replaces role permissions / Remplace les permissions du rôle
	SetPermissions(ctx context.Context, name string, perms []domain.Permission) error
	PermissionsForRole(ctx context.Context, name string) ([]domain.Permission, error)
	CountUsers(ctx context.Context, name string) (int, error)
	WithTx(tx DBTX) RoleRepository
}

// PermissionCache caches resolved permissions per role / Met en cache les permissions résolues par rôle
type PermissionCache interface {
	Get(ctx context.Context, role string) ([]domain.Permission, bool)
	Set(ctx context.Context, role string, perms []domain.Permission, ttl time.Duration)
	Invalidate(ctx context.Context, role string)
}
