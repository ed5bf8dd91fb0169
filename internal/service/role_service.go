package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

// RoleService administers roles and resolves permissions / Administre les rôles et résout les permissions
type RoleService struct {
	roles  ports.RoleRepository
	db     ports.TxBeginner
	cache  ports.PermissionCache
	ttl    time.Duration
	events ports.EventPublisher
}

// NewRoleService creates role service / Crée le service des rôles
func NewRoleService(
	roles ports.RoleRepository,
	db ports.TxBeginner,
	cache ports.PermissionCache,
	ttl time.Duration,
	events ports.EventPublisher,
) *RoleService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RoleService{
		roles:  roles,
		db:     db,
		cache:  cache,
		ttl:    ttl,
		events: publisherOrNoop(events),
	}
}

// Seed creates missing built-in roles, existing ones are left untouched
// Seed crée les rôles intégrés manquants sans toucher aux existants
func (s *RoleService) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, role := range domain.DefaultRoles() {
		_, err := s.roles.Get(ctx, role.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, db.ErrNoRecord) {
			return created, err
		}
		err = withTx(ctx, s.db, func(tx *sql.Tx) error {
			return s.roles.WithTx(tx).Create(ctx, &role)
		})
		if err != nil {
			return created, err
		}
		created++
		slog.Info("role seeded", "role", role.Name)
	}
	return created, nil
}

// ListPermissions returns the permission catalog / Retourne le catalogue des permissions
func (s *RoleService) ListPermissions() []domain.Permission {
	return domain.AllPermissions()
}

// List returns every role / Retourne tous les rôles
func (s *RoleService) List(ctx context.Context) ([]*domain.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, storeErr(err, labelRole)
	}
	return roles, nil
}

// Get returns one role / Retourne un rôle
func (s *RoleService) Get(ctx context.Context, name string) (*domain.Role, error) {
	role, err := s.roles.Get(ctx, name)
	if err != nil {
		return nil, storeErr(err, labelRole)
	}
	return role, nil
}

// Create adds a custom role / Ajoute un rôle personnalisé
func (s *RoleService) Create(ctx context.Context, role *domain.Role) (*domain.Role, error) {
	role.Name = strings.ToLower(strings.TrimSpace(role.Name))
	role.System = false
	role.Permissions = compactPermissions(role.Permissions)
	if err := role.Validate().Err(); err != nil {
		return nil, err
	}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.roles.WithTx(tx).Create(ctx, role)
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, apperr.Conflict("Un rôle existe déjà avec ce nom")
		}
		return nil, storeErr(err, labelRole)
	}

	s.events.Publish(ctx, domain.NewEvent(resourceRole, domain.ActionCreated, role.Name))
	return role, nil
}

// Update saves libelle, description and permission set / Enregistre libellé, description et permissions
func (s *RoleService) Update(ctx context.Context, name string, input *domain.Role) (*domain.Role, error) {
	role, err := s.roles.Get(ctx, name)
	if err != nil {
		return nil, storeErr(err, labelRole)
	}

	role.Libelle = strings.TrimSpace(input.Libelle)
	role.Description = strings.TrimSpace(input.Description)
	perms := compactPermissions(input.Permissions)
	if role.Name == domain.RoleAdmin && !slices.Equal(perms, []domain.Permission{domain.PermissionAll}) {
		return nil, apperr.Invalid("Les permissions du rôle administrateur ne peuvent pas être modifiées")
	}
	role.Permissions = perms
	if err := role.Validate().Err(); err != nil {
		return nil, err
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.roles.WithTx(tx)
		if err := repo.Update(ctx, role); err != nil {
			return err
		}
		return repo.SetPermissions(ctx, role.Name, role.Permissions)
	})
	if err != nil {
		return nil, storeErr(err, labelRole)
	}

	s.cache.Invalidate(ctx, role.Name)
	s.events.Publish(ctx, domain.NewEvent(resourceRole, domain.ActionUpdated, role.Name))
	return role, nil
}

// Delete removes a custom role no user holds / Supprime un rôle personnalisé non attribué
func (s *RoleService) Delete(ctx context.Context, name string) error {
	role, err := s.roles.Get(ctx, name)
	if err != nil {
		return storeErr(err, labelRole)
	}
	if role.System {
		return apperr.Conflict("Un rôle système ne peut pas être supprimé")
	}
	n, err := s.roles.CountUsers(ctx, name)
	if err != nil {
		return storeErr(err, labelRole)
	}
	if n > 0 {
		return apperr.Conflict("Ce rôle est attribué à des utilisateurs")
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.roles.WithTx(tx).Delete(ctx, name)
	})
	if err != nil {
		return storeErr(err, labelRole)
	}

	s.cache.Invalidate(ctx, name)
	s.events.Publish(ctx, domain.NewEvent(resourceRole, domain.ActionDeleted, name))
	return nil
}

// Permissions resolves role permissions through the cache / Résout les permissions du rôle via le cache
func (s *RoleService) Permissions(ctx context.Context, role string) (domain.PermissionSet, error) {
	if perms, ok := s.cache.Get(ctx, role); ok {
		return perms, nil
	}
	perms, err := s.roles.PermissionsForRole(ctx, role)
	if err != nil {
		return nil, storeErr(err, labelRole)
	}
	s.cache.Set(ctx, role, perms, s.ttl)
	return perms, nil
}

// RoleHasPermission checks requested permission with wildcards / Vérifie la permission demandée avec jokers
func (s *RoleService) RoleHasPermission(ctx context.Context, role string, perm domain.Permission) (bool, error) {
	perms, err := s.Permissions(ctx, role)
	if err != nil {
		return false, err
	}
	return perms.Allows(perm), nil
}

// compactPermissions sorts and removes duplicates / Trie et dédoublonne
func compactPermissions(perms []domain.Permission) []domain.Permission {
	out := slices.Clone(perms)
	slices.Sort(out)
	return slices.Compact(out)
}
