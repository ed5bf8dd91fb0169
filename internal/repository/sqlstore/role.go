package sqlstore

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

var _ ports.RoleRepository = (*roleRepository)(nil)

type roleRepository struct {
	base
}

// NewRoleRepository creates role repository / Crée le repository des rôles
func NewRoleRepository(conn ports.DBTX, d db.Dialect) ports.RoleRepository {
	return &roleRepository{base{db: conn, d: d}}
}

func (r *roleRepository) WithTx(tx ports.DBTX) ports.RoleRepository {
	return &roleRepository{base{db: tx, d: r.d}}
}

func scanRole(s scanner) (*domain.Role, error) {
	role := &domain.Role{}
	err := s.Scan(&role.Name, &role.Libelle, &role.Description, &role.System, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

// List returns roles with permissions / Retourne les rôles avec leurs permissions
func (r *roleRepository) List(ctx context.Context) ([]*domain.Role, error) {
	rows, err := r.query(ctx, `SELECT name, libelle, description, is_system, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	roles, err := collect(rows, scanRole)
	if err != nil {
		return nil, r.err(err)
	}

	perms, err := r.allPermissions(ctx)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		role.Permissions = perms[role.Name]
	}
	return roles, nil
}

func (r *roleRepository) allPermissions(ctx context.Context) (map[string][]domain.Permission, error) {
	rows, err := r.query(ctx, `SELECT role, permission FROM role_permissions ORDER BY role, permission`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.Permission)
	for rows.Next() {
		var role, perm string
		if err := rows.Scan(&role, &perm); err != nil {
			return nil, r.err(err)
		}
		out[role] = append(out[role], domain.Permission(perm))
	}
	return out, r.err(rows.Err())
}

// Get returns role with permissions / Retourne le rôle avec ses permissions
func (r *roleRepository) Get(ctx context.Context, name string) (*domain.Role, error) {
	role, err := scanRole(r.queryRow(ctx,
		`SELECT name, libelle, description, is_system, created_at, updated_at FROM roles WHERE name = ?`, name))
	if err != nil {
		return nil, r.err(err)
	}
	role.Permissions, err = r.PermissionsForRole(ctx, name)
	if err != nil {
		return nil, err
	}
	return role, nil
}

// Create inserts role and its permissions / Insère le rôle et ses permissions
func (r *roleRepository) Create(ctx context.Context, role *domain.Role) error {
	role.Touch(time.Now().UTC())
	if _, err := r.exec(ctx,
		`INSERT INTO roles (name, libelle, description, is_system, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		role.Name, role.Libelle, role.Description, role.System, role.CreatedAt, role.UpdatedAt,
	); err != nil {
		return err
	}
	return r.SetPermissions(ctx, role.Name, role.Permissions)
}

// Update saves libelle and description / Enregistre libellé et description
func (r *roleRepository) Update(ctx context.Context, role *domain.Role) error {
	role.UpdatedAt = time.Now().UTC()
	return r.execAffected(ctx,
		`UPDATE roles SET libelle = ?, description = ?, updated_at = ? WHERE name = ?`,
		role.Libelle, role.Description, role.UpdatedAt, role.Name,
	)
}

// Delete removes role (permissions cascade) / Supprime le rôle (permissions en cascade)
func (r *roleRepository) Delete(ctx context.Context, name string) error {
	if _, err := r.exec(ctx, `DELETE FROM role_permissions WHERE role = ?`, name); err != nil {
		return err
	}
	return r.execAffected(ctx, `DELETE FROM roles WHERE name = ?`, name)
}

// SetPermissions replaces role permissions / Remplace les permissions du rôle
func (r *roleRepository) SetPermissions(ctx context.Context, name string, perms []domain.Permission) error {
	if _, err := r.exec(ctx, `DELETE FROM role_permissions WHERE role = ?`, name); err != nil {
		return err
	}
	seen := make(map[domain.Permission]bool, len(perms))
	for _, p := range perms {
		if seen[p] {
			continue
		}
		seen[p] = true
		if _, err := r.exec(ctx, `INSERT INTO role_permissions (role, permission) VALUES (?, ?)`, name, p.String()); err != nil {
			return err
		}
	}
	return nil
}

// PermissionsForRole retrieves permissions for role / Récupère les permissions du rôle
func (r *roleRepository) PermissionsForRole(ctx context.Context, name string) ([]domain.Permission, error) {
	rows, err := r.query(ctx, `SELECT permission FROM role_permissions WHERE role = ? ORDER BY permission`, name)
	if err != nil {
		return nil, err
	}
	perms, err := collect(rows, func(s scanner) (domain.Permission, error) {
		var p string
		err := s.Scan(&p)
		return domain.Permission(p), err
	})
	return perms, r.err(err)
}

// CountUsers counts users holding role / Compte les utilisateurs ayant le rôle
func (r *roleRepository) CountUsers(ctx context.Context, name string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, name)
}
