package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleService_SeedIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	n, err := e.roles.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "roles already seeded by newEnv")

	roles, err := e.roles.List(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, len(domain.DefaultRoles()))
}

func TestRoleService_Permissions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tests := []struct {
		role string
		perm domain.Permission
		want bool
	}{
		{domain.RoleAdmin, domain.PermissionUsersDelete, true},
		{domain.RoleComptable, domain.PermissionPcgDelete, true},
		{domain.RoleComptable, domain.PermissionSessionsValidate, false},
		{domain.RoleCaissier, domain.PermissionSessionsSell, true},
		{domain.RoleCaissier, domain.PermissionSessionsValidate, false},
		{domain.RoleAgentCommercial, domain.PermissionAbonnementsManage, true},
		{"inconnu", domain.PermissionPcgRead, false},
	}
	for _, tt := range tests {
		t.Run(tt.role+" "+tt.perm.String(), func(t *testing.T) {
			ok, err := e.roles.RoleHasPermission(ctx, tt.role, tt.perm)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestRoleService_UpdateInvalidatesCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ok, err := e.roles.RoleHasPermission(ctx, domain.RoleCaissier, domain.PermissionAbonnesRead)
	require.NoError(t, err)
	assert.False(t, ok)

	caissier, err := e.roles.Get(ctx, domain.RoleCaissier)
	require.NoError(t, err)
	caissier.Permissions = append(caissier.Permissions, domain.PermissionAbonnesRead, domain.PermissionAbonnesRead)
	updated, err := e.roles.Update(ctx, domain.RoleCaissier, caissier)
	require.NoError(t, err)
	assert.Contains(t, updated.Permissions, domain.PermissionAbonnesRead)

	ok, err = e.roles.RoleHasPermission(ctx, domain.RoleCaissier, domain.PermissionAbonnesRead)
	require.NoError(t, err)
	assert.True(t, ok, "cached set is dropped on update")
	assert.Contains(t, e.events.Types(), "role.updated")
}

func TestRoleService_Guards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	admin, err := e.roles.Get(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	admin.Permissions = []domain.Permission{domain.PermissionPcgRead}
	_, err = e.roles.Update(ctx, domain.RoleAdmin, admin)
	assert.Equal(t, http.StatusBadRequest, status(err), "admin keeps *:*")

	assert.Equal(t, http.StatusConflict, status(e.roles.Delete(ctx, domain.RoleCaissier)), "system role")

	custom, err := e.roles.Create(ctx, &domain.Role{Name: " Auditeur ", Libelle: "Auditeur", Permissions: []domain.Permission{domain.PermissionEcrituresRead}})
	require.NoError(t, err)
	assert.Equal(t, "auditeur", custom.Name)

	_, err = e.roles.Create(ctx, &domain.Role{Name: "auditeur", Libelle: "Doublon"})
	assert.Equal(t, http.StatusConflict, status(err))

	_, err = e.roles.Create(ctx, &domain.Role{Name: "lecteur", Libelle: "Lecteur", Permissions: []domain.Permission{"caisse:voler"}})
	assert.Equal(t, http.StatusBadRequest, status(err))

	e.user(t, "audit@peages.bf", "auditeur")
	assert.Equal(t, http.StatusConflict, status(e.roles.Delete(ctx, "auditeur")), "role still held")

	assert.Equal(t, http.StatusNotFound, status(e.roles.Delete(ctx, "fantome")))
}
