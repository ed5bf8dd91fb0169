package dto_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserToDTO(t *testing.T) {
	until := time.Now().Add(time.Hour)
	user := &domain.User{
		ID:          123,
		Email:       "awa@peages.bf",
		Password:    "$2a$12$hash",
		Nom:         "Ouédraogo",
		Prenom:      "Awa",
		Role:        domain.RoleCaissier,
		Actif:       true,
		LockedUntil: &until,
	}

	out := dto.UserToDTO(user)
	assert.Equal(t, user.ID, out.ID)
	assert.Equal(t, user.Email, out.Email)
	assert.Equal(t, domain.RoleCaissier, out.Role)
	assert.True(t, out.Verrouille)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hash")
	assert.NotContains(t, string(raw), "permissions")
}

func TestMeToDTO(t *testing.T) {
	user := &domain.User{ID: 1, Email: "c@peages.bf", Role: domain.RoleCaissier, Actif: true}

	raw, err := json.Marshal(dto.MeToDTO(user, nil))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"permissions":[]`, "empty set is explicit for the UI")

	out := dto.MeToDTO(user, []domain.Permission{domain.PermissionSessionsSell})
	assert.Equal(t, []domain.Permission{domain.PermissionSessionsSell}, out.Permissions)
}

func TestUserCreateDTOReq_ToDomain(t *testing.T) {
	uo := int64(4)
	u := dto.UserCreateDTOReq{Email: "a@peages.bf", Nom: "N", Role: domain.RoleComptable, UoID: &uo}.ToDomain()
	assert.True(t, u.Actif)
	assert.Empty(t, u.Password)
	assert.Equal(t, &uo, u.UoID)
}
