package dto

import (
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
)

// UserDTOResponse is the public view of an account / Vue publique d'un compte
// Password hash, reset token and lockout counters never leave the server.
type UserDTOResponse struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Nom        string    `json:"nom"`
	Prenom     string    `json:"prenom,omitempty"`
	Role       string    `json:"role"`
	Actif      bool      `json:"actif"`
	UoID       *int64    `json:"uoId,omitempty"`
	Verrouille bool      `json:"verrouille,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// UserToDTO converts domain.User / Convertit domain.User
func UserToDTO(user *domain.User) *UserDTOResponse {
	return &UserDTOResponse{
		ID:         user.ID,
		Email:      user.Email,
		Nom:        user.Nom,
		Prenom:     user.Prenom,
		Role:       user.Role,
		Actif:      user.Actif,
		UoID:       user.UoID,
		Verrouille: user.IsLocked(),
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}

// UsersToDTO converts a page of users / Convertit une page d'utilisateurs
func UsersToDTO(users []*domain.User) []*UserDTOResponse {
	out := make([]*UserDTOResponse, 0, len(users))
	for _, u := range users {
		out = append(out, UserToDTO(u))
	}
	return out
}

// MeDTOResponse is the session restoration payload / Réponse de restauration de session
type MeDTOResponse struct {
	*UserDTOResponse
	Permissions []domain.Permission `json:"permissions"`
}

// MeToDTO adds resolved permissions / Ajoute les permissions résolues
func MeToDTO(user *domain.User, perms []domain.Permission) *MeDTOResponse {
	if perms == nil {
		perms = []domain.Permission{}
	}
	return &MeDTOResponse{UserDTOResponse: UserToDTO(user), Permissions: perms}
}

// LoginDTOReq is the login request / Requête de connexion
type LoginDTOReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserCreateDTOReq is the admin account creation request / Requête de création de compte
type UserCreateDTOReq struct {
	Email  string `json:"email"`
	Nom    string `json:"nom"`
	Prenom string `json:"prenom"`
	Role   string `json:"role"`
	UoID   *int64 `json:"uoId"`
}

// ToDomain builds an active account without password / Construit un compte actif sans mot de passe
func (r UserCreateDTOReq) ToDomain() *domain.User {
	return &domain.User{
		Email:  r.Email,
		Nom:    r.Nom,
		Prenom: r.Prenom,
		Role:   r.Role,
		UoID:   r.UoID,
		Actif:  true,
	}
}

// PasswordResetRequestDTO is DTO for password reset request / Est le DTO pour la demande de réinitialisation
type PasswordResetRequestDTO struct {
	Email string `json:"email"`
}

// PasswordResetDTO completes a reset or an activation / Termine une réinitialisation ou une activation
type PasswordResetDTO struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ChangePasswordDTO is the own-password change / Changement de son mot de passe
type ChangePasswordDTO struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
