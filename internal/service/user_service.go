package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles user management operations / Gère les opérations de gestion des utilisateurs
type UserService struct {
	users        ports.UserRepository
	refreshStore ports.RefreshTokenStore
	roles        *RoleService
	inviter      Inviter
	conf         *config.Config
	events       ports.EventPublisher
	metrics      UserMetricsRecorder
}

// Inviter sends account activation links / Envoie les liens d'activation de compte
type Inviter interface {
	Invite(ctx context.Context, user *domain.User) error
}

// UserMetricsRecorder records user metrics / Enregistre les métriques utilisateur
type UserMetricsRecorder interface {
	RecordUserCreated()
}

// UserUpdate carries the editable profile fields, nil means unchanged
// UserUpdate porte les champs modifiables, nil signifie inchangé
type UserUpdate struct {
	Nom    *string `json:"nom"`
	Prenom *string `json:"prenom"`
	Role   *string `json:"role"`
	Actif  *bool   `json:"actif"`
	UoID   *int64  `json:"uoId"`
}

// NewUserService creates user management service instance / Crée une instance de service de gestion utilisateur
func NewUserService(
	repo ports.UserRepository,
	refreshStore ports.RefreshTokenStore,
	roles *RoleService,
	inviter Inviter,
	conf *config.Config,
	events ports.EventPublisher,
	metrics UserMetricsRecorder,
) *UserService {
	return &UserService{
		users:        repo,
		refreshStore: refreshStore,
		roles:        roles,
		inviter:      inviter,
		conf:         conf,
		events:       publisherOrNoop(events),
		metrics:      metrics,
	}
}

// CreateUser creates an account and emails an activation link / Crée un compte et envoie un lien d'activation
func (s *UserService) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Nom = strings.TrimSpace(u.Nom)
	u.Prenom = strings.TrimSpace(u.Prenom)
	u.Password = ""
	u.Actif = true

	errs := u.Validate()
	if u.Role != "" {
		if err := s.checkRole(ctx, u.Role); err != nil {
			errs.Add(err.Error())
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, apperr.Conflict("Un utilisateur existe déjà avec cet email")
		}
		if errors.Is(err, db.ErrForeignKeyViolation) {
			return nil, apperr.Invalid("L'unité organisationnelle n'existe pas")
		}
		return nil, storeErr(err, labelUser)
	}

	if s.metrics != nil {
		s.metrics.RecordUserCreated()
	}
	if err := s.inviter.Invite(ctx, u); err != nil {
		slog.Error("failed to send invitation", "user_id", u.ID, "err", err)
	}

	s.events.Publish(ctx, domain.NewEvent(resourceUser, domain.ActionCreated, u.ID))
	return u, nil
}

// CreateAdmin creates an active administrator with a password, used by the CLI
// CreateAdmin crée un administrateur actif avec mot de passe, utilisé par la CLI
func (s *UserService) CreateAdmin(ctx context.Context, email, password, nom string) (*domain.User, error) {
	if !isStrongPassword(password) {
		return nil, apperr.Invalid(weakPasswordMessage)
	}
	if nom == "" {
		nom = "Administrateur"
	}

	u := &domain.User{
		Email: strings.ToLower(strings.TrimSpace(email)),
		Nom:   nom,
		Role:  domain.RoleAdmin,
		Actif: true,
	}
	if err := u.Validate().Err(); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.conf.Security.BcryptCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	u.Password = string(hashedPassword)

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, apperr.Conflict("Un utilisateur existe déjà avec cet email")
		}
		return nil, storeErr(err, labelUser)
	}
	if s.metrics != nil {
		s.metrics.RecordUserCreated()
	}
	return u, nil
}

// GetUser retrieves a user by their ID / Récupère un utilisateur par son ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelUser)
	}
	return user, nil
}

// ListUsers retrieves paginated users / Récupère les utilisateurs paginés
func (s *UserService) ListUsers(ctx context.Context, page Page) ([]*domain.User, int, error) {
	users, total, err := s.users.List(ctx, page.Offset(), page.Size())
	if err != nil {
		slog.Error("failed to list users", "err", err, "page", page.Page)
		return nil, 0, storeErr(err, labelUser)
	}
	return users, total, nil
}

// UpdateUser edits profile, role and activation / Modifie le profil, le rôle et l'activation
func (s *UserService) UpdateUser(ctx context.Context, actorID, id int64, in UserUpdate) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelUser)
	}

	if in.Nom != nil {
		user.Nom = strings.TrimSpace(*in.Nom)
	}
	if in.Prenom != nil {
		user.Prenom = strings.TrimSpace(*in.Prenom)
	}
	if in.UoID != nil {
		if *in.UoID > 0 {
			user.UoID = in.UoID
		} else {
			user.UoID = nil
		}
	}

	errs := user.Validate()
	if in.Role != nil && *in.Role != user.Role {
		if actorID == id {
			errs.Add("Vous ne pouvez pas modifier votre propre rôle")
		} else if err := s.checkRole(ctx, *in.Role); err != nil {
			errs.Add(err.Error())
		}
		user.Role = *in.Role
	}
	deactivated := false
	if in.Actif != nil && *in.Actif != user.Actif {
		if actorID == id && !*in.Actif {
			errs.Add("Vous ne pouvez pas désactiver votre propre compte")
		}
		deactivated = !*in.Actif
		user.Actif = *in.Actif
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, db.ErrForeignKeyViolation) {
			return nil, apperr.Invalid("L'unité organisationnelle n'existe pas")
		}
		return nil, storeErr(err, labelUser)
	}

	if deactivated {
		if err := s.refreshStore.RevokeAllForUser(ctx, id); err != nil {
			slog.Error("failed to revoke tokens of deactivated user", "user_id", id, "err", err)
		}
	}

	s.events.Publish(ctx, domain.NewEvent(resourceUser, domain.ActionUpdated, user.ID))
	return user, nil
}

// DeleteUser permanently removes a user / Supprime définitivement un utilisateur
func (s *UserService) DeleteUser(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return apperr.Invalid("Vous ne pouvez pas supprimer votre propre compte")
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return storeErr(err, labelUser)
	}

	if err := s.refreshStore.RevokeAllForUser(ctx, userID); err != nil {
		slog.Error("failed to revoke tokens during user deletion", "user_id", userID, "err", err)
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, db.ErrForeignKeyViolation) {
			return apperr.Conflict("Cet utilisateur a des sessions de caisse, désactivez-le plutôt")
		}
		slog.Error("failed to delete user", "user_id", userID, "err", err)
		return storeErr(err, labelUser)
	}

	s.events.Publish(ctx, domain.NewEvent(resourceUser, domain.ActionDeleted, userID))
	return nil
}

// CountByRole returns user count per role / Retourne le nombre d'utilisateurs par rôle
func (s *UserService) CountByRole(ctx context.Context) (map[string]int, error) {
	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, storeErr(err, labelUser)
	}
	return counts, nil
}

// HasPermission checks an active user's role grants perm / Vérifie que le rôle d'un utilisateur actif accorde perm
func (s *UserService) HasPermission(ctx context.Context, userID int64, perm domain.Permission) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNoRecord) {
			return false, nil
		}
		return false, err
	}
	if !user.Actif {
		return false, nil
	}
	return s.roles.RoleHasPermission(ctx, user.Role, perm)
}

func (s *UserService) checkRole(ctx context.Context, role string) error {
	if _, err := s.roles.Get(ctx, role); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return errors.New("Rôle inconnu : " + role)
		}
		return err
	}
	return nil
}
