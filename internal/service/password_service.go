package service

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
	"golang.org/x/crypto/bcrypt"
)

//go:embed templates/*.html
var emailTemplateFS embed.FS

// PasswordService handles password operations / Gère les opérations de mot de passe
type PasswordService struct {
	users        ports.UserRepository
	refreshStore ports.RefreshTokenStore
	emailSender  ports.EmailSender
	conf         *config.Config
	templates    *template.Template
}

// NewPasswordService creates a new password management service instance.
// Returns error if template parsing fails / Retourne une erreur si le parsing du template échoue
func NewPasswordService(
	repo ports.UserRepository,
	refreshStore ports.RefreshTokenStore,
	emailSender ports.EmailSender,
	conf *config.Config,
) (*PasswordService, error) {
	tmpl, err := template.ParseFS(emailTemplateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &PasswordService{
		users:        repo,
		refreshStore: refreshStore,
		emailSender:  emailSender,
		conf:         conf,
		templates:    tmpl,
	}, nil
}

// RequestPasswordReset initiates password reset (timing-safe) / Démarre la réinitialisation du mot de passe (sécurisé)
func (s *PasswordService) RequestPasswordReset(ctx context.Context, email string) error {
	if !isValidEmail(email) {
		time.Sleep(200 * time.Millisecond)
		return nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil || !user.Actif {
		time.Sleep(200 * time.Millisecond)
		return nil
	}

	// A still valid token was already sent
	if user.PasswordResetToken.Valid && user.PasswordResetExpiresAt.Valid && time.Now().Before(user.PasswordResetExpiresAt.Time) {
		return nil
	}

	resetToken := uuid.New().String()
	if err := s.users.SetPasswordResetToken(ctx, user.Email, resetToken, time.Now().Add(s.conf.Security.PasswordResetTTL)); err != nil {
		slog.Error("failed to set password reset token", "user_id", user.ID, "err", err)
		return nil
	}

	go s.sendEmailAsync(user, "password_reset_email.html", "Réinitialisation de votre mot de passe", resetToken, s.conf.Security.PasswordResetTTL)

	return nil
}

// Invite stores an activation token and emails the link / Stocke un token d'activation et envoie le lien
func (s *PasswordService) Invite(ctx context.Context, user *domain.User) error {
	token := uuid.New().String()
	if err := s.users.SetPasswordResetToken(ctx, user.Email, token, time.Now().Add(s.conf.Security.InvitationTTL)); err != nil {
		return storeErr(err, labelUser)
	}

	go s.sendEmailAsync(user, "invitation_email.html", "Activation de votre compte Gestion Péages", token, s.conf.Security.InvitationTTL)

	return nil
}

// sendEmailAsync renders and sends a token email / Rend et envoie un email contenant un token
func (s *PasswordService) sendEmailAsync(user *domain.User, tmpl, subject, token string, validity time.Duration) {
	// Bound the goroutine lifetime
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data := struct {
		Name     string
		Email    string
		ResetURL string
		Validity string
	}{
		Name:     user.FullName(),
		Email:    user.Email,
		ResetURL: fmt.Sprintf("%s/reset-password?token=%s", s.conf.Server.FrontendURL, token),
		Validity: formatValidity(validity),
	}

	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		slog.Error("failed to render email template", "template", tmpl, "err", err)
		return
	}

	if err := s.emailSender.Send(ctx, user.Email, subject, body.String()); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Error("email send timed out", "user_id", user.ID, "template", tmpl, "timeout", "30s")
		} else {
			slog.Error("failed to send email", "user_id", user.ID, "template", tmpl, "err", err)
		}
	}
}

// ResetPassword completes password reset or account activation / Finalise la réinitialisation ou l'activation
func (s *PasswordService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperr.Invalid("Le lien de réinitialisation est obligatoire")
	}

	if !isStrongPassword(newPassword) {
		return apperr.Invalid(weakPasswordMessage)
	}

	user, err := s.users.GetByPasswordResetToken(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, db.ErrNoRecord) {
			return apperr.Invalid("Lien invalide ou expiré")
		}
		return apperr.Normalize(err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.conf.Security.BcryptCost)
	if err != nil {
		slog.Error("failed to hash password", "err", err)
		return apperr.Internal(err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, string(hashedPassword)); err != nil {
		slog.Error("failed to update password", "user_id", user.ID, "err", err)
		return storeErr(err, labelUser)
	}

	// One-time token
	if err := s.users.ClearPasswordResetToken(ctx, user.ID); err != nil {
		slog.Error("failed to clear password reset token", "user_id", user.ID, "err", err)
	}

	// A reset also lifts a lockout
	if err := s.users.ResetFailedAttempts(ctx, user.ID); err != nil {
		slog.Error("failed to reset failed attempts", "user_id", user.ID, "err", err)
	}

	if err := s.refreshStore.RevokeAllForUser(ctx, user.ID); err != nil {
		slog.Error("failed to revoke refresh tokens after password reset", "user_id", user.ID, "err", err)
	}

	return nil
}

// ChangePassword allows password change with current password verification / Permet le changement de mot de passe avec vérification
func (s *PasswordService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return storeErr(err, labelUser)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)); err != nil {
		return apperr.Invalid("Le mot de passe actuel est incorrect")
	}

	if !isStrongPassword(newPassword) {
		return apperr.Invalid(weakPasswordMessage)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(newPassword)); err == nil {
		return apperr.Invalid("Le nouveau mot de passe doit être différent de l'actuel")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.conf.Security.BcryptCost)
	if err != nil {
		slog.Error("failed to hash new password", "err", err)
		return apperr.Internal(err)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hashedPassword)); err != nil {
		slog.Error("failed to update password", "user_id", userID, "err", err)
		return storeErr(err, labelUser)
	}

	// Force re-login everywhere
	if err := s.refreshStore.RevokeAllForUser(ctx, userID); err != nil {
		slog.Error("failed to revoke refresh tokens after password change", "user_id", userID, "err", err)
	}

	return nil
}
