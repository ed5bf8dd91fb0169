package ports

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
)

// UserReader looks up back-office accounts / Recherche les comptes du back-office
type UserReader interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// GetByEmail expects a lowercased address
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// List pages users by email and returns the total count
	List(ctx context.Context, offset, limit int) ([]*domain.User, int, error)
	// CountByRole feeds the dashboard / Alimente le tableau de bord
	CountByRole(ctx context.Context) (map[string]int, error)
}

// UserWriter maintains accounts; credentials go through the interfaces below
type UserWriter interface {
	Create(ctx context.Context, user *domain.User) error
	// Update saves nom, prénom, rôle, actif and uo, never the password
	Update(ctx context.Context, user *domain.User) error
	// Delete fails with db.ErrForeignKeyViolation while sessions reference the user
	Delete(ctx context.Context, id int64) error
}

// AccountSecurityRepository tracks failed logins and lockouts
// AccountSecurityRepository suit les échecs de connexion et les verrouillages
type AccountSecurityRepository interface {
	IncrementFailedAttempts(ctx context.Context, userID int64) error
	ResetFailedAttempts(ctx context.Context, userID int64) error
	LockAccount(ctx context.Context, userID int64, until time.Time) error
}

// PasswordResetRepository backs activation and reset links
type PasswordResetRepository interface {
	SetPasswordResetToken(ctx context.Context, email string, token string, expiresAt time.Time) error
	// GetByPasswordResetToken ignores tokens expired at now
	GetByPasswordResetToken(ctx context.Context, token string, now time.Time) (*domain.User, error)
	UpdatePassword(ctx context.Context, userID int64, hashedPassword string) error
	ClearPasswordResetToken(ctx context.Context, userID int64) error
}

// UserRepository groups every user operation / Regroupe toutes les opérations utilisateur
type UserRepository interface {
	UserReader
	UserWriter
	AccountSecurityRepository
	PasswordResetRepository
	WithTx(tx DBTX) UserRepository
}
