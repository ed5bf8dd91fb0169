package sqlstore

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

var _ ports.UserRepository = (*userRepository)(nil)

// userRepository implements UserRepository / Implémente UserRepository
type userRepository struct {
	base
}

// NewUserRepository creates user repository / Crée le repository utilisateur
func NewUserRepository(conn ports.DBTX, d db.Dialect) ports.UserRepository {
	return &userRepository{base{db: conn, d: d}}
}

// WithTx returns repository with transaction / Retourne le repository avec transaction
func (r *userRepository) WithTx(tx ports.DBTX) ports.UserRepository {
	return &userRepository{base{db: tx, d: r.d}}
}

const userColumns = `id, email, password, nom, prenom, role, actif, uo_id,
	failed_login_attempts, locked_until, password_reset_token, password_reset_expires_at,
	created_at, updated_at`

func scanUser(s scanner) (*domain.User, error) {
	u := &domain.User{}
	err := s.Scan(
		&u.ID,
		&u.Email,
		&u.Password,
		&u.Nom,
		&u.Prenom,
		&u.Role,
		&u.Actif,
		&u.UoID,
		&u.FailedLoginAttempts,
		&u.LockedUntil,
		&u.PasswordResetToken,
		&u.PasswordResetExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// Create inserts new user in database / Insère un nouvel utilisateur dans la BD
func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	u.Touch(time.Now().UTC())
	id, err := r.insert(ctx,
		`INSERT INTO users (email, password, nom, prenom, role, actif, uo_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Email, u.Password, u.Nom, u.Prenom, u.Role, u.Actif, u.UoID, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// Update saves profile fields / Enregistre les champs de profil
func (r *userRepository) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()
	return r.execAffected(ctx,
		`UPDATE users SET nom = ?, prenom = ?, role = ?, actif = ?, uo_id = ?, updated_at = ? WHERE id = ?`,
		u.Nom, u.Prenom, u.Role, u.Actif, u.UoID, u.UpdatedAt, u.ID,
	)
}

// GetByID retrieves user by ID / Récupère l'utilisateur par ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, r.err(err)
	}
	return u, nil
}

// GetByEmail retrieves user by email / Récupère l'utilisateur par email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return nil, r.err(err)
	}
	return u, nil
}

// List retrieves paginated users / Récupère les utilisateurs paginés
func (r *userRepository) List(ctx context.Context, offset, limit int) ([]*domain.User, int, error) {
	total, err := r.count(ctx, `SELECT COUNT(*) FROM users`)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY nom, prenom, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	users, err := collect(rows, scanUser)
	if err != nil {
		return nil, 0, r.err(err)
	}
	return users, total, nil
}

// CountByRole returns user count per role / Retourne le nombre d'utilisateurs par rôle
func (r *userRepository) CountByRole(ctx context.Context) (map[string]int, error) {
	rows, err := r.query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, r.err(err)
		}
		out[role] = n
	}
	return out, r.err(rows.Err())
}

// Delete removes user by ID / Supprime l'utilisateur par ID
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	return r.execAffected(ctx, `DELETE FROM users WHERE id = ?`, id)
}

// IncrementFailedAttempts increments failed login attempts / Incrémente les tentatives échouées
func (r *userRepository) IncrementFailedAttempts(ctx context.Context, userID int64) error {
	_, err := r.exec(ctx, `UPDATE users SET failed_login_attempts = failed_login_attempts + 1 WHERE id = ?`, userID)
	return err
}

// ResetFailedAttempts resets failed login attempts / Réinitialise les tentatives échouées
func (r *userRepository) ResetFailedAttempts(ctx context.Context, userID int64) error {
	_, err := r.exec(ctx, `UPDATE users SET failed_login_attempts = 0, locked_until = NULL WHERE id = ?`, userID)
	return err
}

// LockAccount locks user account / Verrouille le compte utilisateur
func (r *userRepository) LockAccount(ctx context.Context, userID int64, until time.Time) error {
	_, err := r.exec(ctx, `UPDATE users SET locked_until = ? WHERE id = ?`, until.UTC(), userID)
	return err
}

// SetPasswordResetToken stores password reset token / Stocke le token de réinitialisation
func (r *userRepository) SetPasswordResetToken(ctx context.Context, email string, token string, expiresAt time.Time) error {
	return r.execAffected(ctx,
		`UPDATE users SET password_reset_token = ?, password_reset_expires_at = ? WHERE email = ?`,
		token, expiresAt.UTC(), email,
	)
}

// GetByPasswordResetToken retrieves user by reset token / Récupère l'utilisateur par token
func (r *userRepository) GetByPasswordResetToken(ctx context.Context, token string, now time.Time) (*domain.User, error) {
	u, err := scanUser(r.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE password_reset_token = ? AND password_reset_expires_at > ?`,
		token, now.UTC(),
	))
	if err != nil {
		return nil, r.err(err)
	}
	return u, nil
}

// UpdatePassword updates user password / Met à jour le mot de passe
func (r *userRepository) UpdatePassword(ctx context.Context, userID int64, hashedPassword string) error {
	return r.execAffected(ctx,
		`UPDATE users SET password = ?, updated_at = ? WHERE id = ?`,
		hashedPassword, time.Now().UTC(), userID,
	)
}

// ClearPasswordResetToken clears password reset token / Efface le token de réinitialisation
func (r *userRepository) ClearPasswordResetToken(ctx context.Context, userID int64) error {
	_, err := r.exec(ctx,
		`UPDATE users SET password_reset_token = NULL, password_reset_expires_at = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID,
	)
	return err
}
