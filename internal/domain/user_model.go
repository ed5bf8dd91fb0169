package domain

import (
	"database/sql"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/validation"
)

// User represents back-office user / Représente un utilisateur du back-office
type User struct {
	BaseModel
	ID                     int64
	Email                  string
	Password               string // Hashed password / Mot de passe haché
	Nom                    string
	Prenom                 string
	Role                   string
	Actif                  bool
	UoID                   *int64     // attachment unit / unité de rattachement
	FailedLoginAttempts    int        // Failed login counter / Compteur d'échecs de connexion
	LockedUntil            *time.Time // Account lock expiry / Expiration du verrouillage du compte
	PasswordResetToken     sql.NullString
	PasswordResetExpiresAt sql.NullTime
}

// IsLocked checks if account is locked / Vérifie si le compte est verrouillé
func (u *User) IsLocked() bool {
	if u.LockedUntil == nil {
		return false
	}
	return time.Now().Before(*u.LockedUntil)
}

// FullName returns "Prenom Nom" / Retourne "Prénom Nom"
func (u *User) FullName() string {
	switch {
	case u.Prenom == "":
		return u.Nom
	case u.Nom == "":
		return u.Prenom
	}
	return u.Prenom + " " + u.Nom
}

// Validate checks profile fields / Vérifie les champs du profil
func (u *User) Validate() validation.Errors {
	var errs validation.Errors
	if errs.Required("email", u.Email) {
		errs.Email(u.Email)
	}
	errs.Required("nom", u.Nom)
	errs.MaxLen("nom", u.Nom, 100)
	errs.MaxLen("prénom", u.Prenom, 100)
	errs.Required("rôle", u.Role)
	return errs
}

// Role is a named set of permissions / Ensemble nommé de permissions
type Role struct {
	BaseModel
	Name        string       `json:"name"`
	Libelle     string       `json:"libelle"`
	Description string       `json:"description"`
	System      bool         `json:"system"`
	Permissions []Permission `json:"permissions"`
}

// Validate checks role definition / Vérifie la définition du rôle
func (r *Role) Validate() validation.Errors {
	var errs validation.Errors
	if errs.Required("nom", r.Name) {
		errs.Check(roleNameValid(r.Name), "Le nom du rôle ne doit contenir que des minuscules, chiffres et _")
		errs.MaxLen("nom", r.Name, 50)
	}
	errs.Required("libellé", r.Libelle)
	for _, p := range r.Permissions {
		if !p.IsValid() {
			errs.Addf("Permission inconnue : %s", p)
		}
	}
	return errs
}

func roleNameValid(name string) bool {
	for _, c := range name {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}

// RefreshToken is one login session; the value is random and only sent in a cookie
// RefreshToken est une session de connexion, valeur aléatoire transmise en cookie
type RefreshToken struct {
	Token     string
	UserID    int64
	IssueAt   time.Time
	ExpiresAt time.Time
	IsRevoked bool
	IPHash    string // sha256 of the client IP at login
	UAHash    string // sha256 of the User-Agent at login
}

// UsableAt reports whether the token can still be rotated at t
func (rt *RefreshToken) UsableAt(t time.Time) bool {
	return !rt.IsRevoked && t.Before(rt.ExpiresAt)
}
