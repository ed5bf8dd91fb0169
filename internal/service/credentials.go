package service

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes
	maxPasswordBytes = 72
)

const weakPasswordMessage = "Le mot de passe doit contenir au moins 8 caractères dont une majuscule, une minuscule, un chiffre et un caractère spécial"

// passwordClasses lists the character classes every password must contain
var passwordClasses = []func(rune) bool{
	unicode.IsUpper,
	unicode.IsLower,
	unicode.IsDigit,
	func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) },
}

// isStrongPassword applies the account password policy / Applique la politique de mot de passe
func isStrongPassword(password string) bool {
	if len(password) < minPasswordLength || len(password) > maxPasswordBytes {
		return false
	}
	for _, class := range passwordClasses {
		if !strings.ContainsFunc(password, class) {
			return false
		}
	}
	return true
}

// isValidEmail accepts a bare RFC 5322 address, no display name
// isValidEmail accepte une adresse RFC 5322 nue, sans nom affiché
func isValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// plural renders "1 minute" or "15 minutes" / Accorde l'unité au pluriel
func plural(n int, unit string) string {
	if n <= 1 {
		return fmt.Sprintf("%d %s", max(n, 1), unit)
	}
	if strings.HasSuffix(unit, "s") {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// formatLockoutDuration renders the remaining lockout in French
// formatLockoutDuration rend la durée de verrouillage restante en français
func formatLockoutDuration(d time.Duration) string {
	if d < time.Minute {
		return plural(int(d.Seconds()), "seconde")
	}
	return plural(int(d.Round(time.Minute).Minutes()), "minute")
}

// formatValidity renders a link lifetime in French / Rend la durée de validité en français
func formatValidity(d time.Duration) string {
	if d < time.Hour {
		return plural(int(d.Minutes()), "minute")
	}
	hours := int(d.Round(time.Hour).Hours())
	if hours >= 48 && hours%24 == 0 {
		return plural(hours/24, "jour")
	}
	return plural(hours, "heure")
}
