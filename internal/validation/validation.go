// Package validation accumulates human-readable validation messages.
// Package validation accumule des messages de validation lisibles.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/shopspring/decimal"
)

// Errors collects every failed rule instead of stopping at the first one
// Errors collecte toutes les règles en échec au lieu de s'arrêter à la première
type Errors []string

// Add appends message / Ajoute un message
func (e *Errors) Add(msg string) {
	*e = append(*e, msg)
}

// Addf appends formatted message / Ajoute un message formaté
func (e *Errors) Addf(format string, args ...any) {
	*e = append(*e, fmt.Sprintf(format, args...))
}

// Check adds msg when cond is false / Ajoute msg quand cond est faux
func (e *Errors) Check(cond bool, msg string) {
	if !cond {
		e.Add(msg)
	}
}

// Merge appends other errors / Ajoute d'autres erreurs
func (e *Errors) Merge(other Errors) {
	*e = append(*e, other...)
}

// Required checks non-blank value / Vérifie une valeur non vide
func (e *Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.Addf("Le champ %s est obligatoire", field)
		return false
	}
	return true
}

// MaxLen checks rune length / Vérifie la longueur en runes
func (e *Errors) MaxLen(field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		e.Addf("Le champ %s ne doit pas dépasser %d caractères", field, max)
	}
}

// Positive checks amount > 0 / Vérifie montant > 0
func (e *Errors) Positive(field string, value decimal.Decimal) {
	if !value.IsPositive() {
		e.Addf("Le champ %s doit être strictement positif", field)
	}
}

// NotNegative checks amount >= 0 / Vérifie montant >= 0
func (e *Errors) NotNegative(field string, value decimal.Decimal) {
	if value.IsNegative() {
		e.Addf("Le champ %s ne peut pas être négatif", field)
	}
}

// OneOf checks value belongs to allowed set / Vérifie l'appartenance à l'ensemble autorisé
func (e *Errors) OneOf(field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	e.Addf("Le champ %s doit valoir l'une des valeurs : %s", field, strings.Join(allowed, ", "))
}

// Valid reports whether no rule failed / Indique si aucune règle n'a échoué
func (e Errors) Valid() bool {
	return len(e) == 0
}

// Err returns validation error or nil / Retourne l'erreur de validation ou nil
func (e Errors) Err() error {
	if e.Valid() {
		return nil
	}
	return apperr.Validation(e)
}

var (
	phoneBFRe   = regexp.MustCompile(`^\+226[0-9]{8}$`)
	codeRe      = regexp.MustCompile(`^[A-Z0-9_-]{2,20}$`)
	pcgNumeroRe = regexp.MustCompile(`^[1-9][0-9]{0,9}$`)
)

// CNIB validates national identity card number (must start with B)
// CNIB valide le numéro de carte nationale d'identité (doit commencer par B)
func (e *Errors) CNIB(value string) {
	if !e.Required("CNIB", value) {
		return
	}
	if !strings.HasPrefix(value, "B") {
		e.Add("Le numéro CNIB doit commencer par la lettre B")
	}
	e.MaxLen("CNIB", value, 20)
}

// PhoneBF validates Burkina Faso phone (+226 and 8 digits)
// PhoneBF valide un téléphone burkinabè (+226 et 8 chiffres)
func (e *Errors) PhoneBF(value string) {
	if !e.Required("téléphone", value) {
		return
	}
	if !strings.HasPrefix(value, "+226") {
		e.Add("Le numéro de téléphone doit commencer par +226")
		return
	}
	if !phoneBFRe.MatchString(value) {
		e.Add("Le numéro de téléphone doit comporter 8 chiffres après +226")
	}
}

// Email validates optional email / Valide un email optionnel
func (e *Errors) Email(value string) {
	if value == "" {
		return
	}
	if len(value) > 254 {
		e.Add("L'adresse email est trop longue")
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		e.Add("L'adresse email est invalide")
	}
}

// Code validates business code (upper-case, 2-20 chars) / Valide un code métier
func (e *Errors) Code(field, value string) {
	if !e.Required(field, value) {
		return
	}
	if !codeRe.MatchString(value) {
		e.Addf("Le champ %s doit contenir 2 à 20 caractères parmi A-Z, 0-9, _ et -", field)
	}
}

// PcgNumero validates chart-of-accounts number / Valide un numéro de compte PCG
func (e *Errors) PcgNumero(value string) {
	if !e.Required("numéro", value) {
		return
	}
	if !pcgNumeroRe.MatchString(value) {
		e.Add("Le numéro de compte doit contenir 1 à 10 chiffres et commencer par un chiffre de 1 à 9")
	}
}
