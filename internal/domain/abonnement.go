package domain

import (
	"strings"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/validation"
	"github.com/shopspring/decimal"
)

// Periodicite is a subscription period length / Durée d'une période d'abonnement
type Periodicite struct {
	BaseModel
	ID         int64  `json:"id"`
	Code       string `json:"code"`
	Libelle    string `json:"libelle"`
	DureeJours int    `json:"dureeJours"`
}

// Validate checks own fields / Vérifie les champs propres
func (p *Periodicite) Validate() validation.Errors {
	var errs validation.Errors
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	errs.Code("code", p.Code)
	errs.Required("libellé", p.Libelle)
	errs.Check(p.DureeJours > 0, "La durée en jours doit être strictement positive")
	errs.Check(p.DureeJours <= 3660, "La durée ne peut pas dépasser 10 ans")
	return errs
}

// Abonne is a subscriber / Abonné
type Abonne struct {
	BaseModel
	ID              int64  `json:"id"`
	Nom             string `json:"nom"`
	Prenom          string `json:"prenom"`
	CNIB            string `json:"cnib"`
	Telephone       string `json:"telephone"`
	Email           string `json:"email,omitempty"`
	Immatriculation string `json:"immatriculation,omitempty"`
}

// Validate checks identity and contact rules / Vérifie les règles d'identité et de contact
func (a *Abonne) Validate() validation.Errors {
	var errs validation.Errors
	a.CNIB = strings.TrimSpace(a.CNIB)
	a.Telephone = strings.ReplaceAll(strings.TrimSpace(a.Telephone), " ", "")
	a.Immatriculation = strings.ToUpper(strings.TrimSpace(a.Immatriculation))

	if errs.Required("nom", a.Nom) {
		errs.MaxLen("nom", a.Nom, 100)
	}
	if errs.Required("prénom", a.Prenom) {
		errs.MaxLen("prénom", a.Prenom, 100)
	}
	errs.CNIB(a.CNIB)
	errs.PhoneBF(a.Telephone)
	errs.Email(a.Email)
	errs.MaxLen("immatriculation", a.Immatriculation, 20)
	return errs
}

// AbonnementTarif is a priced subscription offer / Offre d'abonnement tarifée
type AbonnementTarif struct {
	BaseModel
	ID                int64           `json:"id"`
	Libelle           string          `json:"libelle"`
	PeageID           int64           `json:"peageId"`
	PeriodiciteID     int64           `json:"periodiciteId"`
	CategorieVehicule string          `json:"categorieVehicule"`
	Montant           decimal.Decimal `json:"montant"`
	NombrePassages    int             `json:"nombrePassages"` // 0 = illimité
	Actif             bool            `json:"actif"`
}

// Validate checks own fields / Vérifie les champs propres
func (t *AbonnementTarif) Validate() validation.Errors {
	var errs validation.Errors
	errs.Required("libellé", t.Libelle)
	errs.Check(t.PeageID > 0, "Le péage est obligatoire")
	errs.Check(t.PeriodiciteID > 0, "La périodicité est obligatoire")
	errs.Required("catégorie de véhicule", t.CategorieVehicule)
	errs.Positive("montant", t.Montant)
	errs.Check(t.NombrePassages >= 0, "Le nombre de passages ne peut pas être négatif")
	return errs
}

// Abonnement statuses / Statuts d'abonnement
const (
	AbonnementActif    = "ACTIF"
	AbonnementSuspendu = "SUSPENDU"
	AbonnementExpire   = "EXPIRE"
	AbonnementResilie  = "RESILIE"
)

// Abonnement is a subscription of an abonné to a tariff / Souscription d'un abonné à un tarif
type Abonnement struct {
	BaseModel
	ID               int64           `json:"id"`
	Numero           string          `json:"numero"`
	AbonneID         int64           `json:"abonneId"`
	TarifID          int64           `json:"tarifId"`
	DateDebut        time.Time       `json:"dateDebut"`
	DateFin          time.Time       `json:"dateFin"`
	Montant          decimal.Decimal `json:"montant"`
	PassagesRestants *int            `json:"passagesRestants,omitempty"` // nil = illimité
	Statut           string          `json:"statut"`
}

var abonnementTransitions = map[string][]string{
	AbonnementActif:    {AbonnementSuspendu, AbonnementExpire, AbonnementResilie},
	AbonnementSuspendu: {AbonnementActif, AbonnementExpire, AbonnementResilie},
	AbonnementExpire:   {},
	AbonnementResilie:  {},
}

// CanTransition checks status machine / Vérifie la machine à états
func (a *Abonnement) CanTransition(to string) bool {
	for _, s := range abonnementTransitions[a.Statut] {
		if s == to {
			return true
		}
	}
	return false
}

// CanRenew reports renewal allowed / Indique si le renouvellement est permis
func (a *Abonnement) CanRenew() bool {
	return a.Statut == AbonnementActif || a.Statut == AbonnementExpire
}

// IsUsable checks subscription usable at t / Vérifie l'abonnement utilisable à t
func (a *Abonnement) IsUsable(t time.Time) bool {
	if a.Statut != AbonnementActif || t.Before(a.DateDebut) || !t.Before(a.DateFin) {
		return false
	}
	return a.PassagesRestants == nil || *a.PassagesRestants > 0
}

// Period computes [debut, debut+jours) at day granularity / Calcule la période à la journée
func Period(debut time.Time, jours int) (time.Time, time.Time) {
	start := time.Date(debut.Year(), debut.Month(), debut.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, jours)
}

// Renouvellement is the period written by a renewal; Passages replaces the
// remaining count unless AjoutPassages is set, which is added to it instead
type Renouvellement struct {
	DateDebut     time.Time
	DateFin       time.Time
	Montant       decimal.Decimal
	Passages      *int
	AjoutPassages int
}

// AbonnementFilter narrows subscription listing / Filtre la liste des abonnements
type AbonnementFilter struct {
	Statut      string
	AbonneID    int64
	ExpireAvant *time.Time
}
