package domain

import (
	"strings"

	"github.com/open-tech-stack/mitic-web-sub002/internal/validation"
)

// Pcg is an account of the chart of accounts (Plan Comptable Général)
// Pcg est un compte du Plan Comptable Général
type Pcg struct {
	BaseModel
	ID          int64  `json:"id"`
	Numero      string `json:"numero"`
	Libelle     string `json:"libelle"`
	Classe      int    `json:"classe"`
	ParentID    *int64 `json:"parentId,omitempty"`
	Actif       bool   `json:"actif"`
	SousComptes []*Pcg `json:"sousComptes,omitempty"`
}

// ClasseOf returns class digit of account number / Retourne la classe du numéro de compte
func ClasseOf(numero string) int {
	if numero == "" || numero[0] < '1' || numero[0] > '9' {
		return 0
	}
	return int(numero[0] - '0')
}

// Normalize trims input and derives classe / Nettoie la saisie et dérive la classe
func (p *Pcg) Normalize() {
	p.Numero = strings.TrimSpace(p.Numero)
	p.Libelle = strings.TrimSpace(p.Libelle)
	p.Classe = ClasseOf(p.Numero)
}

// Validate checks own fields / Vérifie les champs propres
func (p *Pcg) Validate() validation.Errors {
	var errs validation.Errors
	errs.PcgNumero(p.Numero)
	if errs.Required("libellé", p.Libelle) {
		errs.MaxLen("libellé", p.Libelle, 255)
	}
	return errs
}

// ExtendsNumero reports child numbering under parent / Indique la numérotation du fils sous le parent
func ExtendsNumero(parent, child string) bool {
	return len(child) > len(parent) && strings.HasPrefix(child, parent)
}

// PcgTree arranges accounts into a forest ordered like the input
// PcgTree organise les comptes en forêt dans l'ordre d'entrée
func PcgTree(items []*Pcg) []*Pcg {
	for _, p := range items {
		p.SousComptes = nil
	}
	return BuildTree(items,
		func(p *Pcg) int64 { return p.ID },
		func(p *Pcg) *int64 { return p.ParentID },
		func(parent, child *Pcg) { parent.SousComptes = append(parent.SousComptes, child) },
	)
}

// Compte types / Types de compte
const (
	CompteGeneral = "GENERAL"
	CompteCaisse  = "CAISSE"
	CompteBanque  = "BANQUE"
	CompteTiers   = "TIERS"
)

// Compte is an operational account attached to a PCG account
// Compte est un compte opérationnel rattaché à un compte PCG
type Compte struct {
	BaseModel
	ID        int64  `json:"id"`
	Numero    string `json:"numero"`
	Libelle   string `json:"libelle"`
	PcgID     int64  `json:"pcgId"`
	PcgNumero string `json:"pcgNumero,omitempty"`
	UoID      *int64 `json:"uoId,omitempty"`
	Type      string `json:"type"`
	Actif     bool   `json:"actif"`
}

// Validate checks own fields / Vérifie les champs propres
func (c *Compte) Validate() validation.Errors {
	var errs validation.Errors
	c.Numero = strings.TrimSpace(c.Numero)
	errs.PcgNumero(c.Numero)
	if errs.Required("libellé", c.Libelle) {
		errs.MaxLen("libellé", c.Libelle, 255)
	}
	errs.Check(c.PcgID > 0, "Le compte PCG de rattachement est obligatoire")
	errs.OneOf("type", c.Type, CompteGeneral, CompteCaisse, CompteBanque, CompteTiers)
	return errs
}

// CompteFilter narrows compte listing / Filtre la liste des comptes
type CompteFilter struct {
	Type  string
	PcgID int64
	UoID  int64
}

// PcgFilter narrows pcg listing / Filtre la liste du PCG
type PcgFilter struct {
	Classe int
	Query  string
}
