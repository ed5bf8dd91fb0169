package domain

import (
	"strings"

	"github.com/open-tech-stack/mitic-web-sub002/internal/validation"
)

// Organizational unit types / Types d'unité organisationnelle
const (
	UOSiege     = "SIEGE"
	UODirection = "DIRECTION"
	UOZone      = "ZONE"
	UOSite      = "SITE"
)

// OrganizationalUnit is a node of the organization tree / Nœud de l'arbre organisationnel
type OrganizationalUnit struct {
	BaseModel
	ID          int64                 `json:"id"`
	Code        string                `json:"code"`
	Libelle     string                `json:"libelle"`
	Type        string                `json:"type"`
	ParentID    *int64                `json:"parentId,omitempty"`
	Responsable string                `json:"responsable,omitempty"`
	Enfants     []*OrganizationalUnit `json:"enfants,omitempty"`
}

// Validate checks own fields / Vérifie les champs propres
func (u *OrganizationalUnit) Validate() validation.Errors {
	var errs validation.Errors
	u.Code = strings.ToUpper(strings.TrimSpace(u.Code))
	errs.Code("code", u.Code)
	if errs.Required("libellé", u.Libelle) {
		errs.MaxLen("libellé", u.Libelle, 255)
	}
	errs.OneOf("type", u.Type, UOSiege, UODirection, UOZone, UOSite)
	errs.Check(u.ParentID != nil || u.Type == UOSiege, "Seul un siège peut être une unité racine")
	if u.ParentID != nil && u.ID != 0 {
		errs.Check(*u.ParentID != u.ID, "Une unité ne peut pas être sa propre parente")
	}
	errs.MaxLen("responsable", u.Responsable, 150)
	return errs
}

// UOTree arranges units into a forest / Organise les unités en forêt
func UOTree(items []*OrganizationalUnit) []*OrganizationalUnit {
	for _, u := range items {
		u.Enfants = nil
	}
	return BuildTree(items,
		func(u *OrganizationalUnit) int64 { return u.ID },
		func(u *OrganizationalUnit) *int64 { return u.ParentID },
		func(parent, child *OrganizationalUnit) { parent.Enfants = append(parent.Enfants, child) },
	)
}

// Peage is a toll station / Gare de péage
type Peage struct {
	BaseModel
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Libelle      string `json:"libelle"`
	Localisation string `json:"localisation"`
	UoID         int64  `json:"uoId"`
	NombreVoies  int    `json:"nombreVoies"`
	Actif        bool   `json:"actif"`
}

// Validate checks own fields / Vérifie les champs propres
func (p *Peage) Validate() validation.Errors {
	var errs validation.Errors
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	errs.Code("code", p.Code)
	if errs.Required("libellé", p.Libelle) {
		errs.MaxLen("libellé", p.Libelle, 255)
	}
	errs.MaxLen("localisation", p.Localisation, 255)
	errs.Check(p.UoID > 0, "L'unité organisationnelle est obligatoire")
	errs.Check(p.NombreVoies >= 1, "Un péage doit avoir au moins une voie")
	return errs
}

// HasVoie checks lane number / Vérifie le numéro de voie
func (p *Peage) HasVoie(voie int) bool {
	return voie >= 1 && voie <= p.NombreVoies
}

// PeageFilter narrows péage listing / Filtre la liste des péages
type PeageFilter struct {
	UoID  int64
	Actif *bool
}
