package domain

import (
	"slices"
	"strings"
)

// Permission represents granular permission (resource:action pattern) / Permission granulaire (pattern resource:action)
// Wildcards: "*:*" grants everything, "pcg:*" grants every action on pcg
// Jokers : "*:*" accorde tout, "pcg:*" accorde toutes les actions sur pcg
type Permission string

const wildcard = "*"

// PermissionAll is the super-admin permission / Permission super-administrateur
const PermissionAll Permission = "*:*"

// Predefined permissions / Permissions prédéfinies
const (
	PermissionPcgRead   Permission = "pcg:read"
	PermissionPcgWrite  Permission = "pcg:write"
	PermissionPcgDelete Permission = "pcg:delete"

	PermissionComptesRead   Permission = "comptes:read"
	PermissionComptesWrite  Permission = "comptes:write"
	PermissionComptesDelete Permission = "comptes:delete"

	PermissionUORead   Permission = "uo:read"
	PermissionUOWrite  Permission = "uo:write"
	PermissionUODelete Permission = "uo:delete"

	PermissionPeagesRead   Permission = "peages:read"
	PermissionPeagesWrite  Permission = "peages:write"
	PermissionPeagesDelete Permission = "peages:delete"

	PermissionPeriodicitesRead   Permission = "periodicites:read"
	PermissionPeriodicitesWrite  Permission = "periodicites:write"
	PermissionPeriodicitesDelete Permission = "periodicites:delete"

	PermissionAbonnesRead   Permission = "abonnes:read"
	PermissionAbonnesWrite  Permission = "abonnes:write"
	PermissionAbonnesDelete Permission = "abonnes:delete"

	PermissionTarifsRead   Permission = "tarifs:read"
	PermissionTarifsWrite  Permission = "tarifs:write"
	PermissionTarifsDelete Permission = "tarifs:delete"

	PermissionAbonnementsRead   Permission = "abonnements:read"
	PermissionAbonnementsWrite  Permission = "abonnements:write"
	PermissionAbonnementsManage Permission = "abonnements:manage"

	PermissionSessionsRead     Permission = "sessions:read"
	PermissionSessionsOpen     Permission = "sessions:open"
	PermissionSessionsSell     Permission = "sessions:sell"
	PermissionSessionsClose    Permission = "sessions:close"
	PermissionSessionsValidate Permission = "sessions:validate"

	PermissionSchemasRead   Permission = "schemas:read"
	PermissionSchemasWrite  Permission = "schemas:write"
	PermissionSchemasDelete Permission = "schemas:delete"

	PermissionEcrituresRead Permission = "ecritures:read"

	PermissionUsersRead   Permission = "users:read"
	PermissionUsersWrite  Permission = "users:write"
	PermissionUsersDelete Permission = "users:delete"
	PermissionRolesRead   Permission = "roles:read"
	PermissionRolesWrite  Permission = "roles:write"
	PermissionStatsRead   Permission = "stats:read"
	PermissionSystemAdmin Permission = "system:admin"
)

// AllPermissions returns the permission catalog / Retourne le catalogue des permissions
func AllPermissions() []Permission {
	return []Permission{
		PermissionPcgRead, PermissionPcgWrite, PermissionPcgDelete,
		PermissionComptesRead, PermissionComptesWrite, PermissionComptesDelete,
		PermissionUORead, PermissionUOWrite, PermissionUODelete,
		PermissionPeagesRead, PermissionPeagesWrite, PermissionPeagesDelete,
		PermissionPeriodicitesRead, PermissionPeriodicitesWrite, PermissionPeriodicitesDelete,
		PermissionAbonnesRead, PermissionAbonnesWrite, PermissionAbonnesDelete,
		PermissionTarifsRead, PermissionTarifsWrite, PermissionTarifsDelete,
		PermissionAbonnementsRead, PermissionAbonnementsWrite, PermissionAbonnementsManage,
		PermissionSessionsRead, PermissionSessionsOpen, PermissionSessionsSell, PermissionSessionsClose, PermissionSessionsValidate,
		PermissionSchemasRead, PermissionSchemasWrite, PermissionSchemasDelete,
		PermissionEcrituresRead,
		PermissionUsersRead, PermissionUsersWrite, PermissionUsersDelete,
		PermissionRolesRead, PermissionRolesWrite,
		PermissionStatsRead,
		PermissionSystemAdmin,
	}
}

// String returns permission as string / Retourne la permission en string
func (p Permission) String() string {
	return string(p)
}

// Parse splits into resource and action / Sépare ressource et action
func (p Permission) Parse() (resource, action string) {
	resource, action, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return resource, action
}

// IsValid checks known permission or wildcard form / Vérifie une permission connue ou un joker
func (p Permission) IsValid() bool {
	if p == PermissionAll {
		return true
	}
	res, act := p.Parse()
	if res == "" || act == "" {
		return false
	}
	if act == wildcard {
		for _, known := range AllPermissions() {
			if r, _ := known.Parse(); r == res {
				return true
			}
		}
		return false
	}
	return slices.Contains(AllPermissions(), p)
}

// Matches reports whether granted permission p covers requested
// Matches indique si la permission accordée p couvre la demande
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionAll || p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, _ := requested.Parse()
	return res != "" && res == reqRes && act == wildcard
}

// PermissionSet is the resolved permissions of a role / Permissions résolues d'un rôle
type PermissionSet []Permission

// Allows checks any granted permission matches / Vérifie qu'une permission accordée correspond
func (s PermissionSet) Allows(requested Permission) bool {
	for _, p := range s {
		if p.Matches(requested) {
			return true
		}
	}
	return false
}

// Expand lists concrete permissions covered by the set, used by the UI for gating
// Expand liste les permissions concrètes couvertes, utilisé par l'UI
func (s PermissionSet) Expand() []Permission {
	var out []Permission
	for _, known := range AllPermissions() {
		if s.Allows(known) {
			out = append(out, known)
		}
	}
	return out
}

// Built-in role names / Noms des rôles intégrés
const (
	RoleAdmin           = "admin"
	RoleSuperviseur     = "superviseur"
	RoleCaissier        = "caissier"
	RoleComptable       = "comptable"
	RoleAgentCommercial = "agent_commercial"
)

// DefaultRoles returns seeded roles / Retourne les rôles initiaux
func DefaultRoles() []Role {
	return []Role{
		{
			Name: RoleAdmin, Libelle: "Administrateur", System: true,
			Description: "Accès complet au système",
			Permissions: []Permission{PermissionAll},
		},
		{
			Name: RoleSuperviseur, Libelle: "Superviseur de péage", System: true,
			Description: "Supervise les sessions de caisse et les péages",
			Permissions: []Permission{
				PermissionPeagesRead, PermissionUORead, PermissionSessionsRead, PermissionSessionsValidate,
				PermissionAbonnementsRead, PermissionAbonnesRead, PermissionTarifsRead, PermissionStatsRead,
			},
		},
		{
			Name: RoleCaissier, Libelle: "Caissier", System: true,
			Description: "Ouvre et ferme sa session de caisse, vend des tickets",
			Permissions: []Permission{
				PermissionPeagesRead, PermissionSessionsRead, PermissionSessionsOpen,
				PermissionSessionsSell, PermissionSessionsClose, PermissionAbonnementsRead,
			},
		},
		{
			Name: RoleComptable, Libelle: "Comptable", System: true,
			Description: "Gère le plan comptable, les comptes et les schémas comptables",
			Permissions: []Permission{
				"pcg:*", "comptes:*", "schemas:*", PermissionEcrituresRead,
				PermissionSessionsRead, PermissionUORead, PermissionStatsRead,
			},
		},
		{
			Name: RoleAgentCommercial, Libelle: "Agent commercial", System: true,
			Description: "Gère les abonnés et les abonnements",
			Permissions: []Permission{
				"abonnes:*", "abonnements:*", PermissionTarifsRead, PermissionPeriodicitesRead, PermissionPeagesRead,
			},
		},
	}
}
