package sqlstore_test

import (
	"context"
	"testing"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fixture holds a minimal referential: one role, site, péage, caissier and compte
type fixture struct {
	a        *repository.Adapter
	site     *domain.OrganizationalUnit
	peage    *domain.Peage
	caissier *domain.User
	caisse   *domain.Compte
	produit  *domain.Compte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	a := repository.NewTestAdapter(t)
	f := &fixture{a: a}

	require.NoError(t, a.RoleRepository().Create(ctx, &domain.Role{
		Name:        domain.RoleCaissier,
		Libelle:     "Caissier",
		Permissions: []domain.Permission{domain.PermissionSessionsOpen, domain.PermissionSessionsSell},
	}))

	siege := &domain.OrganizationalUnit{Code: "DG", Libelle: "Direction générale", Type: domain.UOSiege}
	require.NoError(t, a.UORepository().Create(ctx, siege))
	f.site = &domain.OrganizationalUnit{Code: "SITE-OUAGA", Libelle: "Site Ouaga", Type: domain.UOSite, ParentID: &siege.ID}
	require.NoError(t, a.UORepository().Create(ctx, f.site))

	f.peage = &domain.Peage{Code: "PK15", Libelle: "Péage PK15", UoID: f.site.ID, NombreVoies: 4, Actif: true}
	require.NoError(t, a.PeageRepository().Create(ctx, f.peage))

	f.caissier = &domain.User{Email: "caissier@peages.bf", Password: "hash", Nom: "Ouédraogo", Prenom: "Awa", Role: domain.RoleCaissier, Actif: true}
	require.NoError(t, a.UserRepository().Create(ctx, f.caissier))

	classe5 := &domain.Pcg{Numero: "5", Libelle: "Trésorerie", Classe: 5, Actif: true}
	require.NoError(t, a.PcgRepository().Create(ctx, classe5))
	classe7 := &domain.Pcg{Numero: "7", Libelle: "Produits", Classe: 7, Actif: true}
	require.NoError(t, a.PcgRepository().Create(ctx, classe7))

	f.caisse = &domain.Compte{Numero: "571", Libelle: "Caisse", PcgID: classe5.ID, Type: domain.CompteCaisse, Actif: true}
	require.NoError(t, a.CompteRepository().Create(ctx, f.caisse))
	f.produit = &domain.Compte{Numero: "706", Libelle: "Recettes péage", PcgID: classe7.ID, Type: domain.CompteGeneral, Actif: true}
	require.NoError(t, a.CompteRepository().Create(ctx, f.produit))
	return f
}

func (f *fixture) tarif(t *testing.T, passages int) *domain.AbonnementTarif {
	t.Helper()
	ctx := context.Background()
	per := &domain.Periodicite{Code: "MENSUEL", Libelle: "Mensuel", DureeJours: 30}
	require.NoError(t, f.a.PeriodiciteRepository().Create(ctx, per))
	tarif := &domain.AbonnementTarif{
		Libelle:           "VL mensuel",
		PeageID:           f.peage.ID,
		PeriodiciteID:     per.ID,
		CategorieVehicule: "VL",
		Montant:           decimal.NewFromInt(15000),
		NombrePassages:    passages,
		Actif:             true,
	}
	require.NoError(t, f.a.TarifRepository().Create(ctx, tarif))
	return tarif
}

func (f *fixture) abonne(t *testing.T, cnib string) *domain.Abonne {
	t.Helper()
	ab := &domain.Abonne{Nom: "Kaboré", Prenom: "Issa", CNIB: cnib, Telephone: "+22670123456"}
	require.NoError(t, f.a.AbonneRepository().Create(context.Background(), ab))
	return ab
}
