package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/cache"
	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/mocks"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret-key-with-at-least-32-bytes!"

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:            testJWTSecret,
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 24 * time.Hour,
		},
		Security: config.SecurityConfig{
			MaxFailedAttempts: 3,
			LockoutDuration:   15 * time.Minute,
			BcryptCost:        bcrypt.MinCost,
			InvitationTTL:     72 * time.Hour,
			PasswordResetTTL:  time.Hour,
		},
		Server: config.ServerConfig{FrontendURL: "http://localhost:4200"},
	}
}

// env wires every service over a migrated SQLite database, like the app container
type env struct {
	a       *repository.Adapter
	events  *mocks.MockEventPublisher
	metrics *mocks.MockMetrics

	roles        *RoleService
	pcg          *PcgService
	comptes      *CompteService
	uos          *UOService
	peages       *PeageService
	periodicites *PeriodiciteService
	abonnes      *AbonneService
	tarifs       *TarifService
	schemas      *SchemaService
	abonnements  *AbonnementService
	sessions     *SessionCaisseService
	dashboard    *DashboardService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	a := repository.NewTestAdapter(t)
	e := &env{a: a, events: &mocks.MockEventPublisher{}, metrics: mocks.NewMockMetrics()}

	e.roles = NewRoleService(a.RoleRepository(), a, cache.NewMemory(), time.Minute, e.events)
	_, err := e.roles.Seed(context.Background())
	require.NoError(t, err)

	e.pcg = NewPcgService(a.PcgRepository(), a, e.events)
	e.comptes = NewCompteService(a.CompteRepository(), a.PcgRepository(), a.UORepository(), e.events)
	e.uos = NewUOService(a.UORepository(), e.events)
	e.peages = NewPeageService(a.PeageRepository(), a.UORepository(), e.events)
	e.periodicites = NewPeriodiciteService(a.PeriodiciteRepository(), e.events)
	e.abonnes = NewAbonneService(a.AbonneRepository(), e.events)
	e.tarifs = NewTarifService(a.TarifRepository(), a.PeageRepository(), a.PeriodiciteRepository(), e.events)
	e.schemas = NewSchemaService(a.SchemaComptableRepository(), a.CompteRepository(), a.EcritureRepository(), a, 0, e.events, e.metrics)
	e.abonnements = NewAbonnementService(a.AbonnementRepository(), a.AbonneRepository(), a.TarifRepository(), a.PeriodiciteRepository(), e.schemas, a, e.events, e.metrics)
	e.sessions = NewSessionCaisseService(a.SessionCaisseRepository(), a.PeageRepository(), e.abonnements, e.schemas, a, e.events, e.metrics)
	e.dashboard = NewDashboardService(a.AbonnementRepository(), a.SessionCaisseRepository(), a.UserRepository())
	return e
}

// referentiel is a minimal set of reference data for operational tests
type referentiel struct {
	site     *domain.OrganizationalUnit
	peage    *domain.Peage
	caissier *domain.User
	caisse   *domain.Compte
	mobile   *domain.Compte
	produit  *domain.Compte
	ecart    *domain.Compte
}

func (e *env) referentiel(t *testing.T) *referentiel {
	t.Helper()
	ctx := context.Background()
	r := &referentiel{}

	siege, err := e.uos.Create(ctx, &domain.OrganizationalUnit{Code: "DG", Libelle: "Direction générale", Type: domain.UOSiege})
	require.NoError(t, err)
	r.site, err = e.uos.Create(ctx, &domain.OrganizationalUnit{Code: "SITE-OUAGA", Libelle: "Site Ouaga", Type: domain.UOSite, ParentID: &siege.ID})
	require.NoError(t, err)
	r.peage, err = e.peages.Create(ctx, &domain.Peage{Code: "PK15", Libelle: "Péage PK15", UoID: r.site.ID, NombreVoies: 4, Actif: true})
	require.NoError(t, err)

	r.caissier = e.user(t, "caissier@peages.bf", domain.RoleCaissier)

	classe5, err := e.pcg.Create(ctx, &domain.Pcg{Numero: "5", Libelle: "Trésorerie", Actif: true})
	require.NoError(t, err)
	classe6, err := e.pcg.Create(ctx, &domain.Pcg{Numero: "6", Libelle: "Charges", Actif: true})
	require.NoError(t, err)
	classe7, err := e.pcg.Create(ctx, &domain.Pcg{Numero: "7", Libelle: "Produits", Actif: true})
	require.NoError(t, err)

	r.caisse, err = e.comptes.Create(ctx, &domain.Compte{Numero: "571", Libelle: "Caisse", PcgID: classe5.ID, Type: domain.CompteCaisse, Actif: true})
	require.NoError(t, err)
	r.mobile, err = e.comptes.Create(ctx, &domain.Compte{Numero: "521", Libelle: "Mobile money", PcgID: classe5.ID, Type: domain.CompteBanque, Actif: true})
	require.NoError(t, err)
	r.ecart, err = e.comptes.Create(ctx, &domain.Compte{Numero: "658", Libelle: "Écarts de caisse", PcgID: classe6.ID, Actif: true})
	require.NoError(t, err)
	r.produit, err = e.comptes.Create(ctx, &domain.Compte{Numero: "706", Libelle: "Recettes péage", PcgID: classe7.ID, Actif: true})
	require.NoError(t, err)
	return r
}

func (e *env) user(t *testing.T, email, role string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Password: "hash", Nom: "Ouédraogo", Prenom: "Awa", Role: role, Actif: true}
	require.NoError(t, e.a.UserRepository().Create(context.Background(), u))
	return u
}

func (e *env) tarif(t *testing.T, peageID int64, jours, passages int) *domain.AbonnementTarif {
	t.Helper()
	ctx := context.Background()
	per, err := e.periodicites.Create(ctx, &domain.Periodicite{Code: fmt.Sprintf("P%d", jours), Libelle: "Période", DureeJours: jours})
	require.NoError(t, err)
	tarif, err := e.tarifs.Create(ctx, &domain.AbonnementTarif{
		Libelle:           "VL",
		PeageID:           peageID,
		PeriodiciteID:     per.ID,
		CategorieVehicule: "vl",
		Montant:           decimal.NewFromInt(15000),
		NombrePassages:    passages,
		Actif:             true,
	})
	require.NoError(t, err)
	return tarif
}

func (e *env) abonne(t *testing.T, cnib string) *domain.Abonne {
	t.Helper()
	ab, err := e.abonnes.Create(context.Background(), &domain.Abonne{Nom: "Kaboré", Prenom: "Issa", CNIB: cnib, Telephone: "+22670123456"})
	require.NoError(t, err)
	return ab
}

// ventesSchema books cash to 571, mobile to 521, gap to 658 and revenue to 706
func (e *env) ventesSchema(t *testing.T, r *referentiel) *domain.SchemaComptable {
	t.Helper()
	sc, err := e.schemas.Create(context.Background(), &domain.SchemaComptable{
		Code:      "VENTES",
		Libelle:   "Ventes de tickets",
		Operation: domain.OperationVenteTickets,
		Actif:     true,
		Lignes: []domain.LigneSchema{
			{CompteID: r.caisse.ID, Sens: domain.SensDebit, Formule: "montant_especes + ecart"},
			{CompteID: r.mobile.ID, Sens: domain.SensDebit, Formule: "montant_mobile"},
			{CompteID: r.ecart.ID, Sens: domain.SensDebit, Formule: "-ecart"},
			{CompteID: r.produit.ID, Sens: domain.SensCredit, Formule: "montant_total"},
		},
	})
	require.NoError(t, err)
	return sc
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// status returns the HTTP status an error maps to
func status(err error) int {
	if err == nil {
		return 0
	}
	return apperr.Normalize(err).HTTPStatus()
}
