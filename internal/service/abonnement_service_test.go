package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) abonnementSchema(t *testing.T, r *referentiel) *domain.SchemaComptable {
	t.Helper()
	sc, err := e.schemas.Create(context.Background(), &domain.SchemaComptable{
		Code:      "ABONNEMENTS",
		Libelle:   "Souscriptions",
		Operation: domain.OperationAbonnement,
		Actif:     true,
		Lignes: []domain.LigneSchema{
			{CompteID: r.caisse.ID, Sens: domain.SensDebit, Formule: "montant"},
			{CompteID: r.produit.ID, Sens: domain.SensCredit, Formule: "montant"},
		},
	})
	require.NoError(t, err)
	return sc
}

func TestAbonnementService_Souscrire(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.referentiel(t)
	tarif := e.tarif(t, r.peage.ID, 30, 10)
	ab := e.abonne(t, "B10000001")

	a, err := e.abonnements.Souscrire(ctx, Souscription{AbonneID: ab.ID, TarifID: tarif.ID})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.Numero, "ABN-"+time.Now().Format("20060102")+"-"), a.Numero)
	assert.Equal(t, domain.AbonnementActif, a.Statut)
	assert.True(t, a.Montant.Equal(dec(15000)))
	require.NotNil(t, a.PassagesRestants)
	assert.Equal(t, 10, *a.PassagesRestants)
	assert.Equal(t, a.DateDebut.AddDate(0, 0, 30), a.DateFin)
	assert.Equal(t, 1, e.metrics.AbonnementEvents["souscrit"])

	// No active ABONNEMENT schema: subscription is kept without accounting entry
	_, total, err := e.schemas.ListEcritures(ctx, domain.EcritureFilter{Reference: a.Numero}, NewPage(1, 10))
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestAbonnementService_SouscrireBooksEntry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.referentiel(t)
	e.abonnementSchema(t, r)
	tarif := e.tarif(t, r.peage.ID, 30, 0)
	ab := e.abonne(t, "B10000001")

	a, err := e.abonnements.Souscrire(ctx, Souscription{AbonneID: ab.ID, TarifID: tarif.ID})
	require.NoError(t, err)
	assert.Nil(t, a.PassagesRestants, "unlimited offer")

	items, total, err := e.schemas.ListEcritures(ctx, domain.EcritureFilter{Reference: a.Numero}, NewPage(1, 10))
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, domain.OperationAbonnement, items[0].Operation)
	assert.True(t, items[0].IsBalanced())
	debit, _ := items[0].Totals()
	assert.True(t, debit.Equal(dec(15000)))
	assert.Equal(t, 1, e.metrics.Ecritures[domain.OperationAbonnement])
	assert.Contains(t, e.events.Types(), "ecriture.created")
}

func TestAbonnementService_SouscrireRejects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.referentiel(t)
	tarif := e.tarif(t, r.peage.ID, 30, 10)
	ab := e.abonne(t, "B10000001")

	tests := []struct {
		name string
		req  Souscription
	}{
		{"missing fields", Souscription{}},
		{"unknown abonné", Souscription{AbonneID: 999, TarifID: tarif.ID}},
		{"unknown tarif", Souscription{AbonneID: ab.ID, TarifID: 999}},
		{"period already over", Souscription{AbonneID: ab.ID, TarifID: tarif.ID, DateDebut: time.Now().AddDate(0, -2, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.abonnements.Souscrire(ctx, tt.req)
			assert.Equal(t, http.StatusBadRequest, status(err), "err = %v", err)
		})
	}

	tarif.Actif = false
	_, err := e.tarifs.Update(ctx, tarif.ID, tarif)
	require.NoError(t, err)
	_, err = e.abonnements.Souscrire(ctx, Souscription{AbonneID: ab.ID, TarifID: tarif.ID})
	assert.Equal(t, http.StatusBadRequest, status(err), "inactive tarif")
}

func TestAbonnementService_PassagesAndTransitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.referentiel(t)
	tarif := e.tarif(t, r.peage.ID, 30, 2)
	ab := e.abonne(t, "B10000001")

	a, err := e.abonnements.Souscrire(ctx, Souscription{AbonneID: ab.ID, TarifID: tarif.ID})
	require.NoError(t, err)

	a, err = e.abonnements.EnregistrerPassage(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *a.PassagesRestants)

	_, err = e.abonnements.Suspendre(ctx, a.ID)
	require.NoError(t, err)
	_, err = e.abonnements.EnregistrerPassage(ctx, a.ID)
	assert.Equal(t, http.StatusBadRequest, status(err), "suspended")

	_, err = e.abonnements.Reactiver(ctx, a.ID)
	require.NoError(t, err)
	a, err = e.abonnements.EnregistrerPassage(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, *a.PassagesRestants)

	_, err = e.abonnements.EnregistrerPassage(ctx, a.ID)
	assert.Equal(t, http.StatusBadRequest, status(err), "no passage left")

	stored, err := e.abonnements.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, *stored.PassagesRestants)

	_, err = e.abonnements.Resilier(ctx, a.ID)
	require.NoError(t, err)
	_, err = e.abonnements.Reactiver(ctx, a.ID)
	assert.Equal(t, http.StatusBadRequest, status(err), "terminal state")
	_, err = e.abonnements.Renouveler(ctx, a.ID)
	assert.Equal(t, http.StatusBadRequest, status(err), "cancelled subscription")

	assert.Equal(t, 2, e.metrics.AbonnementEvents["passage"])
	assert.Equal(t, 1, e.metrics.AbonnementEvents["resilie"])
}

func TestAbonnementService_RenouvelerExtendsRunningPeriod(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.referentiel(t)
	tarif := e.tarif(t, r.peage.ID, 30, 10)
	ab := e.abonne(t, "B10000001")

	a, err := e.abonnements.Souscrire(ctx, Souscription{AbonneID: ab.ID, TarifID: tarif.ID})
	require.NoError(t, err)
	_, err = e.abonnements.EnregistrerPassage(ctx, a.ID)
	require.NoError(t, err)

	renewed, err := e.abonnements.Renouveler(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, renewed.DateDebut.Equal(a.DateDebut), "start kept")
	assert.True(t, renewed.DateFin.Equal(a.DateFin.AddDate(0, 0, 30)), "end extended")
	assert.Equal(t, 19, *renewed.PassagesRestants, "remaining passages carried over")
}

func TestAbonnementService_ExpirerEchusThenRenew(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.referentiel(t)
	tarif := e.tarif(t, r.peage.ID, 7, 5)
	ab := e.abonne(t, "B10000001")

	a, err := e.abonnements.Souscrire(ctx, Souscription{AbonneID: ab.ID, TarifID: tarif.ID})
	require.NoError(t, err)

	n, err := e.abonnements.ExpirerEchus(ctx, a.DateFin.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.abonnements.ExpirerEchus(ctx, a.DateFin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "end date is exclusive")
	assert.Equal(t, 1, e.metrics.AbonnementEvents["expire"])

	expired, err := e.abonnements.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AbonnementExpire, expired.Statut)

	_, err = e.abonnements.Suspendre(ctx, a.ID)
	assert.Equal(t, http.StatusBadRequest, status(err))

	renewed, err := e.abonnements.Renouveler(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AbonnementActif, renewed.Statut)
	assert.Equal(t, 5, *renewed.PassagesRestants, "lapsed subscription restarts its quota")
	assert.True(t, renewed.DateDebut.Equal(a.DateFin))
}

func TestAbonnementService_ExpirerEchusSuspended(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.referentiel(t)
	tarif := e.tarif(t, r.peage.ID, 7, 5)
	ab := e.abonne(t, "B10000001")

	a, err := e.abonnements.Souscrire(ctx, Souscription{AbonneID: ab.ID, TarifID: tarif.ID})
	require.NoError(t, err)
	_, err = e.abonnements.Suspendre(ctx, a.ID)
	require.NoError(t, err)

	n, err := e.abonnements.ExpirerEchus(ctx, a.DateFin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	expired, err := e.abonnements.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AbonnementExpire, expired.Statut)

	renewed, err := e.abonnements.Renouveler(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AbonnementActif, renewed.Statut)
	assert.Equal(t, 5, *renewed.PassagesRestants)
}

// interleavedRepo runs hook once, right after the first GetByID returns
type interleavedRepo struct {
	ports.AbonnementRepository
	hook func()
}

func (r *interleavedRepo) GetByID(ctx context.Context, id int64) (*domain.Abonnement, error) {
	a, err := r.AbonnementRepository.GetByID(ctx, id)
	if hook := r.hook; hook != nil && err == nil {
		r.hook = nil
		hook()
	}
	return a, err
}

func TestAbonnementService_ConcurrentChanges(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*env, *domain.Abonnement, *interleavedRepo, *AbonnementService) {
		e := newEnv(t)
		r := e.referentiel(t)
		tarif := e.tarif(t, r.peage.ID, 30, 5)
		ab := e.abonne(t, "B10000001")
		a, err := e.abonnements.Souscrire(ctx, Souscription{AbonneID: ab.ID, TarifID: tarif.ID})
		require.NoError(t, err)

		repo := &interleavedRepo{AbonnementRepository: e.a.AbonnementRepository()}
		svc := NewAbonnementService(repo, e.a.AbonneRepository(), e.a.TarifRepository(), e.a.PeriodiciteRepository(), e.schemas, e.a, e.events, e.metrics)
		return e, a, repo, svc
	}

	t.Run("passage during suspension is kept", func(t *testing.T) {
		e, a, repo, svc := setup(t)
		repo.hook = func() {
			_, err := e.abonnements.EnregistrerPassage(ctx, a.ID)
			require.NoError(t, err)
		}

		got, err := svc.Suspendre(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AbonnementSuspendu, got.Statut)
		assert.Equal(t, 4, *got.PassagesRestants)
	})

	t.Run("expiry during suspension wins", func(t *testing.T) {
		e, a, repo, svc := setup(t)
		repo.hook = func() {
			n, err := e.abonnements.ExpirerEchus(ctx, a.DateFin)
			require.NoError(t, err)
			require.EqualValues(t, 1, n)
		}

		_, err := svc.Suspendre(ctx, a.ID)
		assert.Equal(t, http.StatusConflict, status(err), "err = %v", err)

		stored, err := e.abonnements.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AbonnementExpire, stored.Statut)
	})

	t.Run("passage during renewal is kept", func(t *testing.T) {
		e, a, repo, svc := setup(t)
		repo.hook = func() {
			_, err := e.abonnements.EnregistrerPassage(ctx, a.ID)
			require.NoError(t, err)
		}

		got, err := svc.Renouveler(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 9, *got.PassagesRestants)
		assert.True(t, got.DateFin.Equal(a.DateFin.AddDate(0, 0, 30)))
	})

	t.Run("second renewal from the same end is refused", func(t *testing.T) {
		e, a, repo, svc := setup(t)
		repo.hook = func() {
			_, err := e.abonnements.Renouveler(ctx, a.ID)
			require.NoError(t, err)
		}

		_, err := svc.Renouveler(ctx, a.ID)
		assert.Equal(t, http.StatusConflict, status(err), "err = %v", err)

		stored, err := e.abonnements.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, stored.DateFin.Equal(a.DateFin.AddDate(0, 0, 30)), "extended once")
		assert.Equal(t, 10, *stored.PassagesRestants)
	})
}

func TestAbonnementService_List(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.referentiel(t)
	tarif := e.tarif(t, r.peage.ID, 30, 0)
	ab1 := e.abonne(t, "B10000001")
	ab2 := e.abonne(t, "B10000002")

	for _, id := range []int64{ab1.ID, ab2.ID, ab2.ID} {
		_, err := e.abonnements.Souscrire(ctx, Souscription{AbonneID: id, TarifID: tarif.ID})
		require.NoError(t, err)
	}

	items, total, err := e.abonnements.List(ctx, domain.AbonnementFilter{AbonneID: ab2.ID}, NewPage(1, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 1)
}
