package web

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbonnes_Validation(t *testing.T) {
	s := newTestServer(t)
	agent := s.loginAs(domain.RoleAgentCommercial)

	valid := map[string]any{"nom": "Sawadogo", "prenom": "Issa", "cnib": "B12345678", "telephone": "+226 70 12 34 56"}
	tests := []struct {
		name     string
		override map[string]any
		wantCode int
	}{
		{"valid", nil, http.StatusCreated},
		{"cnib without B", map[string]any{"cnib": "12345678"}, http.StatusBadRequest},
		{"foreign phone", map[string]any{"telephone": "+33612345678"}, http.StatusBadRequest},
		{"short phone", map[string]any{"telephone": "+2267012345"}, http.StatusBadRequest},
		{"missing name", map[string]any{"nom": ""}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]any{}
			for k, v := range valid {
				body[k] = v
			}
			for k, v := range tt.override {
				body[k] = v
			}
			rec := agent.do(http.MethodPost, "/api/abonnes", body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	rec := agent.do(http.MethodGet, "/api/abonnes?q=sawa", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[pageResponse[domain.Abonne]](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "+22670123456", page.Items[0].Telephone)
}

func TestAbonnement_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	admin := s.loginAs(domain.RoleAdmin)
	agent := s.loginAs(domain.RoleAgentCommercial)

	siege := createUO(t, admin, map[string]any{"code": "DG", "libelle": "Direction générale", "type": domain.UOSiege})
	peage := createPeage(t, admin, siege.ID, "PK-OUAGA", true)

	rec := admin.do(http.MethodPost, "/api/periodicites", map[string]any{"code": "MENSUEL", "libelle": "Mensuel", "dureeJours": 30})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	periodicite := decode[domain.Periodicite](t, rec)

	rec = admin.do(http.MethodPost, "/api/tarifs", map[string]any{
		"libelle": "Mensuel VL", "peageId": peage.ID, "periodiciteId": periodicite.ID,
		"categorieVehicule": "VL", "montant": 15000, "nombrePassages": 2, "actif": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tarif := decode[domain.AbonnementTarif](t, rec)

	rec = agent.do(http.MethodPost, "/api/abonnes", map[string]any{"nom": "Sawadogo", "prenom": "Issa", "cnib": "B12345678", "telephone": "+22670123456"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	abonne := decode[domain.Abonne](t, rec)

	rec = agent.do(http.MethodPost, "/api/abonnements", map[string]any{"abonneId": abonne.ID, "tarifId": tarif.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ab := decode[domain.Abonnement](t, rec)
	assert.Equal(t, domain.AbonnementActif, ab.Statut)
	require.NotNil(t, ab.PassagesRestants)
	assert.Equal(t, 2, *ab.PassagesRestants)
	assert.Equal(t, 30, int(ab.DateFin.Sub(ab.DateDebut).Hours()/24))

	base := fmt.Sprintf("/api/abonnements/%d", ab.ID)
	steps := []struct {
		action     string
		wantCode   int
		wantStatut string
	}{
		{"passages", http.StatusOK, domain.AbonnementActif},
		{"suspendre", http.StatusOK, domain.AbonnementSuspendu},
		{"passages", http.StatusBadRequest, ""},
		{"reactiver", http.StatusOK, domain.AbonnementActif},
		{"passages", http.StatusOK, domain.AbonnementActif},
		{"passages", http.StatusBadRequest, ""},
		{"resilier", http.StatusOK, domain.AbonnementResilie},
		{"suspendre", http.StatusBadRequest, ""},
		{"renouveler", http.StatusBadRequest, ""},
	}
	for i, st := range steps {
		rec = agent.do(http.MethodPost, base+"/"+st.action, nil)
		require.Equal(t, st.wantCode, rec.Code, "step %d %s: %s", i, st.action, rec.Body.String())
		if st.wantStatut != "" {
			assert.Equal(t, st.wantStatut, decode[domain.Abonnement](t, rec).Statut, "step %d", i)
		}
	}

	rec = agent.do(http.MethodGet, "/api/abonnements?statut="+domain.AbonnementResilie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[pageResponse[domain.Abonnement]](t, rec).Pagination.Total)

	rec = agent.do(http.MethodGet, "/api/abonnements?expireAvant=demain", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	caissier := s.loginAs(domain.RoleCaissier)
	rec = caissier.do(http.MethodPost, base+"/suspendre", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
