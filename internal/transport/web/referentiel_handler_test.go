package web

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pcgCSV = "numero,libelle,parent_numero\n4,Comptes de tiers,\n41,Clients,4\n"

func TestPcg_ImportTreeExport(t *testing.T) {
	s := newTestServer(t)
	c := s.loginAs(domain.RoleComptable)

	rec := c.do(http.MethodPost, "/api/pcg/import", pcgCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[service.ImportResult](t, rec)
	assert.Equal(t, 2, result.Imported)
	assert.Empty(t, result.Errors)

	rec = c.do(http.MethodGet, "/api/pcg/tree", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decode[listResponse[domain.Pcg]](t, rec)
	require.Len(t, tree.Items, 1)
	require.Len(t, tree.Items[0].SousComptes, 1)
	assert.Equal(t, "41", tree.Items[0].SousComptes[0].Numero)

	rec = c.do(http.MethodGet, "/api/pcg?classe=4&q=client", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse[domain.Pcg]](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Clients", list.Items[0].Libelle)

	rec = c.do(http.MethodGet, "/api/pcg/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Body.String(), "41,Clients,4")

	rec = c.do(http.MethodGet, "/api/pcg/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	rec = c.do(http.MethodGet, "/api/pcg/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPcg_ImportMultipart(t *testing.T) {
	s := newTestServer(t)
	c := s.loginAs(domain.RoleComptable)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "pcg.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(pcgCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/pcg/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	req.Header.Set(CSRFHeader, c.cookies["csrf_token"].Value)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[service.ImportResult](t, rec).Imported)
}

func TestPcg_CRUD(t *testing.T) {
	s := newTestServer(t)
	c := s.loginAs(domain.RoleComptable)

	rec := c.do(http.MethodPost, "/api/pcg", map[string]any{"numero": "5", "libelle": "Trésorerie"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Pcg](t, rec)
	assert.Equal(t, 5, created.Classe)

	rec = c.do(http.MethodPost, "/api/pcg", map[string]any{"numero": "5", "libelle": "Doublon"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodPost, "/api/pcg", map[string]any{"numero": "0ab", "libelle": "Invalide"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := fmt.Sprintf("/api/pcg/%d", created.ID)
	rec = c.do(http.MethodPut, path, map[string]any{"numero": "5", "libelle": "Trésorerie générale", "actif": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Trésorerie générale", decode[domain.Pcg](t, rec).Libelle)

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, path, nil).Code)
}

func TestUO_TreeAndMove(t *testing.T) {
	s := newTestServer(t)
	admin := s.loginAs(domain.RoleAdmin)

	siege := createUO(t, admin, map[string]any{"code": "DG", "libelle": "Direction générale", "type": domain.UOSiege})
	zone := createUO(t, admin, map[string]any{"code": "ZONE-NORD", "libelle": "Zone nord", "type": domain.UOZone, "parentId": siege.ID})
	site := createUO(t, admin, map[string]any{"code": "SITE-1", "libelle": "Site 1", "type": domain.UOSite, "parentId": siege.ID})

	rec := admin.do(http.MethodPost, fmt.Sprintf("/api/uo/%d/move", site.ID), map[string]any{"parentId": zone.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// a unit cannot move under its own descendant
	rec = admin.do(http.MethodPost, fmt.Sprintf("/api/uo/%d/move", zone.ID), map[string]any{"parentId": site.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = admin.do(http.MethodGet, "/api/uo/tree", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decode[listResponse[domain.OrganizationalUnit]](t, rec)
	require.Len(t, tree.Items, 1)
	require.Len(t, tree.Items[0].Enfants, 1)
	require.Len(t, tree.Items[0].Enfants[0].Enfants, 1)
	assert.Equal(t, "SITE-1", tree.Items[0].Enfants[0].Enfants[0].Code)

	rec = admin.do(http.MethodDelete, fmt.Sprintf("/api/uo/%d", siege.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "unit with children")
}

func TestPeages_ListFilters(t *testing.T) {
	s := newTestServer(t)
	admin := s.loginAs(domain.RoleAdmin)
	siege := createUO(t, admin, map[string]any{"code": "DG", "libelle": "Direction générale", "type": domain.UOSiege})
	createPeage(t, admin, siege.ID, "PK-OUAGA", true)
	createPeage(t, admin, siege.ID, "PK-BOBO", false)

	tests := []struct {
		query string
		want  int
		code  int
	}{
		{"", 2, http.StatusOK},
		{"?actif=true", 1, http.StatusOK},
		{fmt.Sprintf("?uoId=%d", siege.ID), 2, http.StatusOK},
		{"?uoId=999", 0, http.StatusOK},
		{"?actif=peut-etre", 0, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run("query"+tt.query, func(t *testing.T) {
			rec := admin.do(http.MethodGet, "/api/peages"+tt.query, nil)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code == http.StatusOK {
				assert.Len(t, decode[listResponse[domain.Peage]](t, rec).Items, tt.want)
			}
		})
	}
}

func createUO(t *testing.T, c *client, body map[string]any) domain.OrganizationalUnit {
	t.Helper()
	rec := c.do(http.MethodPost, "/api/uo", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.OrganizationalUnit](t, rec)
}

func createPeage(t *testing.T, c *client, uoID int64, code string, actif bool) domain.Peage {
	t.Helper()
	rec := c.do(http.MethodPost, "/api/peages", map[string]any{
		"code": code, "libelle": strings.ToLower(code), "uoId": uoID, "nombreVoies": 2, "actif": actif,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Peage](t, rec)
}
