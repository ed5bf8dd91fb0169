package web

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
)

// maxImportSize bounds uploaded chart of accounts files / Borne la taille des fichiers PCG importés
const maxImportSize = 10 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ListPcg lists accounts filtered by ?classe and ?q / Liste les comptes filtrés par ?classe et ?q
func (h *Handler) ListPcg(w http.ResponseWriter, r *http.Request) {
	var filter domain.PcgFilter
	if v := r.URL.Query().Get("classe"); v != "" {
		classe, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, apperr.Invalid("Paramètre classe invalide"))
			return
		}
		filter.Classe = classe
	}
	filter.Query = strings.TrimSpace(r.URL.Query().Get("q"))

	items, err := h.container.PcgSvc.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

// PcgTree returns the chart as a hierarchy / Retourne le plan sous forme d'arbre
func (h *Handler) PcgTree(w http.ResponseWriter, r *http.Request) {
	roots, err := h.container.PcgSvc.Tree(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, roots)
}

// ImportPcg loads a CSV from a multipart "file" field or the raw body
// ImportPcg charge un CSV depuis le champ multipart "file" ou le corps brut
func (h *Handler) ImportPcg(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, apperr.Invalid("Fichier CSV manquant (champ file)"))
			return
		}
		defer file.Close()
		src = file
	}

	result, err := h.container.PcgSvc.ImportCSV(r.Context(), src)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, result)
}

// ExportPcg streams the chart as CSV or, with ?format=xlsx, as a workbook
// ExportPcg exporte le plan en CSV ou, avec ?format=xlsx, en classeur
func (h *Handler) ExportPcg(w http.ResponseWriter, r *http.Request) {
	var err error
	switch r.URL.Query().Get("format") {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="pcg.csv"`)
		err = h.container.PcgSvc.ExportCSV(r.Context(), w)
	case "xlsx":
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="pcg.xlsx"`)
		err = h.container.PcgSvc.ExportXLSX(r.Context(), w)
	default:
		writeError(w, r, apperr.Invalid("Format d'export inconnu (csv ou xlsx)"))
		return
	}
	if err != nil {
		writeError(w, r, err)
	}
}

// ListComptes lists business accounts / Liste les comptes métier
func (h *Handler) ListComptes(w http.ResponseWriter, r *http.Request) {
	filter := domain.CompteFilter{Type: r.URL.Query().Get("type")}
	var err error
	if filter.PcgID, err = queryInt64(r, "pcgId"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.UoID, err = queryInt64(r, "uoId"); err != nil {
		writeError(w, r, err)
		return
	}

	page := pageFromQuery(r)
	items, total, err := h.container.CompteSvc.List(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, items, total, page)
}

func (h *Handler) ListUO(w http.ResponseWriter, r *http.Request) {
	items, err := h.container.UOSvc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *Handler) UOTree(w http.ResponseWriter, r *http.Request) {
	roots, err := h.container.UOSvc.Tree(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, roots)
}

// MoveUO re-parents a unit, a null parentId makes it a root / Déplace une unité, parentId nul en fait une racine
func (h *Handler) MoveUO(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		ParentID *int64 `json:"parentId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	uo, err := h.container.UOSvc.Move(r.Context(), id, req.ParentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, uo)
}

// ListPeages lists toll stations, ?uoId and ?actif filter / Liste les péages, filtres ?uoId et ?actif
func (h *Handler) ListPeages(w http.ResponseWriter, r *http.Request) {
	var filter domain.PeageFilter
	var err error
	if filter.UoID, err = queryInt64(r, "uoId"); err != nil {
		writeError(w, r, err)
		return
	}
	if v := r.URL.Query().Get("actif"); v != "" {
		actif, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, apperr.Invalid("Paramètre actif invalide"))
			return
		}
		filter.Actif = &actif
	}

	items, err := h.container.PeageSvc.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *Handler) ListPeriodicites(w http.ResponseWriter, r *http.Request) {
	items, err := h.container.PeriodiciteSvc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}
