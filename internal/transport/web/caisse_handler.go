package web

import (
	"fmt"
	"net/http"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/service"
	"github.com/shopspring/decimal"
)

// OuvrirSession opens a shift for the caller / Ouvre une vacation pour l'appelant
func (h *Handler) OuvrirSession(w http.ResponseWriter, r *http.Request) {
	var req service.Ouverture
	if !decodeJSON(w, r, &req) {
		return
	}
	caissierID, _ := UserIDFromContext(r.Context())
	sess, err := h.container.SessionSvc.Ouvrir(r.Context(), caissierID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// CurrentSession returns the caller's open shift / Retourne la vacation ouverte de l'appelant
func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	caissierID, _ := UserIDFromContext(r.Context())
	sess, err := h.container.SessionSvc.Current(r.Context(), caissierID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, sess)
}

// Vendre issues a ticket on the caller's session / Émet un ticket sur la session de l'appelant
func (h *Handler) Vendre(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req service.Vente
	if !decodeJSON(w, r, &req) {
		return
	}
	caissierID, _ := UserIDFromContext(r.Context())
	ticket, err := h.container.SessionSvc.Vendre(r.Context(), id, caissierID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

// FermerSession closes the shift with the counted cash / Ferme la vacation avec le montant compté
func (h *Handler) FermerSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		MontantDeclare decimal.Decimal `json:"montantDeclare"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	caissierID, _ := UserIDFromContext(r.Context())
	detail, err := h.container.SessionSvc.Fermer(r.Context(), id, caissierID, req.MontantDeclare)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, detail)
}

// ValiderSession books a closed shift / Comptabilise une vacation fermée
func (h *Handler) ValiderSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	validatorID, _ := UserIDFromContext(r.Context())
	detail, err := h.container.SessionSvc.Valider(r.Context(), id, validatorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, detail)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := h.container.SessionSvc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, detail)
}

// ListSessions filters by ?statut, ?peageId and ?caissierId / Filtre par ?statut, ?peageId et ?caissierId
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	filter := domain.SessionFilter{Statut: r.URL.Query().Get("statut")}
	var err error
	if filter.PeageID, err = queryInt64(r, "peageId"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.CaissierID, err = queryInt64(r, "caissierId"); err != nil {
		writeError(w, r, err)
		return
	}

	page := pageFromQuery(r)
	items, total, err := h.container.SessionSvc.List(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, items, total, page)
}

func (h *Handler) SessionTickets(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tickets, err := h.container.SessionSvc.Tickets(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, tickets)
}

// ExportSession streams the shift report workbook / Exporte le rapport de vacation
func (h *Handler) ExportSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	// headers only take effect if the service writes the body
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="session-%d.xlsx"`, id))
	if err := h.container.SessionSvc.ExportXLSX(r.Context(), id, w); err != nil {
		w.Header().Del("Content-Disposition")
		writeError(w, r, err)
	}
}

func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	items, err := h.container.SchemaSvc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

// SimulerSchema evaluates a scheme without booking it / Évalue un schéma sans le comptabiliser
func (h *Handler) SimulerSchema(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Variables map[string]decimal.Decimal `json:"variables"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sim, err := h.container.SchemaSvc.Simuler(r.Context(), id, req.Variables)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, sim)
}

// ListEcritures filters the journal by ?reference and ?operation / Filtre le journal par ?reference et ?operation
func (h *Handler) ListEcritures(w http.ResponseWriter, r *http.Request) {
	filter := domain.EcritureFilter{
		Reference: r.URL.Query().Get("reference"),
		Operation: r.URL.Query().Get("operation"),
	}
	page := pageFromQuery(r)
	items, total, err := h.container.SchemaSvc.ListEcritures(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, items, total, page)
}

func (h *Handler) GetEcriture(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.container.SchemaSvc.GetEcriture(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, e)
}

// Dashboard returns the activity summary / Retourne le résumé d'activité
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.container.DashboardSvc.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, d)
}
