package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/service"
)

// ListAbonnes searches subscribers by ?q / Recherche les abonnés par ?q
func (h *Handler) ListAbonnes(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	items, total, err := h.container.AbonneSvc.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, items, total, page)
}

// ListTarifs lists offers, optionally for one ?peageId / Liste les offres, éventuellement pour un ?peageId
func (h *Handler) ListTarifs(w http.ResponseWriter, r *http.Request) {
	peageID, err := queryInt64(r, "peageId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.container.TarifSvc.List(r.Context(), peageID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

// ListAbonnements filters by ?statut, ?abonneId and ?expireAvant (YYYY-MM-DD)
// ListAbonnements filtre par ?statut, ?abonneId et ?expireAvant (AAAA-MM-JJ)
func (h *Handler) ListAbonnements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AbonnementFilter{Statut: q.Get("statut")}
	var err error
	if filter.AbonneID, err = queryInt64(r, "abonneId"); err != nil {
		writeError(w, r, err)
		return
	}
	if v := q.Get("expireAvant"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, r, apperr.Invalid("Paramètre expireAvant invalide (AAAA-MM-JJ)"))
			return
		}
		filter.ExpireAvant = &t
	}

	page := pageFromQuery(r)
	items, total, err := h.container.AbonnementSvc.List(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, items, total, page)
}

func (h *Handler) GetAbonnement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ab, err := h.container.AbonnementSvc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, ab)
}

// Souscrire subscribes an abonné to an offer and books the sale / Souscrit une offre et comptabilise la vente
func (h *Handler) Souscrire(w http.ResponseWriter, r *http.Request) {
	var req service.Souscription
	if !decodeJSON(w, r, &req) {
		return
	}
	ab, err := h.container.AbonnementSvc.Souscrire(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ab)
}

// abonnementAction adapts a lifecycle transition to a handler / Adapte une transition de cycle de vie en handler
func abonnementAction(fn func(ctx context.Context, id int64) (*domain.Abonnement, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		ab, err := fn(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		jsonResponse(w, ab)
	}
}
