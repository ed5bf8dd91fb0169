package domain

import (
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/validation"
	"github.com/shopspring/decimal"
)

// Cash session statuses / Statuts de session de caisse
const (
	SessionOuverte = "OUVERTE"
	SessionFermee  = "FERMEE"
	SessionValidee = "VALIDEE"
)

// Payment modes / Modes de paiement
const (
	PaiementEspeces     = "ESPECES"
	PaiementMobileMoney = "MOBILE_MONEY"
	PaiementAbonnement  = "ABONNEMENT"
)

// SessionCaisse is a cashier shift on one lane / Vacation d'un caissier sur une voie
type SessionCaisse struct {
	BaseModel
	ID             int64           `json:"id"`
	CaissierID     int64           `json:"caissierId"`
	PeageID        int64           `json:"peageId"`
	Voie           int             `json:"voie"`
	FondDeCaisse   decimal.Decimal `json:"fondDeCaisse"`
	DateOuverture  time.Time       `json:"dateOuverture"`
	DateFermeture  *time.Time      `json:"dateFermeture,omitempty"`
	MontantDeclare decimal.Decimal `json:"montantDeclare"`
	MontantCalcule decimal.Decimal `json:"montantCalcule"`
	Ecart          decimal.Decimal `json:"ecart"`
	Statut         string          `json:"statut"`
	ValideePar     *int64          `json:"valideePar,omitempty"`
}

// IsOpen checks OUVERTE / Vérifie OUVERTE
func (s *SessionCaisse) IsOpen() bool {
	return s.Statut == SessionOuverte
}

// Ticket is a sale recorded in a session / Vente enregistrée dans une session
type Ticket struct {
	ID                int64           `json:"id"`
	SessionID         int64           `json:"sessionId"`
	Numero            string          `json:"numero"`
	CategorieVehicule string          `json:"categorieVehicule"`
	Montant           decimal.Decimal `json:"montant"`
	ModePaiement      string          `json:"modePaiement"`
	AbonnementID      *int64          `json:"abonnementId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// Validate checks own fields / Vérifie les champs propres
func (t *Ticket) Validate() validation.Errors {
	var errs validation.Errors
	errs.Required("catégorie de véhicule", t.CategorieVehicule)
	errs.OneOf("mode de paiement", t.ModePaiement, PaiementEspeces, PaiementMobileMoney, PaiementAbonnement)
	if t.ModePaiement == PaiementAbonnement {
		errs.Check(t.AbonnementID != nil, "L'abonnement est obligatoire pour un passage abonné")
	} else {
		errs.Positive("montant", t.Montant)
	}
	return errs
}

// SessionTotals aggregates tickets of a session / Agrège les tickets d'une session
type SessionTotals struct {
	NombreTickets  int             `json:"nombreTickets"`
	MontantTotal   decimal.Decimal `json:"montantTotal"`
	MontantEspeces decimal.Decimal `json:"montantEspeces"`
	MontantMobile  decimal.Decimal `json:"montantMobile"`
	Passages       int             `json:"passagesAbonnes"`
}

// Totals computes aggregates from tickets / Calcule les agrégats depuis les tickets
func Totals(tickets []*Ticket) SessionTotals {
	t := SessionTotals{MontantTotal: decimal.Zero, MontantEspeces: decimal.Zero, MontantMobile: decimal.Zero}
	for _, tk := range tickets {
		t.NombreTickets++
		t.MontantTotal = t.MontantTotal.Add(tk.Montant)
		switch tk.ModePaiement {
		case PaiementEspeces:
			t.MontantEspeces = t.MontantEspeces.Add(tk.Montant)
		case PaiementMobileMoney:
			t.MontantMobile = t.MontantMobile.Add(tk.Montant)
		case PaiementAbonnement:
			t.Passages++
		}
	}
	return t
}

// Close computes declared vs expected cash / Calcule l'écart entre déclaré et attendu
// Ecart = declare - (fond + especes)
func (s *SessionCaisse) Close(declare decimal.Decimal, totals SessionTotals, at time.Time) {
	s.MontantDeclare = declare
	s.MontantCalcule = totals.MontantEspeces
	s.Ecart = declare.Sub(s.FondDeCaisse.Add(totals.MontantEspeces))
	s.DateFermeture = &at
	s.Statut = SessionFermee
}

// SessionFilter narrows session listing / Filtre la liste des sessions
type SessionFilter struct {
	Statut     string
	PeageID    int64
	CaissierID int64
}
