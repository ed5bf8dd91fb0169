package domain

import (
	"strings"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/validation"
	"github.com/shopspring/decimal"
)

// Accounting operations / Opérations comptables
const (
	OperationVenteTickets = "VENTE_TICKETS"
	OperationAbonnement   = "ABONNEMENT"
)

// Entry directions / Sens d'imputation
const (
	SensDebit  = "DEBIT"
	SensCredit = "CREDIT"
)

// OperationVariables lists formula variables available per operation
// OperationVariables liste les variables de formule disponibles par opération
var OperationVariables = map[string][]string{
	OperationVenteTickets: {"montant_total", "montant_especes", "montant_mobile", "ecart", "fond_caisse"},
	OperationAbonnement:   {"montant"},
}

// SchemaComptable maps an operation to journal lines / Associe une opération à des lignes d'écriture
type SchemaComptable struct {
	BaseModel
	ID        int64         `json:"id"`
	Code      string        `json:"code"`
	Libelle   string        `json:"libelle"`
	Operation string        `json:"operation"`
	Actif     bool          `json:"actif"`
	Lignes    []LigneSchema `json:"lignes"`
}

// LigneSchema is one templated line / Ligne modèle
type LigneSchema struct {
	ID           int64  `json:"id"`
	Ordre        int    `json:"ordre"`
	CompteID     int64  `json:"compteId"`
	CompteNumero string `json:"compteNumero,omitempty"`
	Sens         string `json:"sens"`
	Formule      string `json:"formule"`
	Libelle      string `json:"libelle"`
}

// Validate checks structure; formulas are checked by the evaluator
// Validate vérifie la structure ; les formules sont vérifiées par l'évaluateur
func (s *SchemaComptable) Validate() validation.Errors {
	var errs validation.Errors
	s.Code = strings.ToUpper(strings.TrimSpace(s.Code))
	errs.Code("code", s.Code)
	errs.Required("libellé", s.Libelle)
	_, known := OperationVariables[s.Operation]
	errs.Check(known, "Opération comptable inconnue : "+s.Operation)

	errs.Check(len(s.Lignes) >= 2, "Un schéma comptable doit comporter au moins deux lignes")
	var debit, credit bool
	for i, l := range s.Lignes {
		switch l.Sens {
		case SensDebit:
			debit = true
		case SensCredit:
			credit = true
		default:
			errs.Addf("Ligne %d : le sens doit être DEBIT ou CREDIT", i+1)
		}
		if l.CompteID <= 0 {
			errs.Addf("Ligne %d : le compte est obligatoire", i+1)
		}
		if strings.TrimSpace(l.Formule) == "" {
			errs.Addf("Ligne %d : la formule est obligatoire", i+1)
		}
	}
	if len(s.Lignes) >= 2 {
		errs.Check(debit && credit, "Un schéma comptable doit comporter au moins une ligne au débit et une au crédit")
	}
	return errs
}

// Ecriture is a generated journal entry / Écriture comptable générée
type Ecriture struct {
	ID        int64           `json:"id"`
	SchemaID  int64           `json:"schemaId"`
	Operation string          `json:"operation"`
	Reference string          `json:"reference"`
	Date      time.Time       `json:"date"`
	Lignes    []LigneEcriture `json:"lignes"`
	CreatedAt time.Time       `json:"createdAt"`
}

// LigneEcriture is a debit or credit line / Ligne au débit ou au crédit
type LigneEcriture struct {
	CompteNumero string          `json:"compteNumero"`
	Libelle      string          `json:"libelle"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
}

// Totals sums debit and credit / Somme débit et crédit
func (e *Ecriture) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range e.Lignes {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// IsBalanced checks debit equals credit / Vérifie l'égalité débit crédit
func (e *Ecriture) IsBalanced() bool {
	d, c := e.Totals()
	return d.Equal(c)
}

// EcritureFilter narrows journal listing / Filtre la liste des écritures
type EcritureFilter struct {
	Reference string
	Operation string
}

// Dashboard summarises activity / Résume l'activité
type Dashboard struct {
	AbonnementsActifs   int             `json:"abonnementsActifs"`
	AbonnementsExpirant int             `json:"abonnementsExpirant"`
	SessionsOuvertes    int             `json:"sessionsOuvertes"`
	RecetteDuJour       decimal.Decimal `json:"recetteDuJour"`
	RecettesParPeage    []RecettePeage  `json:"recettesParPeage"`
	UtilisateursParRole map[string]int  `json:"utilisateursParRole,omitempty"`
}

// RecettePeage is revenue of one station / Recette d'un péage
type RecettePeage struct {
	PeageID int64           `json:"peageId"`
	Libelle string          `json:"libelle"`
	Montant decimal.Decimal `json:"montant"`
}
