package export

import (
	"fmt"
	"io"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the MIME type of workbooks / Type MIME des classeurs
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet is a tabular worksheet / Feuille tabulaire
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// WriteXLSX renders sheets into one workbook / Produit un classeur avec les feuilles
func WriteXLSX(w io.Writer, sheets ...Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.Name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			return err
		}

		for c, h := range sh.Headers {
			cell, _ := excelize.CoordinatesToCellName(c+1, 1)
			if err := f.SetCellValue(sh.Name, cell, h); err != nil {
				return err
			}
		}
		if len(sh.Headers) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(sh.Headers), 1)
			if err := f.SetCellStyle(sh.Name, "A1", last, bold); err != nil {
				return err
			}
		}

		for r, row := range sh.Rows {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
				if err := f.SetCellValue(sh.Name, cell, cellValue(v)); err != nil {
					return fmt.Errorf("sheet %s cell %s: %w", sh.Name, cell, err)
				}
			}
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func cellValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.InexactFloat64()
	case time.Time:
		return x.Format("02/01/2006 15:04")
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.Format("02/01/2006 15:04")
	default:
		return v
	}
}

// PcgSheet lists chart of accounts / Liste le plan comptable
func PcgSheet(items []*domain.Pcg) Sheet {
	numeros := make(map[int64]string, len(items))
	for _, p := range items {
		numeros[p.ID] = p.Numero
	}
	sh := Sheet{Name: "Plan comptable", Headers: []string{"Numéro", "Libellé", "Classe", "Compte parent", "Actif"}}
	for _, p := range items {
		parent := ""
		if p.ParentID != nil {
			parent = numeros[*p.ParentID]
		}
		actif := "Non"
		if p.Actif {
			actif = "Oui"
		}
		sh.Rows = append(sh.Rows, []any{p.Numero, p.Libelle, p.Classe, parent, actif})
	}
	return sh
}

// SessionSheets builds summary and ticket sheets of a cash session
// SessionSheets construit les feuilles récapitulatif et tickets d'une session de caisse
func SessionSheets(s *domain.SessionCaisse, peage string, totals domain.SessionTotals, tickets []*domain.Ticket) []Sheet {
	summary := Sheet{
		Name:    "Récapitulatif",
		Headers: []string{"Rubrique", "Valeur"},
		Rows: [][]any{
			{"Session", s.ID},
			{"Péage", peage},
			{"Voie", s.Voie},
			{"Statut", s.Statut},
			{"Ouverture", s.DateOuverture},
			{"Fermeture", s.DateFermeture},
			{"Fond de caisse", s.FondDeCaisse},
			{"Nombre de tickets", totals.NombreTickets},
			{"Passages abonnés", totals.Passages},
			{"Total ventes", totals.MontantTotal},
			{"Espèces", totals.MontantEspeces},
			{"Mobile money", totals.MontantMobile},
			{"Montant déclaré", s.MontantDeclare},
			{"Écart", s.Ecart},
		},
	}

	detail := Sheet{
		Name:    "Tickets",
		Headers: []string{"Numéro", "Date", "Catégorie", "Mode de paiement", "Montant"},
	}
	for _, t := range tickets {
		detail.Rows = append(detail.Rows, []any{t.Numero, t.CreatedAt, t.CategorieVehicule, t.ModePaiement, t.Montant})
	}
	return []Sheet{summary, detail}
}
