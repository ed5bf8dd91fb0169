// Package export reads and writes the spreadsheet formats exchanged with accountants.
// Package export lit et écrit les formats tableur échangés avec les comptables.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
)

// PcgHeader is the header of chart-of-accounts CSV files / En-tête des fichiers CSV du PCG
const PcgHeader = "numero,libelle,parent_numero"

const (
	pcgFields    = 3
	colNumero    = 0
	colLibelle   = 1
	colParentNum = 2
)

// ErrBadHeader is returned when the first line is not PcgHeader / Retournée quand la première ligne n'est pas PcgHeader
var ErrBadHeader = errors.New("en-tête CSV attendu : " + PcgHeader)

// PcgRow is one imported line / Ligne importée
type PcgRow struct {
	Line         int
	Numero       string
	Libelle      string
	ParentNumero string
}

// ReadPcg parses chart-of-accounts CSV; blank lines are skipped
// ReadPcg analyse un CSV du PCG ; les lignes vides sont ignorées
func ReadPcg(r io.Reader) ([]PcgRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = pcgFields
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrBadHeader
		}
		return nil, fmt.Errorf("lecture de l'en-tête CSV : %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	if strings.ToLower(strings.Join(header, ",")) != PcgHeader {
		return nil, ErrBadHeader
	}

	var rows []PcgRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("lecture du CSV : %w", err)
		}
		line, _ := cr.FieldPos(0)
		row := PcgRow{
			Line:         line,
			Numero:       strings.TrimSpace(rec[colNumero]),
			Libelle:      strings.TrimSpace(rec[colLibelle]),
			ParentNumero: strings.TrimSpace(rec[colParentNum]),
		}
		if row.Numero == "" && row.Libelle == "" && row.ParentNumero == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WritePcg writes accounts with header, parents resolved to their numero
// WritePcg écrit les comptes avec en-tête, parents résolus en numéro
func WritePcg(w io.Writer, items []*domain.Pcg) error {
	numeros := make(map[int64]string, len(items))
	for _, p := range items {
		numeros[p.ID] = p.Numero
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(PcgHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, p := range items {
		row := make([]string, pcgFields)
		row[colNumero] = p.Numero
		row[colLibelle] = p.Libelle
		if p.ParentID != nil {
			row[colParentNum] = numeros[*p.ParentID]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
