package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/export"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

// PcgService manages the chart of accounts / Gère le plan comptable
type PcgService struct {
	repo   ports.PcgRepository
	db     ports.TxBeginner
	events ports.EventPublisher
}

// NewPcgService creates PCG service / Crée le service du PCG
func NewPcgService(repo ports.PcgRepository, db ports.TxBeginner, events ports.EventPublisher) *PcgService {
	return &PcgService{repo: repo, db: db, events: publisherOrNoop(events)}
}

// ImportError is a rejected CSV row / Ligne CSV rejetée
type ImportError struct {
	Line    int    `json:"line"`
	Numero  string `json:"numero,omitempty"`
	Message string `json:"message"`
}

// ImportResult summarises a CSV import / Résume un import CSV
type ImportResult struct {
	Imported int           `json:"imported"`
	Errors   []ImportError `json:"errors"`
}

// List returns accounts ordered by numero / Retourne les comptes triés par numéro
func (s *PcgService) List(ctx context.Context, filter domain.PcgFilter) ([]*domain.Pcg, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, storeErr(err, labelPcg)
	}
	return items, nil
}

// Tree returns the account forest / Retourne la forêt des comptes
func (s *PcgService) Tree(ctx context.Context) ([]*domain.Pcg, error) {
	items, err := s.List(ctx, domain.PcgFilter{})
	if err != nil {
		return nil, err
	}
	return domain.PcgTree(items), nil
}

// Get returns one account / Retourne un compte
func (s *PcgService) Get(ctx context.Context, id int64) (*domain.Pcg, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelPcg)
	}
	return p, nil
}

// Create adds an account under an optional parent / Ajoute un compte sous un parent optionnel
func (s *PcgService) Create(ctx context.Context, p *domain.Pcg) (*domain.Pcg, error) {
	p.ID = 0
	p.Normalize()
	errs := p.Validate()
	if errs.Valid() && p.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *p.ParentID)
		if err != nil {
			return nil, ensureExists(err, "Le compte parent n'existe pas")
		}
		if !domain.ExtendsNumero(parent.Numero, p.Numero) {
			errs.Addf("Le numéro %s doit prolonger celui du compte parent %s", p.Numero, parent.Numero)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, s.writeErr(err, p.Numero)
	}

	s.events.Publish(ctx, domain.NewEvent(resourcePcg, domain.ActionCreated, p.ID))
	return p, nil
}

// Update edits an account and re-checks numbering against parent and children
// Update modifie un compte et revérifie la numérotation avec parent et enfants
func (s *PcgService) Update(ctx context.Context, id int64, in *domain.Pcg) (*domain.Pcg, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelPcg)
	}

	p.Numero = in.Numero
	p.Libelle = in.Libelle
	p.ParentID = in.ParentID
	p.Actif = in.Actif
	p.Normalize()

	errs := p.Validate()
	if !errs.Valid() {
		return nil, errs.Err()
	}

	if p.ParentID != nil {
		all, err := s.repo.List(ctx, domain.PcgFilter{})
		if err != nil {
			return nil, storeErr(err, labelPcg)
		}
		parents := make(map[int64]*int64, len(all))
		var parent *domain.Pcg
		for _, it := range all {
			parents[it.ID] = it.ParentID
			if it.ID == *p.ParentID {
				parent = it
			}
		}
		switch {
		case parent == nil:
			errs.Add("Le compte parent n'existe pas")
		case domain.IsDescendant(parents, p.ID, parent.ID):
			errs.Add("Un compte ne peut pas être rattaché à lui-même ou à l'un de ses sous-comptes")
		case !domain.ExtendsNumero(parent.Numero, p.Numero):
			errs.Addf("Le numéro %s doit prolonger celui du compte parent %s", p.Numero, parent.Numero)
		}
	}

	children, err := s.repo.Children(ctx, p.ID)
	if err != nil {
		return nil, storeErr(err, labelPcg)
	}
	for _, c := range children {
		if !domain.ExtendsNumero(p.Numero, c.Numero) {
			errs.Addf("Le sous-compte %s ne prolonge pas le numéro %s", c.Numero, p.Numero)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, s.writeErr(err, p.Numero)
	}

	s.events.Publish(ctx, domain.NewEvent(resourcePcg, domain.ActionUpdated, p.ID))
	return p, nil
}

// Delete removes a leaf account nothing references / Supprime un compte feuille non référencé
func (s *PcgService) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return storeErr(err, labelPcg)
	}

	children, err := s.repo.Children(ctx, id)
	if err != nil {
		return storeErr(err, labelPcg)
	}
	if len(children) > 0 {
		return apperr.Conflict("Ce compte possède des sous-comptes et ne peut pas être supprimé")
	}

	n, err := s.repo.CountComptes(ctx, id)
	if err != nil {
		return storeErr(err, labelPcg)
	}
	if n > 0 {
		return apperr.Conflict(fmt.Sprintf("Ce compte est utilisé par %d compte(s) opérationnel(s)", n))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return storeErr(err, labelPcg)
	}

	s.events.Publish(ctx, domain.NewEvent(resourcePcg, domain.ActionDeleted, id))
	return nil
}

// ImportCSV imports rows in one transaction, rejecting invalid rows individually
// ImportCSV importe les lignes en une transaction, en rejetant individuellement les lignes invalides
// A parent must already exist or appear on an earlier row.
func (s *PcgService) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	rows, err := export.ReadPcg(r)
	if err != nil {
		return nil, apperr.Invalid("Fichier CSV invalide : " + err.Error())
	}

	result := &ImportResult{Errors: []ImportError{}}
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		for _, row := range rows {
			msg, err := s.importRow(ctx, repo, row)
			if err != nil {
				return err
			}
			if msg != "" {
				result.Errors = append(result.Errors, ImportError{Line: row.Line, Numero: row.Numero, Message: msg})
				continue
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, labelPcg)
	}

	slog.Info("pcg import finished", "imported", result.Imported, "rejected", len(result.Errors))
	if result.Imported > 0 {
		s.events.Publish(ctx, domain.NewEvent(resourcePcg, domain.ActionCreated, nil))
	}
	return result, nil
}

// importRow returns a rejection message, or an error aborting the import
// importRow retourne un message de rejet, ou une erreur qui interrompt l'import
func (s *PcgService) importRow(ctx context.Context, repo ports.PcgRepository, row export.PcgRow) (string, error) {
	p := &domain.Pcg{Numero: row.Numero, Libelle: row.Libelle, Actif: true}
	p.Normalize()
	if errs := p.Validate(); !errs.Valid() {
		return strings.Join(errs, " ; "), nil
	}

	if _, err := repo.GetByNumero(ctx, p.Numero); err == nil {
		return "Le compte " + p.Numero + " existe déjà", nil
	} else if !errors.Is(err, db.ErrNoRecord) {
		return "", err
	}

	if row.ParentNumero != "" {
		parent, err := repo.GetByNumero(ctx, row.ParentNumero)
		if errors.Is(err, db.ErrNoRecord) {
			return "Le compte parent " + row.ParentNumero + " est introuvable", nil
		}
		if err != nil {
			return "", err
		}
		if !domain.ExtendsNumero(parent.Numero, p.Numero) {
			return fmt.Sprintf("Le numéro %s doit prolonger celui du compte parent %s", p.Numero, parent.Numero), nil
		}
		p.ParentID = &parent.ID
	}

	if err := repo.Create(ctx, p); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return "Le compte " + p.Numero + " existe déjà", nil
		}
		return "", err
	}
	return "", nil
}

// ExportCSV writes the whole chart / Écrit tout le plan
func (s *PcgService) ExportCSV(ctx context.Context, w io.Writer) error {
	items, err := s.List(ctx, domain.PcgFilter{})
	if err != nil {
		return err
	}
	return export.WritePcg(w, items)
}

// ExportXLSX writes the whole chart as a workbook / Écrit tout le plan en classeur
func (s *PcgService) ExportXLSX(ctx context.Context, w io.Writer) error {
	items, err := s.List(ctx, domain.PcgFilter{})
	if err != nil {
		return err
	}
	return export.WriteXLSX(w, export.PcgSheet(items))
}

func (s *PcgService) writeErr(err error, numero string) error {
	switch {
	case errors.Is(err, db.ErrDuplicate):
		return apperr.Conflict("Un compte PCG existe déjà avec le numéro " + numero)
	case errors.Is(err, db.ErrForeignKeyViolation):
		return apperr.Invalid("Le compte parent n'existe pas")
	}
	return storeErr(err, labelPcg)
}
