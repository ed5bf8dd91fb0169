package sqlstore

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

var _ ports.EcritureRepository = (*ecritureRepository)(nil)

type ecritureRepository struct {
	base
}

// NewEcritureRepository creates journal repository / Crée le repository des écritures
func NewEcritureRepository(conn ports.DBTX, d db.Dialect) ports.EcritureRepository {
	return &ecritureRepository{base{db: conn, d: d}}
}

func (r *ecritureRepository) WithTx(tx ports.DBTX) ports.EcritureRepository {
	return &ecritureRepository{base{db: tx, d: r.d}}
}

const ecritureColumns = `id, schema_id, operation, reference, date_ecriture, created_at`

func scanEcriture(s scanner) (*domain.Ecriture, error) {
	e := &domain.Ecriture{}
	err := s.Scan(&e.ID, &e.SchemaID, &e.Operation, &e.Reference, &e.Date, &e.CreatedAt)
	return e, err
}

// Create inserts entry and lines / Insère l'écriture et ses lignes
func (r *ecritureRepository) Create(ctx context.Context, e *domain.Ecriture) error {
	e.CreatedAt = time.Now().UTC()
	id, err := r.insert(ctx,
		`INSERT INTO ecritures (schema_id, operation, reference, date_ecriture, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.SchemaID, e.Operation, e.Reference, e.Date.UTC(), e.CreatedAt,
	)
	if err != nil {
		return err
	}
	e.ID = id
	for _, l := range e.Lignes {
		if _, err := r.exec(ctx,
			`INSERT INTO lignes_ecriture (ecriture_id, compte_numero, libelle, debit, credit) VALUES (?, ?, ?, ?, ?)`,
			e.ID, l.CompteNumero, l.Libelle, l.Debit, l.Credit,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *ecritureRepository) GetByID(ctx context.Context, id int64) (*domain.Ecriture, error) {
	e, err := scanEcriture(r.queryRow(ctx, `SELECT `+ecritureColumns+` FROM ecritures WHERE id = ?`, id))
	if err != nil {
		return nil, r.err(err)
	}
	if err := r.loadLignes(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *ecritureRepository) List(ctx context.Context, filter domain.EcritureFilter, offset, limit int) ([]*domain.Ecriture, int, error) {
	var w where
	if filter.Reference != "" {
		w.add("reference = ?", filter.Reference)
	}
	if filter.Operation != "" {
		w.add("operation = ?", filter.Operation)
	}

	total, err := r.count(ctx, `SELECT COUNT(*) FROM ecritures`+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	args := append(w.args, limit, offset)
	rows, err := r.query(ctx,
		`SELECT `+ecritureColumns+` FROM ecritures`+w.String()+` ORDER BY date_ecriture DESC, id DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanEcriture)
	if err != nil {
		return nil, 0, r.err(err)
	}
	for _, e := range items {
		if err := r.loadLignes(ctx, e); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *ecritureRepository) loadLignes(ctx context.Context, e *domain.Ecriture) error {
	rows, err := r.query(ctx,
		`SELECT compte_numero, libelle, debit, credit FROM lignes_ecriture WHERE ecriture_id = ? ORDER BY id`,
		e.ID,
	)
	if err != nil {
		return err
	}
	lignes, err := collect(rows, func(s scanner) (domain.LigneEcriture, error) {
		var l domain.LigneEcriture
		err := s.Scan(&l.CompteNumero, &l.Libelle, &l.Debit, &l.Credit)
		return l, err
	})
	if err != nil {
		return r.err(err)
	}
	e.Lignes = lignes
	return nil
}
