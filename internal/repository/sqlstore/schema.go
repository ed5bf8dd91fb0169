package sqlstore

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

var _ ports.SchemaComptableRepository = (*schemaRepository)(nil)

// schemaRepository stores schemas and their lines. Create and Update issue
// several statements, callers run them inside a transaction.
type schemaRepository struct {
	base
}

// NewSchemaComptableRepository creates accounting schema repository / Crée le repository des schémas comptables
func NewSchemaComptableRepository(conn ports.DBTX, d db.Dialect) ports.SchemaComptableRepository {
	return &schemaRepository{base{db: conn, d: d}}
}

func (r *schemaRepository) WithTx(tx ports.DBTX) ports.SchemaComptableRepository {
	return &schemaRepository{base{db: tx, d: r.d}}
}

const schemaColumns = `id, code, libelle, operation, actif, created_at, updated_at`

func scanSchema(s scanner) (*domain.SchemaComptable, error) {
	sc := &domain.SchemaComptable{}
	err := s.Scan(&sc.ID, &sc.Code, &sc.Libelle, &sc.Operation, &sc.Actif, &sc.CreatedAt, &sc.UpdatedAt)
	return sc, err
}

func (r *schemaRepository) Create(ctx context.Context, s *domain.SchemaComptable) error {
	s.Touch(time.Now().UTC())
	id, err := r.insert(ctx,
		`INSERT INTO schemas_comptables (code, libelle, operation, actif, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.Code, s.Libelle, s.Operation, s.Actif, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return err
	}
	s.ID = id
	return r.insertLignes(ctx, s)
}

func (r *schemaRepository) Update(ctx context.Context, s *domain.SchemaComptable) error {
	s.UpdatedAt = time.Now().UTC()
	err := r.execAffected(ctx,
		`UPDATE schemas_comptables SET code = ?, libelle = ?, operation = ?, actif = ?, updated_at = ? WHERE id = ?`,
		s.Code, s.Libelle, s.Operation, s.Actif, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return err
	}
	if _, err := r.exec(ctx, `DELETE FROM lignes_schema WHERE schema_id = ?`, s.ID); err != nil {
		return err
	}
	return r.insertLignes(ctx, s)
}

func (r *schemaRepository) insertLignes(ctx context.Context, s *domain.SchemaComptable) error {
	for i := range s.Lignes {
		l := &s.Lignes[i]
		if l.Ordre == 0 {
			l.Ordre = i + 1
		}
		id, err := r.insert(ctx,
			`INSERT INTO lignes_schema (schema_id, ordre, compte_id, sens, formule, libelle) VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, l.Ordre, l.CompteID, l.Sens, l.Formule, l.Libelle,
		)
		if err != nil {
			return err
		}
		l.ID = id
	}
	return nil
}

func (r *schemaRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.exec(ctx, `DELETE FROM lignes_schema WHERE schema_id = ?`, id); err != nil {
		return err
	}
	return r.execAffected(ctx, `DELETE FROM schemas_comptables WHERE id = ?`, id)
}

func (r *schemaRepository) GetByID(ctx context.Context, id int64) (*domain.SchemaComptable, error) {
	s, err := scanSchema(r.queryRow(ctx, `SELECT `+schemaColumns+` FROM schemas_comptables WHERE id = ?`, id))
	if err != nil {
		return nil, r.err(err)
	}
	if err := r.loadLignes(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *schemaRepository) List(ctx context.Context) ([]*domain.SchemaComptable, error) {
	rows, err := r.query(ctx, `SELECT `+schemaColumns+` FROM schemas_comptables ORDER BY operation, code`)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows, scanSchema)
	if err != nil {
		return nil, r.err(err)
	}
	for _, s := range items {
		if err := r.loadLignes(ctx, s); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *schemaRepository) ActiveFor(ctx context.Context, operation string) (*domain.SchemaComptable, error) {
	s, err := scanSchema(r.queryRow(ctx,
		`SELECT `+schemaColumns+` FROM schemas_comptables WHERE operation = ? AND actif = ? ORDER BY id LIMIT 1`,
		operation, true,
	))
	if err != nil {
		return nil, r.err(err)
	}
	if err := r.loadLignes(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *schemaRepository) DeactivateOthers(ctx context.Context, operation string, keepID int64) error {
	_, err := r.exec(ctx,
		`UPDATE schemas_comptables SET actif = ?, updated_at = ? WHERE operation = ? AND id <> ? AND actif = ?`,
		false, time.Now().UTC(), operation, keepID, true,
	)
	return err
}

func (r *schemaRepository) CountEcritures(ctx context.Context, id int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM ecritures WHERE schema_id = ?`, id)
}

func (r *schemaRepository) loadLignes(ctx context.Context, s *domain.SchemaComptable) error {
	rows, err := r.query(ctx,
		`SELECT l.id, l.ordre, l.compte_id, c.numero, l.sens, l.formule, l.libelle
		 FROM lignes_schema l JOIN comptes c ON c.id = l.compte_id
		 WHERE l.schema_id = ? ORDER BY l.ordre, l.id`,
		s.ID,
	)
	if err != nil {
		return err
	}
	lignes, err := collect(rows, func(sc scanner) (domain.LigneSchema, error) {
		var l domain.LigneSchema
		err := sc.Scan(&l.ID, &l.Ordre, &l.CompteID, &l.CompteNumero, &l.Sens, &l.Formule, &l.Libelle)
		return l, err
	})
	if err != nil {
		return r.err(err)
	}
	s.Lignes = lignes
	return nil
}
