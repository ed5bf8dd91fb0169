package sqlstore

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

var _ ports.CompteRepository = (*compteRepository)(nil)

type compteRepository struct {
	base
}

// NewCompteRepository creates compte repository / Crée le repository des comptes
func NewCompteRepository(conn ports.DBTX, d db.Dialect) ports.CompteRepository {
	return &compteRepository{base{db: conn, d: d}}
}

const compteSelect = `SELECT c.id, c.numero, c.libelle, c.pcg_id, p.numero, c.uo_id, c.type, c.actif, c.created_at, c.updated_at
	FROM comptes c JOIN pcg p ON p.id = c.pcg_id`

func scanCompte(s scanner) (*domain.Compte, error) {
	c := &domain.Compte{}
	err := s.Scan(&c.ID, &c.Numero, &c.Libelle, &c.PcgID, &c.PcgNumero, &c.UoID, &c.Type, &c.Actif, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *compteRepository) Create(ctx context.Context, c *domain.Compte) error {
	c.Touch(time.Now().UTC())
	id, err := r.insert(ctx,
		`INSERT INTO comptes (numero, libelle, pcg_id, uo_id, type, actif, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Numero, c.Libelle, c.PcgID, c.UoID, c.Type, c.Actif, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *compteRepository) Update(ctx context.Context, c *domain.Compte) error {
	c.UpdatedAt = time.Now().UTC()
	return r.execAffected(ctx,
		`UPDATE comptes SET numero = ?, libelle = ?, pcg_id = ?, uo_id = ?, type = ?, actif = ?, updated_at = ? WHERE id = ?`,
		c.Numero, c.Libelle, c.PcgID, c.UoID, c.Type, c.Actif, c.UpdatedAt, c.ID,
	)
}

func (r *compteRepository) Delete(ctx context.Context, id int64) error {
	return r.execAffected(ctx, `DELETE FROM comptes WHERE id = ?`, id)
}

func (r *compteRepository) GetByID(ctx context.Context, id int64) (*domain.Compte, error) {
	c, err := scanCompte(r.queryRow(ctx, compteSelect+` WHERE c.id = ?`, id))
	if err != nil {
		return nil, r.err(err)
	}
	return c, nil
}

func (r *compteRepository) List(ctx context.Context, filter domain.CompteFilter, offset, limit int) ([]*domain.Compte, int, error) {
	var w where
	if filter.Type != "" {
		w.add("c.type = ?", filter.Type)
	}
	if filter.PcgID > 0 {
		w.add("c.pcg_id = ?", filter.PcgID)
	}
	if filter.UoID > 0 {
		w.add("c.uo_id = ?", filter.UoID)
	}

	total, err := r.count(ctx, `SELECT COUNT(*) FROM comptes c`+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}

	args := append(w.args, limit, offset)
	rows, err := r.query(ctx, compteSelect+w.String()+` ORDER BY c.numero LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanCompte)
	if err != nil {
		return nil, 0, r.err(err)
	}
	return items, total, nil
}
