package sqlstore

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

var _ ports.PcgRepository = (*pcgRepository)(nil)

type pcgRepository struct {
	base
}

// NewPcgRepository creates chart of accounts repository / Crée le repository du plan comptable
func NewPcgRepository(conn ports.DBTX, d db.Dialect) ports.PcgRepository {
	return &pcgRepository{base{db: conn, d: d}}
}

func (r *pcgRepository) WithTx(tx ports.DBTX) ports.PcgRepository {
	return &pcgRepository{base{db: tx, d: r.d}}
}

const pcgColumns = `id, numero, libelle, classe, parent_id, actif, created_at, updated_at`

func scanPcg(s scanner) (*domain.Pcg, error) {
	p := &domain.Pcg{}
	err := s.Scan(&p.ID, &p.Numero, &p.Libelle, &p.Classe, &p.ParentID, &p.Actif, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *pcgRepository) Create(ctx context.Context, p *domain.Pcg) error {
	p.Touch(time.Now().UTC())
	id, err := r.insert(ctx,
		`INSERT INTO pcg (numero, libelle, classe, parent_id, actif, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Numero, p.Libelle, p.Classe, p.ParentID, p.Actif, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (r *pcgRepository) Update(ctx context.Context, p *domain.Pcg) error {
	p.UpdatedAt = time.Now().UTC()
	return r.execAffected(ctx,
		`UPDATE pcg SET numero = ?, libelle = ?, classe = ?, parent_id = ?, actif = ?, updated_at = ? WHERE id = ?`,
		p.Numero, p.Libelle, p.Classe, p.ParentID, p.Actif, p.UpdatedAt, p.ID,
	)
}

func (r *pcgRepository) Delete(ctx context.Context, id int64) error {
	return r.execAffected(ctx, `DELETE FROM pcg WHERE id = ?`, id)
}

func (r *pcgRepository) GetByID(ctx context.Context, id int64) (*domain.Pcg, error) {
	p, err := scanPcg(r.queryRow(ctx, `SELECT `+pcgColumns+` FROM pcg WHERE id = ?`, id))
	if err != nil {
		return nil, r.err(err)
	}
	return p, nil
}

func (r *pcgRepository) GetByNumero(ctx context.Context, numero string) (*domain.Pcg, error) {
	p, err := scanPcg(r.queryRow(ctx, `SELECT `+pcgColumns+` FROM pcg WHERE numero = ?`, numero))
	if err != nil {
		return nil, r.err(err)
	}
	return p, nil
}

func (r *pcgRepository) List(ctx context.Context, filter domain.PcgFilter) ([]*domain.Pcg, error) {
	var w where
	if filter.Classe > 0 {
		w.add("classe = ?", filter.Classe)
	}
	if filter.Query != "" {
		w.add("(numero LIKE ? OR LOWER(libelle) LIKE ?)", like(filter.Query), like(filter.Query))
	}

	rows, err := r.query(ctx, `SELECT `+pcgColumns+` FROM pcg`+w.String()+` ORDER BY numero`, w.args...)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows, scanPcg)
	return items, r.err(err)
}

func (r *pcgRepository) Children(ctx context.Context, id int64) ([]*domain.Pcg, error) {
	rows, err := r.query(ctx, `SELECT `+pcgColumns+` FROM pcg WHERE parent_id = ? ORDER BY numero`, id)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows, scanPcg)
	return items, r.err(err)
}

func (r *pcgRepository) CountComptes(ctx context.Context, pcgID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM comptes WHERE pcg_id = ?`, pcgID)
}
