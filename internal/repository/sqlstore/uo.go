package sqlstore

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

var _ ports.UORepository = (*uoRepository)(nil)

type uoRepository struct {
	base
}

// NewUORepository creates organizational unit repository / Crée le repository des unités organisationnelles
func NewUORepository(conn ports.DBTX, d db.Dialect) ports.UORepository {
	return &uoRepository{base{db: conn, d: d}}
}

const uoColumns = `id, code, libelle, type, parent_id, responsable, created_at, updated_at`

func scanUO(s scanner) (*domain.OrganizationalUnit, error) {
	u := &domain.OrganizationalUnit{}
	err := s.Scan(&u.ID, &u.Code, &u.Libelle, &u.Type, &u.ParentID, &u.Responsable, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *uoRepository) Create(ctx context.Context, u *domain.OrganizationalUnit) error {
	u.Touch(time.Now().UTC())
	id, err := r.insert(ctx,
		`INSERT INTO organizational_units (code, libelle, type, parent_id, responsable, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Code, u.Libelle, u.Type, u.ParentID, u.Responsable, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

func (r *uoRepository) Update(ctx context.Context, u *domain.OrganizationalUnit) error {
	u.UpdatedAt = time.Now().UTC()
	return r.execAffected(ctx,
		`UPDATE organizational_units SET code = ?, libelle = ?, type = ?, parent_id = ?, responsable = ?, updated_at = ? WHERE id = ?`,
		u.Code, u.Libelle, u.Type, u.ParentID, u.Responsable, u.UpdatedAt, u.ID,
	)
}

func (r *uoRepository) Delete(ctx context.Context, id int64) error {
	return r.execAffected(ctx, `DELETE FROM organizational_units WHERE id = ?`, id)
}

func (r *uoRepository) GetByID(ctx context.Context, id int64) (*domain.OrganizationalUnit, error) {
	u, err := scanUO(r.queryRow(ctx, `SELECT `+uoColumns+` FROM organizational_units WHERE id = ?`, id))
	if err != nil {
		return nil, r.err(err)
	}
	return u, nil
}

func (r *uoRepository) List(ctx context.Context) ([]*domain.OrganizationalUnit, error) {
	rows, err := r.query(ctx, `SELECT `+uoColumns+` FROM organizational_units ORDER BY code`)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows, scanUO)
	return items, r.err(err)
}

func (r *uoRepository) CountChildren(ctx context.Context, id int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM organizational_units WHERE parent_id = ?`, id)
}

func (r *uoRepository) CountPeages(ctx context.Context, id int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM peages WHERE uo_id = ?`, id)
}
