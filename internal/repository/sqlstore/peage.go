package sqlstore

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

var (
	_ ports.PeageRepository       = (*peageRepository)(nil)
	_ ports.PeriodiciteRepository = (*periodiciteRepository)(nil)
)

type peageRepository struct {
	base
}

// NewPeageRepository creates toll station repository / Crée le repository des péages
func NewPeageRepository(conn ports.DBTX, d db.Dialect) ports.PeageRepository {
	return &peageRepository{base{db: conn, d: d}}
}

const peageColumns = `id, code, libelle, localisation, uo_id, nombre_voies, actif, created_at, updated_at`

func scanPeage(s scanner) (*domain.Peage, error) {
	p := &domain.Peage{}
	err := s.Scan(&p.ID, &p.Code, &p.Libelle, &p.Localisation, &p.UoID, &p.NombreVoies, &p.Actif, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *peageRepository) Create(ctx context.Context, p *domain.Peage) error {
	p.Touch(time.Now().UTC())
	id, err := r.insert(ctx,
		`INSERT INTO peages (code, libelle, localisation, uo_id, nombre_voies, actif, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Code, p.Libelle, p.Localisation, p.UoID, p.NombreVoies, p.Actif, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (r *peageRepository) Update(ctx context.Context, p *domain.Peage) error {
	p.UpdatedAt = time.Now().UTC()
	return r.execAffected(ctx,
		`UPDATE peages SET code = ?, libelle = ?, localisation = ?, uo_id = ?, nombre_voies = ?, actif = ?, updated_at = ? WHERE id = ?`,
		p.Code, p.Libelle, p.Localisation, p.UoID, p.NombreVoies, p.Actif, p.UpdatedAt, p.ID,
	)
}

func (r *peageRepository) Delete(ctx context.Context, id int64) error {
	return r.execAffected(ctx, `DELETE FROM peages WHERE id = ?`, id)
}

func (r *peageRepository) GetByID(ctx context.Context, id int64) (*domain.Peage, error) {
	p, err := scanPeage(r.queryRow(ctx, `SELECT `+peageColumns+` FROM peages WHERE id = ?`, id))
	if err != nil {
		return nil, r.err(err)
	}
	return p, nil
}

func (r *peageRepository) List(ctx context.Context, filter domain.PeageFilter) ([]*domain.Peage, error) {
	var w where
	if filter.UoID > 0 {
		w.add("uo_id = ?", filter.UoID)
	}
	if filter.Actif != nil {
		w.add("actif = ?", *filter.Actif)
	}
	rows, err := r.query(ctx, `SELECT `+peageColumns+` FROM peages`+w.String()+` ORDER BY code`, w.args...)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows, scanPeage)
	return items, r.err(err)
}

type periodiciteRepository struct {
	base
}

// NewPeriodiciteRepository creates periodicity repository / Crée le repository des périodicités
func NewPeriodiciteRepository(conn ports.DBTX, d db.Dialect) ports.PeriodiciteRepository {
	return &periodiciteRepository{base{db: conn, d: d}}
}

func scanPeriodicite(s scanner) (*domain.Periodicite, error) {
	p := &domain.Periodicite{}
	err := s.Scan(&p.ID, &p.Code, &p.Libelle, &p.DureeJours, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *periodiciteRepository) Create(ctx context.Context, p *domain.Periodicite) error {
	p.Touch(time.Now().UTC())
	id, err := r.insert(ctx,
		`INSERT INTO periodicites (code, libelle, duree_jours, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.Code, p.Libelle, p.DureeJours, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (r *periodiciteRepository) Update(ctx context.Context, p *domain.Periodicite) error {
	p.UpdatedAt = time.Now().UTC()
	return r.execAffected(ctx,
		`UPDATE periodicites SET code = ?, libelle = ?, duree_jours = ?, updated_at = ? WHERE id = ?`,
		p.Code, p.Libelle, p.DureeJours, p.UpdatedAt, p.ID,
	)
}

func (r *periodiciteRepository) Delete(ctx context.Context, id int64) error {
	return r.execAffected(ctx, `DELETE FROM periodicites WHERE id = ?`, id)
}

func (r *periodiciteRepository) GetByID(ctx context.Context, id int64) (*domain.Periodicite, error) {
	p, err := scanPeriodicite(r.queryRow(ctx,
		`SELECT id, code, libelle, duree_jours, created_at, updated_at FROM periodicites WHERE id = ?`, id))
	if err != nil {
		return nil, r.err(err)
	}
	return p, nil
}

func (r *periodiciteRepository) List(ctx context.Context) ([]*domain.Periodicite, error) {
	rows, err := r.query(ctx, `SELECT id, code, libelle, duree_jours, created_at, updated_at FROM periodicites ORDER BY duree_jours, code`)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows, scanPeriodicite)
	return items, r.err(err)
}

func (r *periodiciteRepository) CountTarifs(ctx context.Context, id int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM abonnement_tarifs WHERE periodicite_id = ?`, id)
}
