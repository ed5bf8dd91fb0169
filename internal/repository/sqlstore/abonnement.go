package sqlstore

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

var (
	_ ports.AbonneRepository     = (*abonneRepository)(nil)
	_ ports.TarifRepository      = (*tarifRepository)(nil)
	_ ports.AbonnementRepository = (*abonnementRepository)(nil)
)

type abonneRepository struct {
	base
}

// NewAbonneRepository creates subscriber repository / Crée le repository des abonnés
func NewAbonneRepository(conn ports.DBTX, d db.Dialect) ports.AbonneRepository {
	return &abonneRepository{base{db: conn, d: d}}
}

const abonneColumns = `id, nom, prenom, cnib, telephone, email, immatriculation, created_at, updated_at`

func scanAbonne(s scanner) (*domain.Abonne, error) {
	a := &domain.Abonne{}
	err := s.Scan(&a.ID, &a.Nom, &a.Prenom, &a.CNIB, &a.Telephone, &a.Email, &a.Immatriculation, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *abonneRepository) Create(ctx context.Context, a *domain.Abonne) error {
	a.Touch(time.Now().UTC())
	id, err := r.insert(ctx,
		`INSERT INTO abonnes (nom, prenom, cnib, telephone, email, immatriculation, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Nom, a.Prenom, a.CNIB, a.Telephone, a.Email, a.Immatriculation, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func (r *abonneRepository) Update(ctx context.Context, a *domain.Abonne) error {
	a.UpdatedAt = time.Now().UTC()
	return r.execAffected(ctx,
		`UPDATE abonnes SET nom = ?, prenom = ?, cnib = ?, telephone = ?, email = ?, immatriculation = ?, updated_at = ? WHERE id = ?`,
		a.Nom, a.Prenom, a.CNIB, a.Telephone, a.Email, a.Immatriculation, a.UpdatedAt, a.ID,
	)
}

func (r *abonneRepository) Delete(ctx context.Context, id int64) error {
	return r.execAffected(ctx, `DELETE FROM abonnes WHERE id = ?`, id)
}

func (r *abonneRepository) GetByID(ctx context.Context, id int64) (*domain.Abonne, error) {
	a, err := scanAbonne(r.queryRow(ctx, `SELECT `+abonneColumns+` FROM abonnes WHERE id = ?`, id))
	if err != nil {
		return nil, r.err(err)
	}
	return a, nil
}

func (r *abonneRepository) List(ctx context.Context, query string, offset, limit int) ([]*domain.Abonne, int, error) {
	var w where
	if query != "" {
		q := like(query)
		w.add("(LOWER(nom) LIKE ? OR LOWER(prenom) LIKE ? OR LOWER(cnib) LIKE ? OR telephone LIKE ? OR LOWER(immatriculation) LIKE ?)", q, q, q, q, q)
	}

	total, err := r.count(ctx, `SELECT COUNT(*) FROM abonnes`+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	args := append(w.args, limit, offset)
	rows, err := r.query(ctx, `SELECT `+abonneColumns+` FROM abonnes`+w.String()+` ORDER BY nom, prenom, id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanAbonne)
	if err != nil {
		return nil, 0, r.err(err)
	}
	return items, total, nil
}

type tarifRepository struct {
	base
}

// NewTarifRepository creates tariff repository / Crée le repository des tarifs
func NewTarifRepository(conn ports.DBTX, d db.Dialect) ports.TarifRepository {
	return &tarifRepository{base{db: conn, d: d}}
}

const tarifColumns = `id, libelle, peage_id, periodicite_id, categorie_vehicule, montant, nombre_passages, actif, created_at, updated_at`

func scanTarif(s scanner) (*domain.AbonnementTarif, error) {
	t := &domain.AbonnementTarif{}
	err := s.Scan(&t.ID, &t.Libelle, &t.PeageID, &t.PeriodiciteID, &t.CategorieVehicule, &t.Montant, &t.NombrePassages, &t.Actif, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *tarifRepository) Create(ctx context.Context, t *domain.AbonnementTarif) error {
	t.Touch(time.Now().UTC())
	id, err := r.insert(ctx,
		`INSERT INTO abonnement_tarifs (libelle, peage_id, periodicite_id, categorie_vehicule, montant, nombre_passages, actif, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Libelle, t.PeageID, t.PeriodiciteID, t.CategorieVehicule, t.Montant, t.NombrePassages, t.Actif, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (r *tarifRepository) Update(ctx context.Context, t *domain.AbonnementTarif) error {
	t.UpdatedAt = time.Now().UTC()
	return r.execAffected(ctx,
		`UPDATE abonnement_tarifs SET libelle = ?, peage_id = ?, periodicite_id = ?, categorie_vehicule = ?, montant = ?,
		 nombre_passages = ?, actif = ?, updated_at = ? WHERE id = ?`,
		t.Libelle, t.PeageID, t.PeriodiciteID, t.CategorieVehicule, t.Montant, t.NombrePassages, t.Actif, t.UpdatedAt, t.ID,
	)
}

func (r *tarifRepository) Delete(ctx context.Context, id int64) error {
	return r.execAffected(ctx, `DELETE FROM abonnement_tarifs WHERE id = ?`, id)
}

func (r *tarifRepository) GetByID(ctx context.Context, id int64) (*domain.AbonnementTarif, error) {
	t, err := scanTarif(r.queryRow(ctx, `SELECT `+tarifColumns+` FROM abonnement_tarifs WHERE id = ?`, id))
	if err != nil {
		return nil, r.err(err)
	}
	return t, nil
}

func (r *tarifRepository) List(ctx context.Context, peageID int64) ([]*domain.AbonnementTarif, error) {
	var w where
	if peageID > 0 {
		w.add("peage_id = ?", peageID)
	}
	rows, err := r.query(ctx, `SELECT `+tarifColumns+` FROM abonnement_tarifs`+w.String()+` ORDER BY peage_id, libelle`, w.args...)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows, scanTarif)
	return items, r.err(err)
}

type abonnementRepository struct {
	base
}

// NewAbonnementRepository creates subscription repository / Crée le repository des abonnements
func NewAbonnementRepository(conn ports.DBTX, d db.Dialect) ports.AbonnementRepository {
	return &abonnementRepository{base{db: conn, d: d}}
}

func (r *abonnementRepository) WithTx(tx ports.DBTX) ports.AbonnementRepository {
	return &abonnementRepository{base{db: tx, d: r.d}}
}

const abonnementColumns = `id, numero, abonne_id, tarif_id, date_debut, date_fin, montant, passages_restants, statut, created_at, updated_at`

func scanAbonnement(s scanner) (*domain.Abonnement, error) {
	a := &domain.Abonnement{}
	err := s.Scan(&a.ID, &a.Numero, &a.AbonneID, &a.TarifID, &a.DateDebut, &a.DateFin, &a.Montant, &a.PassagesRestants, &a.Statut, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *abonnementRepository) Create(ctx context.Context, a *domain.Abonnement) error {
	a.Touch(time.Now().UTC())
	id, err := r.insert(ctx,
		`INSERT INTO abonnements (numero, abonne_id, tarif_id, date_debut, date_fin, montant, passages_restants, statut, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Numero, a.AbonneID, a.TarifID, a.DateDebut.UTC(), a.DateFin.UTC(), a.Montant, a.PassagesRestants, a.Statut, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func (r *abonnementRepository) SetStatut(ctx context.Context, id int64, from, to string) (bool, error) {
	res, err := r.exec(ctx,
		`UPDATE abonnements SET statut = ?, updated_at = ? WHERE id = ? AND statut = ?`,
		to, time.Now().UTC(), id, from,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, r.err(err)
}

// Renew leaves passages consumed since the read untouched when extending a quota
func (r *abonnementRepository) Renew(ctx context.Context, id int64, statut string, dateFin time.Time, p domain.Renouvellement) (bool, error) {
	passages, arg := `passages_restants = ?`, any(p.Passages)
	if p.AjoutPassages > 0 {
		passages, arg = `passages_restants = passages_restants + ?`, p.AjoutPassages
	}
	res, err := r.exec(ctx,
		`UPDATE abonnements SET date_debut = ?, date_fin = ?, montant = ?, `+passages+`, statut = ?, updated_at = ?
		 WHERE id = ? AND statut = ? AND date_fin = ?`,
		p.DateDebut.UTC(), p.DateFin.UTC(), p.Montant, arg, domain.AbonnementActif, time.Now().UTC(),
		id, statut, dateFin.UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, r.err(err)
}

func (r *abonnementRepository) GetByID(ctx context.Context, id int64) (*domain.Abonnement, error) {
	a, err := scanAbonnement(r.queryRow(ctx, `SELECT `+abonnementColumns+` FROM abonnements WHERE id = ?`, id))
	if err != nil {
		return nil, r.err(err)
	}
	return a, nil
}

func (r *abonnementRepository) List(ctx context.Context, filter domain.AbonnementFilter, offset, limit int) ([]*domain.Abonnement, int, error) {
	var w where
	if filter.Statut != "" {
		w.add("statut = ?", filter.Statut)
	}
	if filter.AbonneID > 0 {
		w.add("abonne_id = ?", filter.AbonneID)
	}
	if filter.ExpireAvant != nil {
		w.add("date_fin < ?", filter.ExpireAvant.UTC())
	}

	total, err := r.count(ctx, `SELECT COUNT(*) FROM abonnements`+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	args := append(w.args, limit, offset)
	rows, err := r.query(ctx, `SELECT `+abonnementColumns+` FROM abonnements`+w.String()+` ORDER BY date_fin, id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanAbonnement)
	if err != nil {
		return nil, 0, r.err(err)
	}
	return items, total, nil
}

// DecrementPassage consumes one passage atomically / Consomme un passage de façon atomique
func (r *abonnementRepository) DecrementPassage(ctx context.Context, id int64) (bool, error) {
	res, err := r.exec(ctx,
		`UPDATE abonnements SET passages_restants = passages_restants - 1, updated_at = ?
		 WHERE id = ? AND passages_restants IS NOT NULL AND passages_restants > 0`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, r.err(err)
}

func (r *abonnementRepository) ExpireBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.exec(ctx,
		`UPDATE abonnements SET statut = ?, updated_at = ? WHERE statut IN (?, ?) AND date_fin <= ?`,
		domain.AbonnementExpire, time.Now().UTC(), domain.AbonnementActif, domain.AbonnementSuspendu, t.UTC(),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return n, r.err(err)
}

func (r *abonnementRepository) CountByStatut(ctx context.Context, statut string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM abonnements WHERE statut = ?`, statut)
}

func (r *abonnementRepository) CountExpiringBetween(ctx context.Context, from, to time.Time) (int, error) {
	return r.count(ctx,
		`SELECT COUNT(*) FROM abonnements WHERE statut = ? AND date_fin >= ? AND date_fin < ?`,
		domain.AbonnementActif, from.UTC(), to.UTC(),
	)
}
