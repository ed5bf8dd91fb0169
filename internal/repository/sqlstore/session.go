package sqlstore

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

var _ ports.SessionCaisseRepository = (*sessionRepository)(nil)

type sessionRepository struct {
	base
}

// NewSessionCaisseRepository creates cash session repository / Crée le repository des sessions de caisse
func NewSessionCaisseRepository(conn ports.DBTX, d db.Dialect) ports.SessionCaisseRepository {
	return &sessionRepository{base{db: conn, d: d}}
}

func (r *sessionRepository) WithTx(tx ports.DBTX) ports.SessionCaisseRepository {
	return &sessionRepository{base{db: tx, d: r.d}}
}

const sessionColumns = `id, caissier_id, peage_id, voie, fond_de_caisse, date_ouverture, date_fermeture,
	montant_declare, montant_calcule, ecart, statut, validee_par, created_at, updated_at`

func scanSession(s scanner) (*domain.SessionCaisse, error) {
	sc := &domain.SessionCaisse{}
	err := s.Scan(
		&sc.ID,
		&sc.CaissierID,
		&sc.PeageID,
		&sc.Voie,
		&sc.FondDeCaisse,
		&sc.DateOuverture,
		&sc.DateFermeture,
		&sc.MontantDeclare,
		&sc.MontantCalcule,
		&sc.Ecart,
		&sc.Statut,
		&sc.ValideePar,
		&sc.CreatedAt,
		&sc.UpdatedAt,
	)
	return sc, err
}

func (r *sessionRepository) Create(ctx context.Context, s *domain.SessionCaisse) error {
	s.Touch(time.Now().UTC())
	id, err := r.insert(ctx,
		`INSERT INTO sessions_caisse (caissier_id, peage_id, voie, fond_de_caisse, date_ouverture,
		 montant_declare, montant_calcule, ecart, statut, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.CaissierID, s.PeageID, s.Voie, s.FondDeCaisse, s.DateOuverture.UTC(),
		s.MontantDeclare, s.MontantCalcule, s.Ecart, s.Statut, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

func (r *sessionRepository) Update(ctx context.Context, s *domain.SessionCaisse) error {
	s.UpdatedAt = time.Now().UTC()
	var fermeture *time.Time
	if s.DateFermeture != nil {
		t := s.DateFermeture.UTC()
		fermeture = &t
	}
	return r.execAffected(ctx,
		`UPDATE sessions_caisse SET date_fermeture = ?, montant_declare = ?, montant_calcule = ?, ecart = ?,
		 statut = ?, validee_par = ?, updated_at = ? WHERE id = ?`,
		fermeture, s.MontantDeclare, s.MontantCalcule, s.Ecart, s.Statut, s.ValideePar, s.UpdatedAt, s.ID,
	)
}

func (r *sessionRepository) GetByID(ctx context.Context, id int64) (*domain.SessionCaisse, error) {
	s, err := scanSession(r.queryRow(ctx, `SELECT `+sessionColumns+` FROM sessions_caisse WHERE id = ?`, id))
	if err != nil {
		return nil, r.err(err)
	}
	return s, nil
}

func (r *sessionRepository) List(ctx context.Context, filter domain.SessionFilter, offset, limit int) ([]*domain.SessionCaisse, int, error) {
	var w where
	if filter.Statut != "" {
		w.add("statut = ?", filter.Statut)
	}
	if filter.PeageID > 0 {
		w.add("peage_id = ?", filter.PeageID)
	}
	if filter.CaissierID > 0 {
		w.add("caissier_id = ?", filter.CaissierID)
	}

	total, err := r.count(ctx, `SELECT COUNT(*) FROM sessions_caisse`+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	args := append(w.args, limit, offset)
	rows, err := r.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions_caisse`+w.String()+` ORDER BY date_ouverture DESC, id DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanSession)
	if err != nil {
		return nil, 0, r.err(err)
	}
	return items, total, nil
}

func (r *sessionRepository) FindOpenByCaissier(ctx context.Context, caissierID int64) (*domain.SessionCaisse, error) {
	s, err := scanSession(r.queryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions_caisse WHERE caissier_id = ? AND statut = ?`,
		caissierID, domain.SessionOuverte,
	))
	if err != nil {
		return nil, r.err(err)
	}
	return s, nil
}

func (r *sessionRepository) FindOpenByVoie(ctx context.Context, peageID int64, voie int) (*domain.SessionCaisse, error) {
	s, err := scanSession(r.queryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions_caisse WHERE peage_id = ? AND voie = ? AND statut = ?`,
		peageID, voie, domain.SessionOuverte,
	))
	if err != nil {
		return nil, r.err(err)
	}
	return s, nil
}

const ticketColumns = `t.id, t.session_id, t.numero, t.categorie_vehicule, t.montant, t.mode_paiement, t.abonnement_id, t.created_at`

func scanTicket(s scanner) (*domain.Ticket, error) {
	t := &domain.Ticket{}
	err := s.Scan(&t.ID, &t.SessionID, &t.Numero, &t.CategorieVehicule, &t.Montant, &t.ModePaiement, &t.AbonnementID, &t.CreatedAt)
	return t, err
}

func (r *sessionRepository) AddTicket(ctx context.Context, t *domain.Ticket) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx,
		`INSERT INTO tickets (session_id, numero, categorie_vehicule, montant, mode_paiement, abonnement_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.Numero, t.CategorieVehicule, t.Montant, t.ModePaiement, t.AbonnementID, t.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (r *sessionRepository) Tickets(ctx context.Context, sessionID int64) ([]*domain.Ticket, error) {
	rows, err := r.query(ctx, `SELECT `+ticketColumns+` FROM tickets t WHERE t.session_id = ? ORDER BY t.id`, sessionID)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows, scanTicket)
	return items, r.err(err)
}

func (r *sessionRepository) TicketsSince(ctx context.Context, since time.Time) ([]ports.TicketPeage, error) {
	rows, err := r.query(ctx,
		`SELECT p.id, p.libelle, `+ticketColumns+`
		 FROM tickets t
		 JOIN sessions_caisse s ON s.id = t.session_id
		 JOIN peages p ON p.id = s.peage_id
		 WHERE t.created_at >= ?
		 ORDER BY p.id, t.id`,
		since.UTC(),
	)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows, func(s scanner) (ports.TicketPeage, error) {
		var tp ports.TicketPeage
		t := &tp.Ticket
		err := s.Scan(&tp.PeageID, &tp.PeageLibelle,
			&t.ID, &t.SessionID, &t.Numero, &t.CategorieVehicule, &t.Montant, &t.ModePaiement, &t.AbonnementID, &t.CreatedAt)
		return tp, err
	})
	return items, r.err(err)
}
