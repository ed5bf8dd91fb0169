package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/export"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
	"github.com/open-tech-stack/mitic-web-sub002/internal/validation"
	"github.com/shopspring/decimal"
)

// Session metric events / Événements de métriques de session
const (
	sessionOuverte = "ouverte"
	sessionFermee  = "fermee"
	sessionValidee = "validee"
)

// SessionCaisseService runs cash desk shifts / Gère les vacations de caisse
type SessionCaisseService struct {
	repo        ports.SessionCaisseRepository
	peages      ports.PeageRepository
	abonnements *AbonnementService
	schemas     *SchemaService
	db          ports.TxBeginner
	events      ports.EventPublisher
	metrics     DomainMetricsRecorder
	now         func() time.Time
}

// NewSessionCaisseService creates cash session service / Crée le service des sessions de caisse
func NewSessionCaisseService(
	repo ports.SessionCaisseRepository,
	peages ports.PeageRepository,
	abonnements *AbonnementService,
	schemas *SchemaService,
	db ports.TxBeginner,
	events ports.EventPublisher,
	metrics DomainMetricsRecorder,
) *SessionCaisseService {
	return &SessionCaisseService{
		repo:        repo,
		peages:      peages,
		abonnements: abonnements,
		schemas:     schemas,
		db:          db,
		events:      publisherOrNoop(events),
		metrics:     metricsOrNoop(metrics),
		now:         time.Now,
	}
}

// Ouverture is a session opening request / Demande d'ouverture de session
type Ouverture struct {
	PeageID      int64           `json:"peageId"`
	Voie         int             `json:"voie"`
	FondDeCaisse decimal.Decimal `json:"fondDeCaisse"`
}

// Vente is a ticket sale request / Demande de vente de ticket
type Vente struct {
	CategorieVehicule string          `json:"categorieVehicule"`
	Montant           decimal.Decimal `json:"montant"`
	ModePaiement      string          `json:"modePaiement"`
	AbonnementID      *int64          `json:"abonnementId,omitempty"`
}

// SessionDetail is a session with its totals / Session avec ses totaux
type SessionDetail struct {
	*domain.SessionCaisse
	Totals domain.SessionTotals `json:"totaux"`
}

// Ouvrir opens a shift for the cashier on one lane / Ouvre une vacation du caissier sur une voie
func (s *SessionCaisseService) Ouvrir(ctx context.Context, caissierID int64, req Ouverture) (*domain.SessionCaisse, error) {
	var errs validation.Errors
	errs.NotNegative("fond de caisse", req.FondDeCaisse)

	peage, err := s.peages.GetByID(ctx, req.PeageID)
	if err != nil {
		return nil, ensureExists(err, "Le péage n'existe pas")
	}
	if !peage.Actif {
		errs.Add("Le péage " + peage.Code + " est inactif")
	}
	if !peage.HasVoie(req.Voie) {
		errs.Addf("La voie doit être comprise entre 1 et %d", peage.NombreVoies)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	sess := &domain.SessionCaisse{
		CaissierID:     caissierID,
		PeageID:        peage.ID,
		Voie:           req.Voie,
		FondDeCaisse:   req.FondDeCaisse,
		DateOuverture:  s.now().UTC(),
		MontantDeclare: decimal.Zero,
		MontantCalcule: decimal.Zero,
		Ecart:          decimal.Zero,
		Statut:         domain.SessionOuverte,
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindOpenByCaissier(ctx, caissierID); err == nil {
			return apperr.Conflict("Vous avez déjà une session de caisse ouverte")
		} else if !errors.Is(err, db.ErrNoRecord) {
			return err
		}
		if _, err := repo.FindOpenByVoie(ctx, peage.ID, req.Voie); err == nil {
			return apperr.Conflict(fmt.Sprintf("La voie %d du péage %s est déjà occupée", req.Voie, peage.Code))
		} else if !errors.Is(err, db.ErrNoRecord) {
			return err
		}
		return repo.Create(ctx, sess)
	})
	if err != nil {
		return nil, storeErr(err, labelSession)
	}

	s.metrics.RecordSessionEvent(sessionOuverte)
	s.events.Publish(ctx, domain.NewEvent(resourceSession, domain.ActionCreated, sess.ID))
	return sess, nil
}

// Vendre records a ticket on the caller's open session / Enregistre un ticket sur la session ouverte de l'appelant
func (s *SessionCaisseService) Vendre(ctx context.Context, sessionID, caissierID int64, req Vente) (*domain.Ticket, error) {
	t := &domain.Ticket{
		SessionID:         sessionID,
		CategorieVehicule: strings.ToUpper(strings.TrimSpace(req.CategorieVehicule)),
		Montant:           req.Montant,
		ModePaiement:      req.ModePaiement,
		AbonnementID:      req.AbonnementID,
	}
	if t.ModePaiement == domain.PaiementAbonnement {
		t.Montant = decimal.Zero
	} else {
		t.AbonnementID = nil
	}
	if err := t.Validate().Err(); err != nil {
		return nil, err
	}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		sess, err := s.owned(ctx, repo, sessionID, caissierID)
		if err != nil {
			return err
		}
		if !sess.IsOpen() {
			return apperr.Invalid("La session de caisse n'est pas ouverte")
		}
		if t.ModePaiement == domain.PaiementAbonnement {
			if _, err := s.abonnements.consommer(ctx, tx, *t.AbonnementID, sess.PeageID); err != nil {
				return err
			}
		}
		t.CreatedAt = s.now().UTC()
		t.Numero = numeroTicket(sess, t.CreatedAt)
		return repo.AddTicket(ctx, t)
	})
	if err != nil {
		if errors.Is(err, db.ErrNoRecord) && t.AbonnementID != nil {
			return nil, apperr.Invalid("L'abonnement n'existe pas")
		}
		return nil, storeErr(err, labelSession)
	}

	s.metrics.RecordTicketSold(t.ModePaiement)
	if t.AbonnementID != nil {
		s.events.Publish(ctx, domain.NewEvent(resourceAbonnement, domain.ActionUpdated, *t.AbonnementID))
	}
	s.events.Publish(ctx, domain.NewEvent(resourceSession, domain.ActionUpdated, sessionID))
	return t, nil
}

// Fermer closes the caller's session and computes the cash gap / Clôture la session et calcule l'écart
func (s *SessionCaisseService) Fermer(ctx context.Context, sessionID, caissierID int64, montantDeclare decimal.Decimal) (*SessionDetail, error) {
	if montantDeclare.IsNegative() {
		return nil, apperr.Invalid("Le montant déclaré ne peut pas être négatif")
	}

	var detail *SessionDetail
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		sess, err := s.owned(ctx, repo, sessionID, caissierID)
		if err != nil {
			return err
		}
		if !sess.IsOpen() {
			return apperr.Invalid("La session de caisse est déjà fermée")
		}
		tickets, err := repo.Tickets(ctx, sess.ID)
		if err != nil {
			return err
		}
		totals := domain.Totals(tickets)
		sess.Close(montantDeclare, totals, s.now().UTC())
		if err := repo.Update(ctx, sess); err != nil {
			return err
		}
		detail = &SessionDetail{SessionCaisse: sess, Totals: totals}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, labelSession)
	}

	s.metrics.RecordSessionEvent(sessionFermee)
	s.events.Publish(ctx, domain.NewEvent(resourceSession, domain.ActionUpdated, sessionID))
	return detail, nil
}

// Valider approves a closed session and books the ticket sales entry
// Valider approuve une session fermée et comptabilise l'écriture des ventes
func (s *SessionCaisseService) Valider(ctx context.Context, sessionID, validatorID int64) (*SessionDetail, error) {
	var (
		detail   *SessionDetail
		ecriture *domain.Ecriture
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		sess, err := repo.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Statut != domain.SessionFermee {
			return apperr.Invalid("Seule une session fermée peut être validée")
		}
		tickets, err := repo.Tickets(ctx, sess.ID)
		if err != nil {
			return err
		}
		totals := domain.Totals(tickets)

		vars := map[string]decimal.Decimal{
			"montant_total":   totals.MontantTotal,
			"montant_especes": totals.MontantEspeces,
			"montant_mobile":  totals.MontantMobile,
			"ecart":           sess.Ecart,
			"fond_caisse":     sess.FondDeCaisse,
		}
		ecriture, err = s.schemas.GenererTx(ctx, tx, domain.OperationVenteTickets, referenceSession(sess), vars, s.now().UTC())
		if err != nil {
			return err
		}

		sess.Statut = domain.SessionValidee
		sess.ValideePar = &validatorID
		if err := repo.Update(ctx, sess); err != nil {
			return err
		}
		detail = &SessionDetail{SessionCaisse: sess, Totals: totals}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, labelSession)
	}

	s.schemas.publishEcriture(ctx, ecriture)
	s.metrics.RecordSessionEvent(sessionValidee)
	s.events.Publish(ctx, domain.NewEvent(resourceSession, domain.ActionUpdated, sessionID))
	return detail, nil
}

// owned loads a session and checks the caller runs it / Charge une session et vérifie que l'appelant la tient
func (s *SessionCaisseService) owned(ctx context.Context, repo ports.SessionCaisseRepository, sessionID, caissierID int64) (*domain.SessionCaisse, error) {
	sess, err := repo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, db.ErrNoRecord) {
			return nil, apperr.NotFound(labelSession)
		}
		return nil, err
	}
	if sess.CaissierID != caissierID {
		return nil, apperr.Forbidden("Cette session de caisse appartient à un autre caissier")
	}
	return sess, nil
}

// Get returns a session with its totals / Retourne une session avec ses totaux
func (s *SessionCaisseService) Get(ctx context.Context, id int64) (*SessionDetail, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelSession)
	}
	tickets, err := s.repo.Tickets(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelSession)
	}
	return &SessionDetail{SessionCaisse: sess, Totals: domain.Totals(tickets)}, nil
}

func (s *SessionCaisseService) List(ctx context.Context, filter domain.SessionFilter, page Page) ([]*domain.SessionCaisse, int, error) {
	items, total, err := s.repo.List(ctx, filter, page.Offset(), page.Size())
	if err != nil {
		return nil, 0, storeErr(err, labelSession)
	}
	return items, total, nil
}

// Current returns the caller's open session / Retourne la session ouverte de l'appelant
func (s *SessionCaisseService) Current(ctx context.Context, caissierID int64) (*domain.SessionCaisse, error) {
	sess, err := s.repo.FindOpenByCaissier(ctx, caissierID)
	if err != nil {
		return nil, storeErr(err, labelSession)
	}
	return sess, nil
}

func (s *SessionCaisseService) Tickets(ctx context.Context, id int64) ([]*domain.Ticket, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, storeErr(err, labelSession)
	}
	tickets, err := s.repo.Tickets(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelSession)
	}
	return tickets, nil
}

// ExportXLSX writes the session report workbook / Écrit le classeur de rapport de session
func (s *SessionCaisseService) ExportXLSX(ctx context.Context, id int64, w io.Writer) error {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, labelSession)
	}
	tickets, err := s.repo.Tickets(ctx, id)
	if err != nil {
		return storeErr(err, labelSession)
	}
	peage, err := s.peages.GetByID(ctx, sess.PeageID)
	if err != nil {
		return storeErr(err, labelPeage)
	}
	return export.WriteXLSX(w, export.SessionSheets(sess, peage.Code+" - "+peage.Libelle, domain.Totals(tickets), tickets)...)
}

// numeroTicket builds a unique ticket number / Construit un numéro de ticket unique
func numeroTicket(sess *domain.SessionCaisse, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("T%d-%s-%s", sess.PeageID, at.Format("060102"), suffix)
}

func referenceSession(sess *domain.SessionCaisse) string {
	return fmt.Sprintf("SESSION-%d", sess.ID)
}
