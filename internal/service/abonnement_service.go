package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
	"github.com/shopspring/decimal"
)

// Subscription metric events / Événements de métriques d'abonnement
const (
	abonnementSouscrit  = "souscrit"
	abonnementRenouvele = "renouvele"
	abonnementSuspendu  = "suspendu"
	abonnementReactive  = "reactive"
	abonnementResilie   = "resilie"
	abonnementExpire    = "expire"
	abonnementPassage   = "passage"
)

// errAbonnementModifie reports a subscription changed between read and write
var errAbonnementModifie = apperr.Conflict("L'abonnement a été modifié entre-temps, veuillez réessayer")

// AbonnementService runs the subscription lifecycle / Gère le cycle de vie des abonnements
type AbonnementService struct {
	repo         ports.AbonnementRepository
	abonnes      ports.AbonneRepository
	tarifs       ports.TarifRepository
	periodicites ports.PeriodiciteRepository
	schemas      *SchemaService
	db           ports.TxBeginner
	events       ports.EventPublisher
	metrics      DomainMetricsRecorder
	now          func() time.Time
}

// NewAbonnementService creates subscription service / Crée le service des abonnements
func NewAbonnementService(
	repo ports.AbonnementRepository,
	abonnes ports.AbonneRepository,
	tarifs ports.TarifRepository,
	periodicites ports.PeriodiciteRepository,
	schemas *SchemaService,
	db ports.TxBeginner,
	events ports.EventPublisher,
	metrics DomainMetricsRecorder,
) *AbonnementService {
	return &AbonnementService{
		repo:         repo,
		abonnes:      abonnes,
		tarifs:       tarifs,
		periodicites: periodicites,
		schemas:      schemas,
		db:           db,
		events:       publisherOrNoop(events),
		metrics:      metricsOrNoop(metrics),
		now:          time.Now,
	}
}

// Souscription is a subscription request / Demande de souscription
type Souscription struct {
	AbonneID  int64     `json:"abonneId"`
	TarifID   int64     `json:"tarifId"`
	DateDebut time.Time `json:"dateDebut"`
}

func (s *AbonnementService) List(ctx context.Context, filter domain.AbonnementFilter, page Page) ([]*domain.Abonnement, int, error) {
	items, total, err := s.repo.List(ctx, filter, page.Offset(), page.Size())
	if err != nil {
		return nil, 0, storeErr(err, labelAbonnement)
	}
	return items, total, nil
}

func (s *AbonnementService) Get(ctx context.Context, id int64) (*domain.Abonnement, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelAbonnement)
	}
	return a, nil
}

// Souscrire subscribes an abonné to an active tariff and records the accounting entry
// Souscrire abonne un abonné à un tarif actif et enregistre l'écriture comptable
func (s *AbonnementService) Souscrire(ctx context.Context, req Souscription) (*domain.Abonnement, error) {
	if req.AbonneID <= 0 || req.TarifID <= 0 {
		return nil, apperr.Invalid("L'abonné et le tarif sont obligatoires")
	}
	if _, err := s.abonnes.GetByID(ctx, req.AbonneID); err != nil {
		return nil, ensureExists(err, "L'abonné n'existe pas")
	}
	tarif, periode, err := s.offre(ctx, req.TarifID)
	if err != nil {
		return nil, err
	}
	if !tarif.Actif {
		return nil, apperr.Invalid("Ce tarif n'est plus proposé")
	}

	now := s.now()
	debut := req.DateDebut
	if debut.IsZero() {
		debut = now
	}
	start, end := domain.Period(debut, periode.DureeJours)
	if !end.After(now) {
		return nil, apperr.Invalid("La période demandée est déjà échue")
	}

	a := &domain.Abonnement{
		Numero:           numeroAbonnement(now),
		AbonneID:         req.AbonneID,
		TarifID:          tarif.ID,
		DateDebut:        start,
		DateFin:          end,
		Montant:          tarif.Montant,
		PassagesRestants: passages(tarif.NombrePassages),
		Statut:           domain.AbonnementActif,
	}

	var ecriture *domain.Ecriture
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.repo.WithTx(tx).Create(ctx, a); err != nil {
			return err
		}
		ecriture, err = s.comptabiliser(ctx, tx, a.Numero, a.Montant, now)
		return err
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, apperr.Conflict("Numéro d'abonnement déjà utilisé, veuillez réessayer")
		}
		return nil, storeErr(err, labelAbonnement)
	}

	s.schemas.publishEcriture(ctx, ecriture)
	s.metrics.RecordAbonnementEvent(abonnementSouscrit, 1)
	s.events.Publish(ctx, domain.NewEvent(resourceAbonnement, domain.ActionCreated, a.ID))
	return a, nil
}

// Renouveler adds one period from max(date de fin, today) / Ajoute une période depuis max(date de fin, aujourd'hui)
func (s *AbonnementService) Renouveler(ctx context.Context, id int64) (*domain.Abonnement, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelAbonnement)
	}
	if !a.CanRenew() {
		return nil, apperr.Invalid("Un abonnement " + strings.ToLower(a.Statut) + " ne peut pas être renouvelé")
	}
	tarif, periode, err := s.offre(ctx, a.TarifID)
	if err != nil {
		return nil, err
	}
	if !tarif.Actif {
		return nil, apperr.Invalid("Ce tarif n'est plus proposé")
	}

	now := s.now()
	from := a.DateFin
	if today, _ := domain.Period(now, 0); today.After(from) {
		from = today
	}
	start, end := domain.Period(from, periode.DureeJours)

	// A lapsed subscription starts a fresh period, a running one is extended
	p := domain.Renouvellement{DateDebut: a.DateDebut, DateFin: end, Montant: tarif.Montant}
	switch {
	case a.Statut == domain.AbonnementExpire || !a.DateFin.After(now):
		p.DateDebut = start
		p.Passages = passages(tarif.NombrePassages)
	case a.PassagesRestants != nil && tarif.NombrePassages > 0:
		p.AjoutPassages = tarif.NombrePassages
	default:
		p.Passages = passages(tarif.NombrePassages)
	}

	var ecriture *domain.Ecriture
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.Renew(ctx, a.ID, a.Statut, a.DateFin, p)
		if err != nil {
			return err
		}
		if !ok {
			return errAbonnementModifie
		}
		if a, err = repo.GetByID(ctx, a.ID); err != nil {
			return err
		}
		ecriture, err = s.comptabiliser(ctx, tx, a.Numero+"/"+start.Format("20060102"), a.Montant, now)
		return err
	})
	if err != nil {
		return nil, storeErr(err, labelAbonnement)
	}

	s.schemas.publishEcriture(ctx, ecriture)
	s.metrics.RecordAbonnementEvent(abonnementRenouvele, 1)
	s.events.Publish(ctx, domain.NewEvent(resourceAbonnement, domain.ActionUpdated, a.ID))
	return a, nil
}

// comptabiliser records the ABONNEMENT entry when a schema is active
// comptabiliser enregistre l'écriture ABONNEMENT quand un schéma est actif
func (s *AbonnementService) comptabiliser(ctx context.Context, tx *sql.Tx, reference string, montant decimal.Decimal, at time.Time) (*domain.Ecriture, error) {
	vars := map[string]decimal.Decimal{"montant": montant}
	e, err := s.schemas.GenererTx(ctx, tx, domain.OperationAbonnement, reference, vars, at)
	if errors.Is(err, ErrNoActiveSchema) {
		slog.Warn("no active schema, subscription recorded without accounting entry", "reference", reference)
		return nil, nil
	}
	return e, err
}

func (s *AbonnementService) Suspendre(ctx context.Context, id int64) (*domain.Abonnement, error) {
	return s.transition(ctx, id, domain.AbonnementSuspendu, abonnementSuspendu)
}

// Reactiver resumes a suspended subscription still within its period
// Reactiver reprend un abonnement suspendu encore dans sa période
func (s *AbonnementService) Reactiver(ctx context.Context, id int64) (*domain.Abonnement, error) {
	return s.transition(ctx, id, domain.AbonnementActif, abonnementReactive)
}

func (s *AbonnementService) Resilier(ctx context.Context, id int64) (*domain.Abonnement, error) {
	return s.transition(ctx, id, domain.AbonnementResilie, abonnementResilie)
}

func (s *AbonnementService) transition(ctx context.Context, id int64, to, event string) (*domain.Abonnement, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelAbonnement)
	}
	if !a.CanTransition(to) {
		return nil, apperr.Invalid(fmt.Sprintf("Transition impossible de %s vers %s", a.Statut, to))
	}
	if to == domain.AbonnementActif && !a.DateFin.After(s.now()) {
		return nil, apperr.Invalid("La période de cet abonnement est échue, renouvelez-le")
	}

	// only the status is written, passages and expiry recorded meanwhile are kept
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.SetStatut(ctx, a.ID, a.Statut, to)
		if err != nil {
			return err
		}
		if !ok {
			return errAbonnementModifie
		}
		a, err = repo.GetByID(ctx, a.ID)
		return err
	})
	if err != nil {
		return nil, storeErr(err, labelAbonnement)
	}

	s.metrics.RecordAbonnementEvent(event, 1)
	s.events.Publish(ctx, domain.NewEvent(resourceAbonnement, domain.ActionUpdated, a.ID))
	return a, nil
}

// EnregistrerPassage consumes one passage / Consomme un passage
func (s *AbonnementService) EnregistrerPassage(ctx context.Context, id int64) (*domain.Abonnement, error) {
	var a *domain.Abonnement
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		a, err = s.consommer(ctx, tx, id, 0)
		return err
	})
	if err != nil {
		return nil, storeErr(err, labelAbonnement)
	}

	s.metrics.RecordAbonnementEvent(abonnementPassage, 1)
	s.events.Publish(ctx, domain.NewEvent(resourceAbonnement, domain.ActionUpdated, a.ID))
	return a, nil
}

// consommer checks usability and decrements remaining passages inside tx;
// peageID > 0 also requires the tariff to belong to that station
// consommer vérifie l'utilisabilité et décrémente les passages dans tx ;
// peageID > 0 exige aussi que le tarif appartienne à ce péage
func (s *AbonnementService) consommer(ctx context.Context, tx ports.DBTX, id, peageID int64) (*domain.Abonnement, error) {
	repo := s.repo.WithTx(tx)
	a, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case a.Statut != domain.AbonnementActif:
		return nil, apperr.Invalid("L'abonnement " + a.Numero + " n'est pas actif")
	case now.Before(a.DateDebut):
		return nil, apperr.Invalid("L'abonnement " + a.Numero + " n'a pas encore commencé")
	case !now.Before(a.DateFin):
		return nil, apperr.Invalid("L'abonnement " + a.Numero + " est échu")
	case a.PassagesRestants != nil && *a.PassagesRestants <= 0:
		return nil, apperr.Invalid("L'abonnement " + a.Numero + " n'a plus de passages disponibles")
	}

	if peageID > 0 {
		tarif, err := s.tarifs.GetByID(ctx, a.TarifID)
		if err != nil {
			return nil, err
		}
		if tarif.PeageID != peageID {
			return nil, apperr.Invalid("L'abonnement " + a.Numero + " n'est pas valable sur ce péage")
		}
	}

	if a.PassagesRestants != nil {
		ok, err := repo.DecrementPassage(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Invalid("L'abonnement " + a.Numero + " n'a plus de passages disponibles")
		}
		n := *a.PassagesRestants - 1
		a.PassagesRestants = &n
	}
	return a, nil
}

// ExpirerEchus marks active subscriptions whose period ended as EXPIRE
// ExpirerEchus marque EXPIRE les abonnements actifs dont la période est terminée
func (s *AbonnementService) ExpirerEchus(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.ExpireBefore(ctx, now)
	if err != nil {
		return 0, storeErr(err, labelAbonnement)
	}
	if n > 0 {
		slog.Info("subscriptions expired", "count", n)
		s.metrics.RecordAbonnementEvent(abonnementExpire, int(n))
		s.events.Publish(ctx, domain.NewEvent(resourceAbonnement, domain.ActionUpdated, nil))
	}
	return n, nil
}

// offre loads a tariff and its period / Charge un tarif et sa périodicité
func (s *AbonnementService) offre(ctx context.Context, tarifID int64) (*domain.AbonnementTarif, *domain.Periodicite, error) {
	tarif, err := s.tarifs.GetByID(ctx, tarifID)
	if err != nil {
		return nil, nil, ensureExists(err, "Le tarif n'existe pas")
	}
	periode, err := s.periodicites.GetByID(ctx, tarif.PeriodiciteID)
	if err != nil {
		return nil, nil, ensureExists(err, "La périodicité du tarif n'existe pas")
	}
	return tarif, periode, nil
}

// passages returns nil for unlimited offers / Retourne nil pour les offres illimitées
func passages(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// numeroAbonnement builds ABN-YYYYMMDD-XXXXXX / Construit ABN-AAAAMMJJ-XXXXXX
func numeroAbonnement(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "ABN-" + at.Format("20060102") + "-" + suffix
}
