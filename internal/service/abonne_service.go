package service

import (
	"context"
	"errors"
	"strings"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

// AbonneService manages subscribers / Gère les abonnés
type AbonneService struct {
	repo   ports.AbonneRepository
	events ports.EventPublisher
}

// NewAbonneService creates abonné service / Crée le service des abonnés
func NewAbonneService(repo ports.AbonneRepository, events ports.EventPublisher) *AbonneService {
	return &AbonneService{repo: repo, events: publisherOrNoop(events)}
}

// List searches subscribers by name, CNIB or phone / Recherche les abonnés par nom, CNIB ou téléphone
func (s *AbonneService) List(ctx context.Context, query string, page Page) ([]*domain.Abonne, int, error) {
	items, total, err := s.repo.List(ctx, strings.TrimSpace(query), page.Offset(), page.Size())
	if err != nil {
		return nil, 0, storeErr(err, labelAbonne)
	}
	return items, total, nil
}

func (s *AbonneService) Get(ctx context.Context, id int64) (*domain.Abonne, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelAbonne)
	}
	return a, nil
}

func (s *AbonneService) Create(ctx context.Context, a *domain.Abonne) (*domain.Abonne, error) {
	a.ID = 0
	trimAbonne(a)
	if err := a.Validate().Err(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, s.writeErr(err)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceAbonne, domain.ActionCreated, a.ID))
	return a, nil
}

func (s *AbonneService) Update(ctx context.Context, id int64, in *domain.Abonne) (*domain.Abonne, error) {
	in.ID = id
	trimAbonne(in)
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, in); err != nil {
		return nil, s.writeErr(err)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceAbonne, domain.ActionUpdated, in.ID))
	return in, nil
}

func (s *AbonneService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrForeignKeyViolation) {
			return apperr.Conflict("Cet abonné possède des abonnements et ne peut pas être supprimé")
		}
		return storeErr(err, labelAbonne)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceAbonne, domain.ActionDeleted, id))
	return nil
}

func (s *AbonneService) writeErr(err error) error {
	if errors.Is(err, db.ErrDuplicate) {
		return apperr.Conflict("Un abonné existe déjà avec ce numéro CNIB")
	}
	return storeErr(err, labelAbonne)
}

func trimAbonne(a *domain.Abonne) {
	a.Nom = strings.TrimSpace(a.Nom)
	a.Prenom = strings.TrimSpace(a.Prenom)
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
}

// TarifService manages subscription offers / Gère les offres d'abonnement
type TarifService struct {
	repo         ports.TarifRepository
	peages       ports.PeageRepository
	periodicites ports.PeriodiciteRepository
	events       ports.EventPublisher
}

// NewTarifService creates tarif service / Crée le service des tarifs
func NewTarifService(repo ports.TarifRepository, peages ports.PeageRepository, periodicites ports.PeriodiciteRepository, events ports.EventPublisher) *TarifService {
	return &TarifService{repo: repo, peages: peages, periodicites: periodicites, events: publisherOrNoop(events)}
}

// List returns offers, optionally of one péage / Retourne les offres, éventuellement d'un péage
func (s *TarifService) List(ctx context.Context, peageID int64) ([]*domain.AbonnementTarif, error) {
	items, err := s.repo.List(ctx, peageID)
	if err != nil {
		return nil, storeErr(err, labelTarif)
	}
	return items, nil
}

func (s *TarifService) Get(ctx context.Context, id int64) (*domain.AbonnementTarif, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelTarif)
	}
	return t, nil
}

func (s *TarifService) Create(ctx context.Context, t *domain.AbonnementTarif) (*domain.AbonnementTarif, error) {
	t.ID = 0
	if err := s.check(ctx, t); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, storeErr(err, labelTarif)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceTarif, domain.ActionCreated, t.ID))
	return t, nil
}

func (s *TarifService) Update(ctx context.Context, id int64, in *domain.AbonnementTarif) (*domain.AbonnementTarif, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, storeErr(err, labelTarif)
	}
	in.ID = id
	if err := s.check(ctx, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, in); err != nil {
		return nil, storeErr(err, labelTarif)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceTarif, domain.ActionUpdated, in.ID))
	return in, nil
}

func (s *TarifService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrForeignKeyViolation) {
			return apperr.Conflict("Ce tarif est utilisé par des abonnements, désactivez-le plutôt")
		}
		return storeErr(err, labelTarif)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceTarif, domain.ActionDeleted, id))
	return nil
}

// check validates fields and references / Valide les champs et les références
func (s *TarifService) check(ctx context.Context, t *domain.AbonnementTarif) error {
	t.Libelle = strings.TrimSpace(t.Libelle)
	t.CategorieVehicule = strings.ToUpper(strings.TrimSpace(t.CategorieVehicule))
	errs := t.Validate()
	if t.PeageID > 0 {
		if _, err := s.peages.GetByID(ctx, t.PeageID); err != nil {
			if !errors.Is(err, db.ErrNoRecord) {
				return storeErr(err, labelPeage)
			}
			errs.Add("Le péage n'existe pas")
		}
	}
	if t.PeriodiciteID > 0 {
		if _, err := s.periodicites.GetByID(ctx, t.PeriodiciteID); err != nil {
			if !errors.Is(err, db.ErrNoRecord) {
				return storeErr(err, labelPeriodicite)
			}
			errs.Add("La périodicité n'existe pas")
		}
	}
	return errs.Err()
}
