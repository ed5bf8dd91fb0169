package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

// PeageService manages toll stations / Gère les gares de péage
type PeageService struct {
	repo   ports.PeageRepository
	uos    ports.UORepository
	events ports.EventPublisher
}

// NewPeageService creates péage service / Crée le service des péages
func NewPeageService(repo ports.PeageRepository, uos ports.UORepository, events ports.EventPublisher) *PeageService {
	return &PeageService{repo: repo, uos: uos, events: publisherOrNoop(events)}
}

func (s *PeageService) List(ctx context.Context, filter domain.PeageFilter) ([]*domain.Peage, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, storeErr(err, labelPeage)
	}
	return items, nil
}

func (s *PeageService) Get(ctx context.Context, id int64) (*domain.Peage, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelPeage)
	}
	return p, nil
}

func (s *PeageService) Create(ctx context.Context, p *domain.Peage) (*domain.Peage, error) {
	p.ID = 0
	if err := s.check(ctx, p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, s.writeErr(err, p.Code)
	}
	s.events.Publish(ctx, domain.NewEvent(resourcePeage, domain.ActionCreated, p.ID))
	return p, nil
}

func (s *PeageService) Update(ctx context.Context, id int64, in *domain.Peage) (*domain.Peage, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, storeErr(err, labelPeage)
	}
	in.ID = id
	if err := s.check(ctx, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, in); err != nil {
		return nil, s.writeErr(err, in.Code)
	}
	s.events.Publish(ctx, domain.NewEvent(resourcePeage, domain.ActionUpdated, in.ID))
	return in, nil
}

func (s *PeageService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrForeignKeyViolation) {
			return apperr.Conflict("Ce péage a des sessions de caisse ou des tarifs, désactivez-le plutôt")
		}
		return storeErr(err, labelPeage)
	}
	s.events.Publish(ctx, domain.NewEvent(resourcePeage, domain.ActionDeleted, id))
	return nil
}

func (s *PeageService) check(ctx context.Context, p *domain.Peage) error {
	p.Libelle = strings.TrimSpace(p.Libelle)
	p.Localisation = strings.TrimSpace(p.Localisation)
	errs := p.Validate()
	if p.UoID > 0 {
		if _, err := s.uos.GetByID(ctx, p.UoID); err != nil {
			if !errors.Is(err, db.ErrNoRecord) {
				return storeErr(err, labelUO)
			}
			errs.Add("L'unité organisationnelle n'existe pas")
		}
	}
	return errs.Err()
}

func (s *PeageService) writeErr(err error, code string) error {
	if errors.Is(err, db.ErrDuplicate) {
		return apperr.Conflict("Un péage existe déjà avec le code " + code)
	}
	return storeErr(err, labelPeage)
}

// PeriodiciteService manages subscription periods / Gère les périodicités d'abonnement
type PeriodiciteService struct {
	repo   ports.PeriodiciteRepository
	events ports.EventPublisher
}

// NewPeriodiciteService creates periodicite service / Crée le service des périodicités
func NewPeriodiciteService(repo ports.PeriodiciteRepository, events ports.EventPublisher) *PeriodiciteService {
	return &PeriodiciteService{repo: repo, events: publisherOrNoop(events)}
}

func (s *PeriodiciteService) List(ctx context.Context) ([]*domain.Periodicite, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeErr(err, labelPeriodicite)
	}
	return items, nil
}

func (s *PeriodiciteService) Get(ctx context.Context, id int64) (*domain.Periodicite, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelPeriodicite)
	}
	return p, nil
}

func (s *PeriodiciteService) Create(ctx context.Context, p *domain.Periodicite) (*domain.Periodicite, error) {
	p.ID = 0
	p.Libelle = strings.TrimSpace(p.Libelle)
	if err := p.Validate().Err(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, s.writeErr(err, p.Code)
	}
	s.events.Publish(ctx, domain.NewEvent(resourcePeriodicite, domain.ActionCreated, p.ID))
	return p, nil
}

func (s *PeriodiciteService) Update(ctx context.Context, id int64, in *domain.Periodicite) (*domain.Periodicite, error) {
	in.ID = id
	in.Libelle = strings.TrimSpace(in.Libelle)
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, in); err != nil {
		return nil, s.writeErr(err, in.Code)
	}
	s.events.Publish(ctx, domain.NewEvent(resourcePeriodicite, domain.ActionUpdated, in.ID))
	return in, nil
}

// Delete refuses periods used by tariffs / Refuse les périodicités utilisées par des tarifs
func (s *PeriodiciteService) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return storeErr(err, labelPeriodicite)
	}
	n, err := s.repo.CountTarifs(ctx, id)
	if err != nil {
		return storeErr(err, labelPeriodicite)
	}
	if n > 0 {
		return apperr.Conflict(fmt.Sprintf("Cette périodicité est utilisée par %d tarif(s)", n))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeErr(err, labelPeriodicite)
	}
	s.events.Publish(ctx, domain.NewEvent(resourcePeriodicite, domain.ActionDeleted, id))
	return nil
}

func (s *PeriodiciteService) writeErr(err error, code string) error {
	if errors.Is(err, db.ErrDuplicate) {
		return apperr.Conflict("Une périodicité existe déjà avec le code " + code)
	}
	return storeErr(err, labelPeriodicite)
}
