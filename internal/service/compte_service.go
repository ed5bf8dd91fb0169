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

// CompteService manages operational accounts / Gère les comptes opérationnels
type CompteService struct {
	repo   ports.CompteRepository
	pcg    ports.PcgRepository
	uos    ports.UORepository
	events ports.EventPublisher
}

// NewCompteService creates compte service / Crée le service des comptes
func NewCompteService(repo ports.CompteRepository, pcg ports.PcgRepository, uos ports.UORepository, events ports.EventPublisher) *CompteService {
	return &CompteService{repo: repo, pcg: pcg, uos: uos, events: publisherOrNoop(events)}
}

func (s *CompteService) List(ctx context.Context, filter domain.CompteFilter, page Page) ([]*domain.Compte, int, error) {
	items, total, err := s.repo.List(ctx, filter, page.Offset(), page.Size())
	if err != nil {
		return nil, 0, storeErr(err, labelCompte)
	}
	return items, total, nil
}

func (s *CompteService) Get(ctx context.Context, id int64) (*domain.Compte, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelCompte)
	}
	return c, nil
}

// Create adds an account whose numero extends its PCG account
// Create ajoute un compte dont le numéro prolonge son compte PCG
func (s *CompteService) Create(ctx context.Context, c *domain.Compte) (*domain.Compte, error) {
	c.ID = 0
	if err := s.check(ctx, c); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, s.writeErr(err, c.Numero)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceCompte, domain.ActionCreated, c.ID))
	return c, nil
}

func (s *CompteService) Update(ctx context.Context, id int64, in *domain.Compte) (*domain.Compte, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, storeErr(err, labelCompte)
	}
	in.ID = id
	if err := s.check(ctx, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, in); err != nil {
		return nil, s.writeErr(err, in.Numero)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceCompte, domain.ActionUpdated, in.ID))
	return in, nil
}

func (s *CompteService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrForeignKeyViolation) {
			return apperr.Conflict("Ce compte est utilisé par un schéma comptable")
		}
		return storeErr(err, labelCompte)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceCompte, domain.ActionDeleted, id))
	return nil
}

// check validates fields, PCG prefix and optional UO / Valide les champs, le préfixe PCG et l'UO optionnelle
func (s *CompteService) check(ctx context.Context, c *domain.Compte) error {
	c.Libelle = strings.TrimSpace(c.Libelle)
	if c.Type == "" {
		c.Type = domain.CompteGeneral
	}
	if c.UoID != nil && *c.UoID <= 0 {
		c.UoID = nil
	}

	errs := c.Validate()
	if c.PcgID > 0 {
		p, err := s.pcg.GetByID(ctx, c.PcgID)
		switch {
		case errors.Is(err, db.ErrNoRecord):
			errs.Add("Le compte PCG de rattachement n'existe pas")
		case err != nil:
			return storeErr(err, labelPcg)
		case !strings.HasPrefix(c.Numero, p.Numero):
			errs.Addf("Le numéro %s doit commencer par le numéro PCG %s", c.Numero, p.Numero)
		default:
			c.PcgNumero = p.Numero
		}
	}
	if c.UoID != nil {
		if _, err := s.uos.GetByID(ctx, *c.UoID); err != nil {
			if !errors.Is(err, db.ErrNoRecord) {
				return storeErr(err, labelUO)
			}
			errs.Add("L'unité organisationnelle n'existe pas")
		}
	}
	return errs.Err()
}

func (s *CompteService) writeErr(err error, numero string) error {
	if errors.Is(err, db.ErrDuplicate) {
		return apperr.Conflict("Un compte existe déjà avec le numéro " + numero)
	}
	return storeErr(err, labelCompte)
}
