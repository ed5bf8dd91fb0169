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

// UOService manages the organization tree / Gère l'arbre organisationnel
type UOService struct {
	repo   ports.UORepository
	events ports.EventPublisher
}

// NewUOService creates organizational unit service / Crée le service des unités organisationnelles
func NewUOService(repo ports.UORepository, events ports.EventPublisher) *UOService {
	return &UOService{repo: repo, events: publisherOrNoop(events)}
}

func (s *UOService) List(ctx context.Context) ([]*domain.OrganizationalUnit, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeErr(err, labelUO)
	}
	return items, nil
}

// Tree returns the unit forest / Retourne la forêt des unités
func (s *UOService) Tree(ctx context.Context) ([]*domain.OrganizationalUnit, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.UOTree(items), nil
}

func (s *UOService) Get(ctx context.Context, id int64) (*domain.OrganizationalUnit, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelUO)
	}
	return u, nil
}

func (s *UOService) Create(ctx context.Context, u *domain.OrganizationalUnit) (*domain.OrganizationalUnit, error) {
	u.ID = 0
	u.Libelle = strings.TrimSpace(u.Libelle)
	errs := u.Validate()
	if u.ParentID != nil {
		if _, err := s.repo.GetByID(ctx, *u.ParentID); err != nil {
			if !errors.Is(err, db.ErrNoRecord) {
				return nil, storeErr(err, labelUO)
			}
			errs.Add("L'unité parente n'existe pas")
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, s.writeErr(err, u.Code)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceUO, domain.ActionCreated, u.ID))
	return u, nil
}

func (s *UOService) Update(ctx context.Context, id int64, in *domain.OrganizationalUnit) (*domain.OrganizationalUnit, error) {
	in.ID = id
	in.Libelle = strings.TrimSpace(in.Libelle)
	errs := in.Validate()
	if !errs.Valid() {
		return nil, errs.Err()
	}
	if err := s.checkParent(ctx, id, in.ParentID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, in); err != nil {
		return nil, s.writeErr(err, in.Code)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceUO, domain.ActionUpdated, in.ID))
	return in, nil
}

// Move re-parents a unit outside its own subtree / Rattache une unité hors de son propre sous-arbre
func (s *UOService) Move(ctx context.Context, id int64, parentID *int64) (*domain.OrganizationalUnit, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelUO)
	}
	u.ParentID = parentID
	if err := u.Validate().Err(); err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, id, parentID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, s.writeErr(err, u.Code)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceUO, domain.ActionUpdated, u.ID))
	return u, nil
}

// checkParent refuses unknown parents and cycles / Refuse les parents inconnus et les cycles
func (s *UOService) checkParent(ctx context.Context, id int64, parentID *int64) error {
	all, err := s.repo.List(ctx)
	if err != nil {
		return storeErr(err, labelUO)
	}
	parents := make(map[int64]*int64, len(all))
	for _, u := range all {
		parents[u.ID] = u.ParentID
	}
	if _, ok := parents[id]; !ok {
		return apperr.NotFound(labelUO)
	}
	if parentID == nil {
		return nil
	}
	if _, ok := parents[*parentID]; !ok {
		return apperr.Invalid("L'unité parente n'existe pas")
	}
	if domain.IsDescendant(parents, id, *parentID) {
		return apperr.Invalid("Une unité ne peut pas être rattachée à elle-même ou à l'une de ses sous-unités")
	}
	return nil
}

// Delete removes a leaf unit without péages / Supprime une unité feuille sans péage
func (s *UOService) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return storeErr(err, labelUO)
	}
	n, err := s.repo.CountChildren(ctx, id)
	if err != nil {
		return storeErr(err, labelUO)
	}
	if n > 0 {
		return apperr.Conflict("Cette unité possède des sous-unités et ne peut pas être supprimée")
	}
	n, err = s.repo.CountPeages(ctx, id)
	if err != nil {
		return storeErr(err, labelUO)
	}
	if n > 0 {
		return apperr.Conflict("Des péages sont rattachés à cette unité")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrForeignKeyViolation) {
			return apperr.Conflict("Cette unité est encore référencée par des comptes ou des utilisateurs")
		}
		return storeErr(err, labelUO)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceUO, domain.ActionDeleted, id))
	return nil
}

func (s *UOService) writeErr(err error, code string) error {
	if errors.Is(err, db.ErrDuplicate) {
		return apperr.Conflict("Une unité existe déjà avec le code " + code)
	}
	return storeErr(err, labelUO)
}
