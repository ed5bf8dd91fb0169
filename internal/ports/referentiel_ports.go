package ports

import (
	"context"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
)

// PcgRepository persists the chart of accounts / Persiste le plan comptable
type PcgRepository interface {
	Create(ctx context.Context, p *domain.Pcg) error
	Update(ctx context.Context, p *domain.Pcg) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Pcg, error)
	GetByNumero(ctx context.Context, numero string) (*domain.Pcg, error)
	// List returns accounts ordered by numero / Retourne les comptes triés par numéro
	List(ctx context.Context, filter domain.PcgFilter) ([]*domain.Pcg, error)
	Children(ctx context.Context, id int64) ([]*domain.Pcg, error)
	CountComptes(ctx context.Context, pcgID int64) (int, error)
	WithTx(tx DBTX) PcgRepository
}

// CompteRepository persists operational accounts / Persiste les comptes opérationnels
type CompteRepository interface {
	Create(ctx context.Context, c *domain.Compte) error
	Update(ctx context.Context, c *domain.Compte) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Compte, error)
	List(ctx context.Context, filter domain.CompteFilter, offset, limit int) ([]*domain.Compte, int, error)
}

// UORepository persists organizational units / Persiste les unités organisationnelles
type UORepository interface {
	Create(ctx context.Context, u *domain.OrganizationalUnit) error
	Update(ctx context.Context, u *domain.OrganizationalUnit) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.OrganizationalUnit, error)
	// List returns units ordered by code / Retourne les unités triées par code
	List(ctx context.Context) ([]*domain.OrganizationalUnit, error)
	CountChildren(ctx context.Context, id int64) (int, error)
	CountPeages(ctx context.Context, id int64) (int, error)
}

// PeageRepository persists toll stations / Persiste les gares de péage
type PeageRepository interface {
	Create(ctx context.Context, p *domain.Peage) error
	Update(ctx context.Context, p *domain.Peage) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Peage, error)
	List(ctx context.Context, filter domain.PeageFilter) ([]*domain.Peage, error)
}

// PeriodiciteRepository persists subscription periods / Persiste les périodicités
type PeriodiciteRepository interface {
	Create(ctx context.Context, p *domain.Periodicite) error
	Update(ctx context.Context, p *domain.Periodicite) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Periodicite, error)
	List(ctx context.Context) ([]*domain.Periodicite, error)
	CountTarifs(ctx context.Context, id int64) (int, error)
}
