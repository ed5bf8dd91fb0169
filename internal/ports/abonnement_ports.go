package ports

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
)

// AbonneRepository persists subscribers / Persiste les abonnés
type AbonneRepository interface {
	Create(ctx context.Context, a *domain.Abonne) error
	Update(ctx context.Context, a *domain.Abonne) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Abonne, error)
	// List searches by name, CNIB or phone / Recherche par nom, CNIB ou téléphone
	List(ctx context.Context, query string, offset, limit int) ([]*domain.Abonne, int, error)
}

// TarifRepository persists subscription offers / Persiste les offres d'abonnement
type TarifRepository interface {
	Create(ctx context.Context, t *domain.AbonnementTarif) error
	Update(ctx context.Context, t *domain.AbonnementTarif) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.AbonnementTarif, error)
	List(ctx context.Context, peageID int64) ([]*domain.AbonnementTarif, error)
}

// AbonnementRepository persists subscriptions / Persiste les abonnements
type AbonnementRepository interface {
	Create(ctx context.Context, a *domain.Abonnement) error
	// SetStatut moves a subscription still in status from to status to; false when it changed meanwhile
	SetStatut(ctx context.Context, id int64, from, to string) (bool, error)
	// Renew writes a new period if status and end date are still those read by the caller
	// Renew écrit une nouvelle période si le statut et la date de fin n'ont pas changé
	Renew(ctx context.Context, id int64, statut string, dateFin time.Time, r domain.Renouvellement) (bool, error)
	GetByID(ctx context.Context, id int64) (*domain.Abonnement, error)
	List(ctx context.Context, filter domain.AbonnementFilter, offset, limit int) ([]*domain.Abonnement, int, error)
	// DecrementPassage consumes one passage if any left / Consomme un passage s'il en reste
	DecrementPassage(ctx context.Context, id int64) (bool, error)
	// ExpireBefore marks ACTIF and SUSPENDU subscriptions ended at t as EXPIRE
	// ExpireBefore marque EXPIRE les abonnements ACTIF et SUSPENDU terminés à t
	ExpireBefore(ctx context.Context, t time.Time) (int64, error)
	CountByStatut(ctx context.Context, statut string) (int, error)
	CountExpiringBetween(ctx context.Context, from, to time.Time) (int, error)
	WithTx(tx DBTX) AbonnementRepository
}
