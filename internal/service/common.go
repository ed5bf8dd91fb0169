package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

// Resource labels used in French messages / Libellés des ressources pour les messages
const (
	labelPcg         = "Compte PCG"
	labelCompte      = "Compte"
	labelUO          = "Unité organisationnelle"
	labelPeage       = "Péage"
	labelPeriodicite = "Périodicité"
	labelAbonne      = "Abonné"
	labelTarif       = "Tarif d'abonnement"
	labelAbonnement  = "Abonnement"
	labelSession     = "Session de caisse"
	labelSchema      = "Schéma comptable"
	labelEcriture    = "Écriture"
	labelUser        = "Utilisateur"
	labelRole        = "Rôle"
)

// Event resources / Ressources des événements
const (
	resourcePcg         = "pcg"
	resourceCompte      = "compte"
	resourceUO          = "uo"
	resourcePeage       = "peage"
	resourcePeriodicite = "periodicite"
	resourceAbonne      = "abonne"
	resourceTarif       = "tarif"
	resourceAbonnement  = "abonnement"
	resourceSession     = "session"
	resourceSchema      = "schema"
	resourceEcriture    = "ecriture"
	resourceUser        = "user"
	resourceRole        = "role"
)

// Pagination bounds / Bornes de pagination
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request / Demande de page (base 1)
type Page struct {
	Page  int
	Limit int
}

// NewPage clamps page and limit / Borne la page et la limite
func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	return Page{Page: page, Limit: min(limit, MaxPageSize)}
}

// Offset returns rows to skip / Retourne le nombre de lignes à sauter
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.limit()
}

func (p Page) limit() int {
	if p.Limit < 1 {
		return DefaultPageSize
	}
	return min(p.Limit, MaxPageSize)
}

// Size returns the effective limit / Retourne la limite effective
func (p Page) Size() int {
	return p.limit()
}

// storeErr turns repository errors into application errors / Convertit les erreurs du repository
func storeErr(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, db.ErrNoRecord) {
		return apperr.NotFound(resource)
	}
	appErr := apperr.Normalize(err)
	if appErr.Code == apperr.CodeServer {
		slog.Error("storage error", "resource", resource, "err", err)
	}
	return appErr
}

// withTx runs fn in a transaction, rolled back on error / Exécute fn dans une transaction annulée en cas d'erreur
func withTx(ctx context.Context, beginner ports.TxBeginner, fn func(tx *sql.Tx) error) error {
	tx, err := beginner.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// noopPublisher discards events / Ignore les événements
type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.Event) {}

func publisherOrNoop(p ports.EventPublisher) ports.EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// DomainMetricsRecorder records business counters / Enregistre les compteurs métier
type DomainMetricsRecorder interface {
	RecordTicketSold(mode string)
	RecordSessionEvent(event string)
	RecordAbonnementEvent(event string, n int)
	RecordEcriture(operation string)
}

type noopMetrics struct{}

func (noopMetrics) RecordTicketSold(string)           {}
func (noopMetrics) RecordSessionEvent(string)         {}
func (noopMetrics) RecordAbonnementEvent(string, int) {}
func (noopMetrics) RecordEcriture(string)             {}

func metricsOrNoop(m DomainMetricsRecorder) DomainMetricsRecorder {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

// ensureExists maps a missing reference to a validation message / Transforme une référence absente en message de validation
func ensureExists(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, db.ErrNoRecord) {
		return apperr.Invalid(msg)
	}
	return apperr.Normalize(err)
}
