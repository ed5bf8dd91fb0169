package ports

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
)

// SessionCaisseRepository persists cash sessions and their tickets / Persiste les sessions de caisse et leurs tickets
type SessionCaisseRepository interface {
	Create(ctx context.Context, s *domain.SessionCaisse) error
	// Update saves closing and validation fields / Enregistre les champs de clôture et de validation
	Update(ctx context.Context, s *domain.SessionCaisse) error
	GetByID(ctx context.Context, id int64) (*domain.SessionCaisse, error)
	List(ctx context.Context, filter domain.SessionFilter, offset, limit int) ([]*domain.SessionCaisse, int, error)
	// FindOpen returns open session of cashier or of lane / Retourne la session ouverte du caissier ou de la voie
	FindOpenByCaissier(ctx context.Context, caissierID int64) (*domain.SessionCaisse, error)
	FindOpenByVoie(ctx context.Context, peageID int64, voie int) (*domain.SessionCaisse, error)

	AddTicket(ctx context.Context, t *domain.Ticket) error
	Tickets(ctx context.Context, sessionID int64) ([]*domain.Ticket, error)
	// TicketsSince returns tickets sold since t with their péage / Retourne les tickets vendus depuis t avec leur péage
	TicketsSince(ctx context.Context, since time.Time) ([]TicketPeage, error)

	WithTx(tx DBTX) SessionCaisseRepository
}

// TicketPeage is a ticket amount tagged with its station / Montant de ticket rattaché à sa gare
type TicketPeage struct {
	PeageID      int64
	PeageLibelle string
	Ticket       domain.Ticket
}

// SchemaComptableRepository persists accounting schemas / Persiste les schémas comptables
type SchemaComptableRepository interface {
	// Create inserts schema with its lines / Insère le schéma avec ses lignes
	Create(ctx context.Context, s *domain.SchemaComptable) error
	// Update replaces header and lines / Remplace l'en-tête et les lignes
	Update(ctx context.Context, s *domain.SchemaComptable) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.SchemaComptable, error)
	List(ctx context.Context) ([]*domain.SchemaComptable, error)
	// ActiveFor returns active schema of operation / Retourne le schéma actif de l'opération
	ActiveFor(ctx context.Context, operation string) (*domain.SchemaComptable, error)
	// DeactivateOthers keeps only keepID active for operation / Ne garde que keepID actif pour l'opération
	DeactivateOthers(ctx context.Context, operation string, keepID int64) error
	CountEcritures(ctx context.Context, id int64) (int, error)
	WithTx(tx DBTX) SchemaComptableRepository
}

// EcritureRepository persists journal entries / Persiste les écritures comptables
type EcritureRepository interface {
	Create(ctx context.Context, e *domain.Ecriture) error
	GetByID(ctx context.Context, id int64) (*domain.Ecriture, error)
	List(ctx context.Context, filter domain.EcritureFilter, offset, limit int) ([]*domain.Ecriture, int, error)
	WithTx(tx DBTX) EcritureRepository
}
