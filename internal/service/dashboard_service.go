package service

import (
	"context"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ExpiringWindow is how far ahead expiring subscriptions are counted
// ExpiringWindow est l'horizon de comptage des abonnements arrivant à échéance
const ExpiringWindow = 7 * 24 * time.Hour

// DashboardService aggregates activity figures / Agrège les indicateurs d'activité
type DashboardService struct {
	abonnements ports.AbonnementRepository
	sessions    ports.SessionCaisseRepository
	users       ports.UserRepository
	now         func() time.Time
}

// NewDashboardService creates dashboard service / Crée le service du tableau de bord
func NewDashboardService(abonnements ports.AbonnementRepository, sessions ports.SessionCaisseRepository, users ports.UserRepository) *DashboardService {
	return &DashboardService{abonnements: abonnements, sessions: sessions, users: users, now: time.Now}
}

// Get computes the dashboard; each figure is loaded concurrently
// Get calcule le tableau de bord ; chaque indicateur est chargé en parallèle
func (s *DashboardService) Get(ctx context.Context) (*domain.Dashboard, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	d := &domain.Dashboard{RecetteDuJour: decimal.Zero, RecettesParPeage: []domain.RecettePeage{}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.abonnements.CountByStatut(gctx, domain.AbonnementActif)
		d.AbonnementsActifs = n
		return err
	})
	g.Go(func() error {
		n, err := s.abonnements.CountExpiringBetween(gctx, now, now.Add(ExpiringWindow))
		d.AbonnementsExpirant = n
		return err
	})
	g.Go(func() error {
		_, n, err := s.sessions.List(gctx, domain.SessionFilter{Statut: domain.SessionOuverte}, 0, 1)
		d.SessionsOuvertes = n
		return err
	})
	g.Go(func() error {
		tickets, err := s.sessions.TicketsSince(gctx, today)
		if err != nil {
			return err
		}
		d.RecetteDuJour, d.RecettesParPeage = recettes(tickets)
		return nil
	})
	g.Go(func() error {
		counts, err := s.users.CountByRole(gctx)
		d.UtilisateursParRole = counts
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeErr(err, "Tableau de bord")
	}
	return d, nil
}

// recettes sums ticket amounts overall and per péage, ordered as received
// recettes somme les montants au total et par péage, dans l'ordre reçu
func recettes(tickets []ports.TicketPeage) (decimal.Decimal, []domain.RecettePeage) {
	total := decimal.Zero
	out := []domain.RecettePeage{}
	index := map[int64]int{}
	for _, tp := range tickets {
		total = total.Add(tp.Ticket.Montant)
		i, ok := index[tp.PeageID]
		if !ok {
			i = len(out)
			index[tp.PeageID] = i
			out = append(out, domain.RecettePeage{PeageID: tp.PeageID, Libelle: tp.PeageLibelle, Montant: decimal.Zero})
		}
		out[i].Montant = out[i].Montant.Add(tp.Ticket.Montant)
	}
	return total, out
}
