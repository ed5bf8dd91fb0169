package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
	"github.com/open-tech-stack/mitic-web-sub002/internal/service/formula"
	"github.com/shopspring/decimal"
)

// ErrNoActiveSchema is the cause when an operation has no active schema
// ErrNoActiveSchema est la cause quand une opération n'a pas de schéma actif
var ErrNoActiveSchema = errors.New("no active accounting schema")

// SchemaService manages accounting schemas and generates journal entries
// SchemaService gère les schémas comptables et génère les écritures
type SchemaService struct {
	repo      ports.SchemaComptableRepository
	comptes   ports.CompteRepository
	ecritures ports.EcritureRepository
	db        ports.TxBeginner
	decimals  int32
	events    ports.EventPublisher
	metrics   DomainMetricsRecorder
}

// NewSchemaService creates schema service / Crée le service des schémas comptables
func NewSchemaService(
	repo ports.SchemaComptableRepository,
	comptes ports.CompteRepository,
	ecritures ports.EcritureRepository,
	db ports.TxBeginner,
	decimals int32,
	events ports.EventPublisher,
	metrics DomainMetricsRecorder,
) *SchemaService {
	return &SchemaService{
		repo:      repo,
		comptes:   comptes,
		ecritures: ecritures,
		db:        db,
		decimals:  decimals,
		events:    publisherOrNoop(events),
		metrics:   metricsOrNoop(metrics),
	}
}

// Simulation is the preview of an entry / Aperçu d'une écriture
type Simulation struct {
	Lignes      []domain.LigneEcriture `json:"lignes"`
	TotalDebit  decimal.Decimal        `json:"totalDebit"`
	TotalCredit decimal.Decimal        `json:"totalCredit"`
	Equilibre   bool                   `json:"equilibre"`
}

func (s *SchemaService) List(ctx context.Context) ([]*domain.SchemaComptable, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeErr(err, labelSchema)
	}
	return items, nil
}

func (s *SchemaService) Get(ctx context.Context, id int64) (*domain.SchemaComptable, error) {
	sc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelSchema)
	}
	return sc, nil
}

// Create stores a schema with its lines; an active schema deactivates the others of its operation
// Create enregistre un schéma et ses lignes ; un schéma actif désactive les autres de son opération
func (s *SchemaService) Create(ctx context.Context, sc *domain.SchemaComptable) (*domain.SchemaComptable, error) {
	sc.ID = 0
	if err := s.check(ctx, sc); err != nil {
		return nil, err
	}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, sc); err != nil {
			return err
		}
		if sc.Actif {
			return repo.DeactivateOthers(ctx, sc.Operation, sc.ID)
		}
		return nil
	})
	if err != nil {
		return nil, s.writeErr(err, sc.Code)
	}

	s.events.Publish(ctx, domain.NewEvent(resourceSchema, domain.ActionCreated, sc.ID))
	return s.Get(ctx, sc.ID)
}

// Update replaces header and lines / Remplace l'en-tête et les lignes
func (s *SchemaService) Update(ctx context.Context, id int64, in *domain.SchemaComptable) (*domain.SchemaComptable, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, storeErr(err, labelSchema)
	}
	in.ID = id
	if err := s.check(ctx, in); err != nil {
		return nil, err
	}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, in); err != nil {
			return err
		}
		if in.Actif {
			return repo.DeactivateOthers(ctx, in.Operation, in.ID)
		}
		return nil
	})
	if err != nil {
		return nil, s.writeErr(err, in.Code)
	}

	s.events.Publish(ctx, domain.NewEvent(resourceSchema, domain.ActionUpdated, in.ID))
	return s.Get(ctx, in.ID)
}

// Delete removes a schema that produced no entry / Supprime un schéma sans écriture
func (s *SchemaService) Delete(ctx context.Context, id int64) error {
	n, err := s.repo.CountEcritures(ctx, id)
	if err != nil {
		return storeErr(err, labelSchema)
	}
	if n > 0 {
		return apperr.Conflict(fmt.Sprintf("Ce schéma a généré %d écriture(s), désactivez-le plutôt", n))
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.repo.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return storeErr(err, labelSchema)
	}
	s.events.Publish(ctx, domain.NewEvent(resourceSchema, domain.ActionDeleted, id))
	return nil
}

// check validates structure, formulas and accounts / Valide la structure, les formules et les comptes
func (s *SchemaService) check(ctx context.Context, sc *domain.SchemaComptable) error {
	sc.Libelle = strings.TrimSpace(sc.Libelle)
	errs := sc.Validate()
	allowed, known := domain.OperationVariables[sc.Operation]

	for i := range sc.Lignes {
		l := &sc.Lignes[i]
		l.Formule = strings.TrimSpace(l.Formule)
		l.Libelle = strings.TrimSpace(l.Libelle)
		if l.Ordre == 0 {
			l.Ordre = i + 1
		}
		if known && l.Formule != "" {
			if err := formula.Check(l.Formule, allowed); err != nil {
				errs.Addf("Ligne %d : %v", i+1, err)
			}
		}
		if l.CompteID > 0 {
			c, err := s.comptes.GetByID(ctx, l.CompteID)
			switch {
			case errors.Is(err, db.ErrNoRecord):
				errs.Addf("Ligne %d : le compte n'existe pas", i+1)
			case err != nil:
				return storeErr(err, labelCompte)
			default:
				l.CompteNumero = c.Numero
			}
		}
	}
	return errs.Err()
}

func (s *SchemaService) writeErr(err error, code string) error {
	if errors.Is(err, db.ErrDuplicate) {
		return apperr.Conflict("Un schéma comptable existe déjà avec le code " + code)
	}
	return storeErr(err, labelSchema)
}

// Simuler evaluates a schema without persisting / Évalue un schéma sans enregistrer
func (s *SchemaService) Simuler(ctx context.Context, id int64, vars map[string]decimal.Decimal) (*Simulation, error) {
	sc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelSchema)
	}
	lignes, err := s.evaluate(sc, vars, true)
	if err != nil {
		return nil, err
	}
	e := domain.Ecriture{Lignes: lignes}
	debit, credit := e.Totals()
	return &Simulation{Lignes: lignes, TotalDebit: debit, TotalCredit: credit, Equilibre: debit.Equal(credit)}, nil
}

// evaluate computes journal lines; zero lines are dropped unless keepZero
// evaluate calcule les lignes ; les lignes nulles sont écartées sauf si keepZero
func (s *SchemaService) evaluate(sc *domain.SchemaComptable, vars map[string]decimal.Decimal, keepZero bool) ([]domain.LigneEcriture, error) {
	allowed := domain.OperationVariables[sc.Operation]
	lignes := make([]domain.LigneEcriture, 0, len(sc.Lignes))
	for i, l := range sc.Lignes {
		f, err := formula.Compile(l.Formule, allowed)
		if err != nil {
			return nil, apperr.Invalid(fmt.Sprintf("Ligne %d : %v", i+1, err))
		}
		v, err := f.Eval(vars, s.decimals)
		if err != nil {
			return nil, apperr.Invalid(fmt.Sprintf("Ligne %d : %v", i+1, err))
		}
		if v.IsZero() && !keepZero {
			continue
		}

		// A negative amount goes to the opposite side
		sens := l.Sens
		if v.IsNegative() {
			v = v.Neg()
			if sens == domain.SensDebit {
				sens = domain.SensCredit
			} else {
				sens = domain.SensDebit
			}
		}

		le := domain.LigneEcriture{CompteNumero: l.CompteNumero, Libelle: l.Libelle, Debit: decimal.Zero, Credit: decimal.Zero}
		if sens == domain.SensDebit {
			le.Debit = v
		} else {
			le.Credit = v
		}
		lignes = append(lignes, le)
	}
	return lignes, nil
}

// Generer persists the entry of an operation with its active schema
// Generer enregistre l'écriture d'une opération avec son schéma actif
func (s *SchemaService) Generer(ctx context.Context, operation, reference string, vars map[string]decimal.Decimal, date time.Time) (*domain.Ecriture, error) {
	var e *domain.Ecriture
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		e, err = s.GenererTx(ctx, tx, operation, reference, vars, date)
		return err
	})
	if err != nil {
		return nil, storeErr(err, labelEcriture)
	}
	s.publishEcriture(ctx, e)
	return e, nil
}

// GenererTx is Generer inside the caller's transaction; publishing is left to the caller
// GenererTx est Generer dans la transaction de l'appelant ; la publication revient à l'appelant
func (s *SchemaService) GenererTx(ctx context.Context, tx ports.DBTX, operation, reference string, vars map[string]decimal.Decimal, date time.Time) (*domain.Ecriture, error) {
	sc, err := s.repo.WithTx(tx).ActiveFor(ctx, operation)
	if err != nil {
		if errors.Is(err, db.ErrNoRecord) {
			msg := "Aucun schéma comptable actif pour l'opération " + operation
			return nil, &apperr.Error{Code: apperr.CodeValidation, Status: http.StatusBadRequest, Message: msg, Details: []string{msg}, Err: ErrNoActiveSchema}
		}
		return nil, err
	}

	lignes, err := s.evaluate(sc, vars, false)
	if err != nil {
		return nil, err
	}
	e := &domain.Ecriture{
		SchemaID:  sc.ID,
		Operation: operation,
		Reference: reference,
		Date:      date,
		Lignes:    lignes,
	}
	if len(lignes) == 0 {
		return nil, apperr.Invalid("L'écriture générée ne comporte aucune ligne")
	}
	if !e.IsBalanced() {
		d, c := e.Totals()
		return nil, apperr.Invalid(fmt.Sprintf("L'écriture générée n'est pas équilibrée (débit %s, crédit %s)", d.String(), c.String()))
	}

	if err := s.ecritures.WithTx(tx).Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SchemaService) publishEcriture(ctx context.Context, e *domain.Ecriture) {
	if e == nil {
		return
	}
	s.metrics.RecordEcriture(e.Operation)
	s.events.Publish(ctx, domain.NewEvent(resourceEcriture, domain.ActionCreated, e.ID))
}

// ListEcritures returns paginated journal entries / Retourne les écritures paginées
func (s *SchemaService) ListEcritures(ctx context.Context, filter domain.EcritureFilter, page Page) ([]*domain.Ecriture, int, error) {
	items, total, err := s.ecritures.List(ctx, filter, page.Offset(), page.Size())
	if err != nil {
		return nil, 0, storeErr(err, labelEcriture)
	}
	return items, total, nil
}

func (s *SchemaService) GetEcriture(ctx context.Context, id int64) (*domain.Ecriture, error) {
	e, err := s.ecritures.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, labelEcriture)
	}
	return e, nil
}
