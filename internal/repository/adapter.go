package repository

import (
	"context"
	"database/sql"

	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/mysql"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/postgres"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/sqlite"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/sqlstore"
)

// Compile-time checks to ensure all Factory implementations satisfy DatabaseFactory interface
// Vérifications à la compilation que toutes les Factory satisfont l'interface DatabaseFactory
var (
	_ DatabaseFactory = (*sqlite.Factory)(nil)
	_ DatabaseFactory = (*mysql.Factory)(nil)
	_ DatabaseFactory = (*postgres.Factory)(nil)
)

// factoryRegistry holds all database factories / Registre de toutes les factories de BD
var factoryRegistry = map[db.DatabaseType]DatabaseFactory{
	db.SQLite:     &sqlite.Factory{},
	db.MySQL:      &mysql.Factory{},
	db.PostgreSQL: &postgres.Factory{},
}

// Adapter adapts database connection to repositories / Adapte la connexion BD vers les repositories
type Adapter struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewAdapter creates repository adapter / Crée l'adapteur de repositories
func NewAdapter(conn *sql.DB, driver string) *Adapter {
	factory := factoryRegistry[db.ParseType(driver)]
	if factory == nil {
		factory = &sqlite.Factory{} // default fallback
	}

	return &Adapter{
		db:      conn,
		dialect: factory.Dialect(),
	}
}

// DB returns the underlying pool / Retourne le pool sous-jacent
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Dialect returns the active SQL dialect / Retourne le dialecte SQL actif
func (a *Adapter) Dialect() db.Dialect {
	return a.dialect
}

// BeginTx starts a transaction / Démarre une transaction
func (a *Adapter) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return a.db.BeginTx(ctx, opts)
}

// UserRepository returns user repository / Retourne le repository utilisateur
func (a *Adapter) UserRepository() ports.UserRepository {
	return sqlstore.NewUserRepository(a.db, a.dialect)
}

// RefreshTokenStore returns refresh token store / Retourne le store de refresh tokens
func (a *Adapter) RefreshTokenStore() ports.RefreshTokenStore {
	return sqlstore.NewRefreshTokenStore(a.db, a.dialect)
}

func (a *Adapter) RoleRepository() ports.RoleRepository {
	return sqlstore.NewRoleRepository(a.db, a.dialect)
}

func (a *Adapter) PcgRepository() ports.PcgRepository {
	return sqlstore.NewPcgRepository(a.db, a.dialect)
}

func (a *Adapter) CompteRepository() ports.CompteRepository {
	return sqlstore.NewCompteRepository(a.db, a.dialect)
}

func (a *Adapter) UORepository() ports.UORepository {
	return sqlstore.NewUORepository(a.db, a.dialect)
}

func (a *Adapter) PeageRepository() ports.PeageRepository {
	return sqlstore.NewPeageRepository(a.db, a.dialect)
}

func (a *Adapter) PeriodiciteRepository() ports.PeriodiciteRepository {
	return sqlstore.NewPeriodiciteRepository(a.db, a.dialect)
}

func (a *Adapter) AbonneRepository() ports.AbonneRepository {
	return sqlstore.NewAbonneRepository(a.db, a.dialect)
}

func (a *Adapter) TarifRepository() ports.TarifRepository {
	return sqlstore.NewTarifRepository(a.db, a.dialect)
}

func (a *Adapter) AbonnementRepository() ports.AbonnementRepository {
	return sqlstore.NewAbonnementRepository(a.db, a.dialect)
}

func (a *Adapter) SessionCaisseRepository() ports.SessionCaisseRepository {
	return sqlstore.NewSessionCaisseRepository(a.db, a.dialect)
}

func (a *Adapter) SchemaComptableRepository() ports.SchemaComptableRepository {
	return sqlstore.NewSchemaComptableRepository(a.db, a.dialect)
}

func (a *Adapter) EcritureRepository() ports.EcritureRepository {
	return sqlstore.NewEcritureRepository(a.db, a.dialect)
}
