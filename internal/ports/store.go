package ports

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
)

// ErrNotFound is returned by stores keyed by an opaque value / Retourné par les stores indexés par une valeur opaque
var ErrNotFound = errors.New("not found")

// DBTX is satisfied by *sql.DB and *sql.Tx, repositories run on either
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner opens the transactions that span several repositories
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// RefreshTokenStore persists the opaque half of a login session
// RefreshTokenStore conserve la partie opaque d'une session
type RefreshTokenStore interface {
	Save(ctx context.Context, token *domain.RefreshToken) error
	// Get returns ErrNotFound for unknown values, revoked tokens are returned as is
	Get(ctx context.Context, value string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, value string) error
	// RevokeAllForUser enforces the single active session per user
	RevokeAllForUser(ctx context.Context, userID int64) error
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
	WithTx(tx DBTX) RefreshTokenStore
}

// EmailSender delivers account mails (activation, reset) / Envoie les mails de compte
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}
