package sqlstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
)

var _ ports.RefreshTokenStore = (*refreshTokenStore)(nil)

// refreshTokenStore keeps only SHA-256 hashes of refresh tokens / Ne conserve que les hash SHA-256 des tokens
type refreshTokenStore struct {
	base
}

// NewRefreshTokenStore creates token store / Crée le magasin de tokens
func NewRefreshTokenStore(conn ports.DBTX, d db.Dialect) ports.RefreshTokenStore {
	return &refreshTokenStore{base{db: conn, d: d}}
}

// WithTx returns store with transaction / Retourne le magasin avec transaction
func (s *refreshTokenStore) WithTx(tx ports.DBTX) ports.RefreshTokenStore {
	return &refreshTokenStore{base{db: tx, d: s.d}}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Save stores hashed refresh token / Stocke le token haché
func (s *refreshTokenStore) Save(ctx context.Context, t *domain.RefreshToken) error {
	if t == nil {
		return errors.New("the refresh token is null")
	}

	_, err := s.exec(ctx,
		`INSERT INTO refresh_tokens (token, user_id, issue_at, expires_at, is_revoked, ip_hash, ua_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		hashToken(t.Token), t.UserID, t.IssueAt.UTC(), t.ExpiresAt.UTC(), t.IsRevoked, t.IPHash, t.UAHash,
	)
	return err
}

// Get retrieves refresh token by value / Récupère le token par valeur
func (s *refreshTokenStore) Get(ctx context.Context, tokenString string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := s.queryRow(ctx,
		`SELECT token, user_id, issue_at, expires_at, is_revoked, ip_hash, ua_hash
		 FROM refresh_tokens WHERE token = ?`,
		hashToken(tokenString),
	).Scan(&t.Token, &t.UserID, &t.IssueAt, &t.ExpiresAt, &t.IsRevoked, &t.IPHash, &t.UAHash)
	if err != nil {
		if err = s.err(err); errors.Is(err, db.ErrNoRecord) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Revoke marks token as revoked / Marque le token comme révoqué
func (s *refreshTokenStore) Revoke(ctx context.Context, tokenString string) error {
	_, err := s.exec(ctx, `UPDATE refresh_tokens SET is_revoked = ? WHERE token = ?`, true, hashToken(tokenString))
	return err
}

// RevokeAllForUser revokes all user tokens / Révoque tous les tokens de l'utilisateur
func (s *refreshTokenStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	_, err := s.exec(ctx, `UPDATE refresh_tokens SET is_revoked = ? WHERE user_id = ?`, true, userID)
	return err
}

// PurgeExpired deletes expired tokens / Supprime les tokens expirés
func (s *refreshTokenStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
