package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/ports"
	"github.com/open-tech-stack/mitic-web-sub002/internal/repository/db"
	"github.com/open-tech-stack/mitic-web-sub002/internal/service/auth"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"
)

// Authentication failure causes, wrapped in 401 errors / Causes d'échec, enveloppées dans des erreurs 401
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrRefreshInvalid     = errors.New("invalid refresh token")
	ErrRefreshExpired     = errors.New("expired or revoked refresh token")
	ErrRefreshBinding     = errors.New("refresh token binding validation failed")
)

func unauthorized(cause error, message string) error {
	return &apperr.Error{Code: apperr.CodeUnauthorized, Status: http.StatusUnauthorized, Message: message, Err: cause}
}

// lockEntry is a per-user mutex with its last use, for cleanup
type lockEntry struct {
	mu       *sync.Mutex
	lastUsed time.Time
}

// AuthService handles authentication operations / Gère les opérations d'authentification
type AuthService struct {
	users        ports.UserRepository
	refreshStore ports.RefreshTokenStore
	roles        *RoleService
	conf         *config.Config
	db           ports.TxBeginner
	signer       *auth.Signer
	userLocks    map[int64]*lockEntry
	mapMutex     sync.Mutex
	refreshGroup singleflight.Group
	metrics      AuthMetricsRecorder
}

// AuthMetricsRecorder records auth metrics / Enregistre les métriques d'authentification
type AuthMetricsRecorder interface {
	RecordAccountLockout()
}

// NewAuthService creates authentication service instance / Crée une instance de service d'authentification
func NewAuthService(
	repo ports.UserRepository,
	refreshStore ports.RefreshTokenStore,
	roles *RoleService,
	conf *config.Config,
	db ports.TxBeginner,
	metrics AuthMetricsRecorder,
) (*AuthService, error) {
	signer, err := auth.NewSigner(conf.Auth.JWTSecret, conf.Auth.AccessTokenDuration)
	if err != nil {
		return nil, err
	}
	svc := &AuthService{
		users:        repo,
		refreshStore: refreshStore,
		roles:        roles,
		conf:         conf,
		db:           db,
		signer:       signer,
		userLocks:    make(map[int64]*lockEntry),
		metrics:      metrics,
	}

	go svc.cleanupInactiveLocks()

	return svc, nil
}

// VerifyAccessToken validates a bearer or cookie access token / Valide un token d'accès
func (s *AuthService) VerifyAccessToken(token string) (*auth.Claims, error) {
	return s.signer.Verify(token)
}

// getUserLock retrieves or creates user-specific mutex / Récupère ou crée un mutex utilisateur
func (s *AuthService) getUserLock(userID int64) *sync.Mutex {
	s.mapMutex.Lock()
	defer s.mapMutex.Unlock()

	entry, exists := s.userLocks[userID]
	if !exists {
		entry = &lockEntry{
			mu:       &sync.Mutex{},
			lastUsed: time.Now(),
		}
		s.userLocks[userID] = entry
	} else {
		entry.lastUsed = time.Now()
	}

	return entry.mu
}

// cleanupInactiveLocks periodically removes unused locks / Nettoie périodiquement les locks inutilisés
func (s *AuthService) cleanupInactiveLocks() {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mapMutex.Lock()
		now := time.Now()
		for userID, entry := range s.userLocks {
			if now.Sub(entry.lastUsed) > 15*time.Minute {
				delete(s.userLocks, userID)
			}
		}
		s.mapMutex.Unlock()
	}
}

// Login authenticates user and generates tokens / Authentifie l'utilisateur et génère les tokens
func (s *AuthService) Login(ctx context.Context, email, password, ipHash, uaHash string) (*domain.User, *auth.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNoRecord) {
			return nil, nil, unauthorized(ErrInvalidCredentials, "Email ou mot de passe incorrect")
		}
		return nil, nil, apperr.Normalize(err)
	}

	if user.IsLocked() {
		s.metrics.RecordAccountLockout()
		return nil, nil, unauthorized(ErrAccountLocked,
			"Compte verrouillé suite à plusieurs tentatives échouées. Réessayez dans "+formatLockoutDuration(time.Until(*user.LockedUntil)))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		newFailedAttempts := user.FailedLoginAttempts + 1

		if newFailedAttempts >= s.conf.Security.MaxFailedAttempts {
			lockedUntil := time.Now().Add(s.conf.Security.LockoutDuration)
			if err := s.users.LockAccount(ctx, user.ID, lockedUntil); err != nil {
				slog.Error("failed to lock account", "user_id", user.ID, "err", err)
			}
			s.metrics.RecordAccountLockout()
			return nil, nil, unauthorized(ErrAccountLocked,
				"Compte verrouillé suite à plusieurs tentatives échouées. Réessayez dans "+formatLockoutDuration(s.conf.Security.LockoutDuration))
		}

		if err := s.users.IncrementFailedAttempts(ctx, user.ID); err != nil {
			slog.Error("failed to record failed login attempt", "user_id", user.ID, "err", err)
		}
		return nil, nil, unauthorized(ErrInvalidCredentials, "Email ou mot de passe incorrect")
	}

	if !user.Actif {
		return nil, nil, unauthorized(ErrAccountDisabled, "Ce compte est désactivé")
	}

	userLock := s.getUserLock(user.ID)
	userLock.Lock()
	defer userLock.Unlock()

	var tokenPair *auth.TokenPair
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		txRefreshStore := s.refreshStore.WithTx(tx)

		// One active session per user
		if err := txRefreshStore.RevokeAllForUser(ctx, user.ID); err != nil {
			return err
		}

		pair, err := s.issue(ctx, txRefreshStore, user, ipHash, uaHash)
		if err != nil {
			return err
		}
		tokenPair = pair

		return s.users.WithTx(tx).ResetFailedAttempts(ctx, user.ID)
	})
	if err != nil {
		slog.Error("login transaction failed", "user_id", user.ID, "err", err)
		return nil, nil, apperr.Internal(err)
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	return user, tokenPair, nil
}

// issue generates a token pair and saves the bound refresh token / Génère la paire et enregistre le refresh token lié
func (s *AuthService) issue(ctx context.Context, store ports.RefreshTokenStore, user *domain.User, ipHash, uaHash string) (*auth.TokenPair, error) {
	pair, err := s.signer.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = store.Save(ctx, &domain.RefreshToken{
		Token:     pair.RefreshToken,
		UserID:    user.ID,
		IssueAt:   now,
		ExpiresAt: now.Add(s.conf.Auth.RefreshTokenDuration),
		IPHash:    ipHash,
		UAHash:    uaHash,
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// RefreshToken validates and rotates refresh token / Valide et renouvelle le refresh token
// Concurrent calls with the same token and client share one rotation.
// Les appels concurrents avec le même token et client partagent une seule rotation.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken, ipHash, uaHash string) (*auth.TokenPair, error) {
	if refreshToken == "" {
		return nil, unauthorized(ErrRefreshInvalid, "Session invalide, veuillez vous reconnecter")
	}

	key := refreshToken + "|" + ipHash + "|" + uaHash
	v, err, _ := s.refreshGroup.Do(key, func() (any, error) {
		return s.rotate(context.WithoutCancel(ctx), refreshToken, ipHash, uaHash)
	})
	if err != nil {
		return nil, err
	}
	return v.(*auth.TokenPair), nil
}

func (s *AuthService) rotate(ctx context.Context, refreshToken, ipHash, uaHash string) (*auth.TokenPair, error) {
	tokenRecord, err := s.refreshStore.Get(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) || errors.Is(err, db.ErrNoRecord) {
			return nil, unauthorized(ErrRefreshInvalid, "Session invalide, veuillez vous reconnecter")
		}
		return nil, apperr.Normalize(err)
	}

	if !tokenRecord.UsableAt(time.Now()) {
		return nil, unauthorized(ErrRefreshExpired, "Session expirée, veuillez vous reconnecter")
	}

	if tokenRecord.IPHash != ipHash || tokenRecord.UAHash != uaHash {
		slog.Warn("refresh token binding validation failed", "user_id", tokenRecord.UserID)
		return nil, unauthorized(ErrRefreshBinding, "Session invalide, veuillez vous reconnecter")
	}

	user, err := s.users.GetByID(ctx, tokenRecord.UserID)
	if err != nil {
		return nil, unauthorized(ErrRefreshInvalid, "Session invalide, veuillez vous reconnecter")
	}
	if !user.Actif {
		return nil, unauthorized(ErrAccountDisabled, "Ce compte est désactivé")
	}

	userLock := s.getUserLock(user.ID)
	userLock.Lock()
	defer userLock.Unlock()

	var pair *auth.TokenPair
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		txRefreshStore := s.refreshStore.WithTx(tx)
		if err := txRefreshStore.Revoke(ctx, refreshToken); err != nil {
			return err
		}
		pair, err = s.issue(ctx, txRefreshStore, user, ipHash, uaHash)
		return err
	})
	if err != nil {
		slog.Error("token refresh transaction failed", "user_id", user.ID, "err", err)
		return nil, apperr.Internal(err)
	}
	return pair, nil
}

// Me restores the session: user and resolved permissions / Restaure la session : utilisateur et permissions résolues
func (s *AuthService) Me(ctx context.Context, userID int64) (*domain.User, []domain.Permission, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, storeErr(err, labelUser)
	}
	if !user.Actif {
		return nil, nil, unauthorized(ErrAccountDisabled, "Ce compte est désactivé")
	}
	perms, err := s.roles.Permissions(ctx, user.Role)
	if err != nil {
		return nil, nil, err
	}
	return user, perms.Expand(), nil
}

// RevokeAllTokens revokes all refresh tokens for a user / Révoque tous les refresh tokens d'un utilisateur
func (s *AuthService) RevokeAllTokens(ctx context.Context, userID int64) error {
	lock := s.getUserLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.refreshStore.RevokeAllForUser(ctx, userID); err != nil {
		slog.Error("failed to revoke tokens", "err", err, "user_id", userID)
		return apperr.Internal(err)
	}

	slog.Info("all refresh tokens revoked", "user_id", userID)
	return nil
}

// PurgeExpiredTokens deletes expired refresh tokens / Supprime les refresh tokens expirés
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.refreshStore.PurgeExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("expired refresh tokens purged", "count", n)
	}
	return n, nil
}
