package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/mocks"
	"github.com/open-tech-stack/mitic-web-sub002/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Secret123!"

// authFixture is an AuthService over mock stores; roles come from a seeded SQLite env
type authFixture struct {
	svc     *AuthService
	users   *mocks.MockUserRepository
	tokens  *mocks.MockRefreshTokenStore
	metrics *mocks.MockMetrics
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	e := newEnv(t)
	f := &authFixture{
		users:   mocks.NewMockUserRepository(),
		tokens:  mocks.NewMockRefreshTokenStore(),
		metrics: mocks.NewMockMetrics(),
	}
	svc, err := NewAuthService(f.users, f.tokens, e.roles, testConfig(), e.a, f.metrics)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *authFixture) addUser(t *testing.T, email, role string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return f.users.Add(&domain.User{Email: email, Password: string(hash), Nom: "Zongo", Role: role, Actif: true})
}

func TestAuthService_Login_Success(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "caissier@peages.bf", domain.RoleCaissier)
	f.users.Stored(u.ID).FailedLoginAttempts = 2

	user, pair, err := f.svc.Login(context.Background(), "caissier@peages.bf", testPassword, "ip", "ua")
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)
	require.NotNil(t, pair)

	claims, err := f.svc.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCaissier, claims.Role)
	assert.Equal(t, auth.Audience, claims.Audience[0])

	assert.Zero(t, f.users.Stored(u.ID).FailedLoginAttempts, "counter reset on success")
	assert.Equal(t, 1, f.tokens.Active(u.ID))
}

func TestAuthService_Login_SingleActiveSession(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "caissier@peages.bf", domain.RoleCaissier)
	ctx := context.Background()

	_, first, err := f.svc.Login(ctx, u.Email, testPassword, "ip", "ua")
	require.NoError(t, err)
	_, _, err = f.svc.Login(ctx, u.Email, testPassword, "ip2", "ua2")
	require.NoError(t, err)

	assert.Equal(t, 1, f.tokens.Active(u.ID))
	_, err = f.svc.RefreshToken(ctx, first.RefreshToken, "ip", "ua")
	assert.ErrorIs(t, err, ErrRefreshExpired, "first session was revoked")
}

func TestAuthService_Login_Failures(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		password  string
		setup     func(f *authFixture)
		wantCause error
	}{
		{
			name:      "unknown email",
			email:     "inconnu@peages.bf",
			password:  testPassword,
			wantCause: ErrInvalidCredentials,
		},
		{
			name:      "wrong password",
			email:     "agent@peages.bf",
			password:  "Mauvais123!",
			wantCause: ErrInvalidCredentials,
		},
		{
			name:     "disabled account",
			email:    "agent@peages.bf",
			password: testPassword,
			setup: func(f *authFixture) {
				u, _ := f.users.GetByEmail(context.Background(), "agent@peages.bf")
				f.users.Stored(u.ID).Actif = false
			},
			wantCause: ErrAccountDisabled,
		},
		{
			name:     "locked account",
			email:    "agent@peages.bf",
			password: testPassword,
			setup: func(f *authFixture) {
				u, _ := f.users.GetByEmail(context.Background(), "agent@peages.bf")
				until := time.Now().Add(10 * time.Minute)
				f.users.Stored(u.ID).LockedUntil = &until
			},
			wantCause: ErrAccountLocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			f.addUser(t, "agent@peages.bf", domain.RoleAgentCommercial)
			if tt.setup != nil {
				tt.setup(f)
			}

			_, pair, err := f.svc.Login(context.Background(), tt.email, tt.password, "ip", "ua")
			require.Error(t, err)
			assert.Nil(t, pair)
			assert.ErrorIs(t, err, tt.wantCause)
			assert.Equal(t, http.StatusUnauthorized, status(err))
		})
	}
}

func TestAuthService_Login_LocksAfterMaxAttempts(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "caissier@peages.bf", domain.RoleCaissier)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := f.svc.Login(ctx, u.Email, "Mauvais123!", "ip", "ua")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	assert.Equal(t, 2, f.users.Stored(u.ID).FailedLoginAttempts)

	// third failure reaches MaxFailedAttempts
	_, _, err := f.svc.Login(ctx, u.Email, "Mauvais123!", "ip", "ua")
	assert.ErrorIs(t, err, ErrAccountLocked)
	require.NotNil(t, f.users.Stored(u.ID).LockedUntil)
	assert.Equal(t, 1, f.users.LockAccountCalls)

	// even the right password is refused while locked
	_, _, err = f.svc.Login(ctx, u.Email, testPassword, "ip", "ua")
	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Equal(t, 2, f.metrics.AccountLockoutCalls)
}

func TestAuthService_RefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "comptable@peages.bf", domain.RoleComptable)
	ctx := context.Background()

	_, pair, err := f.svc.Login(ctx, u.Email, testPassword, "ip", "ua")
	require.NoError(t, err)

	rotated, err := f.svc.RefreshToken(ctx, pair.RefreshToken, "ip", "ua")
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.True(t, f.tokens.Tokens[pair.RefreshToken].IsRevoked, "old token revoked on rotation")

	_, err = f.svc.RefreshToken(ctx, pair.RefreshToken, "ip", "ua")
	assert.ErrorIs(t, err, ErrRefreshExpired, "reuse of a rotated token")

	_, err = f.svc.RefreshToken(ctx, rotated.RefreshToken, "autre-ip", "ua")
	assert.ErrorIs(t, err, ErrRefreshBinding)

	_, err = f.svc.RefreshToken(ctx, "inconnu", "ip", "ua")
	assert.ErrorIs(t, err, ErrRefreshInvalid)

	_, err = f.svc.RefreshToken(ctx, "", "ip", "ua")
	assert.ErrorIs(t, err, ErrRefreshInvalid)
}

func TestAuthService_RefreshToken_Expired(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "comptable@peages.bf", domain.RoleComptable)
	require.NoError(t, f.tokens.Save(context.Background(), &domain.RefreshToken{
		Token:     "expired",
		UserID:    u.ID,
		IssueAt:   time.Now().Add(-48 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
		IPHash:    "ip",
		UAHash:    "ua",
	}))

	_, err := f.svc.RefreshToken(context.Background(), "expired", "ip", "ua")
	assert.ErrorIs(t, err, ErrRefreshExpired)
}

func TestAuthService_RefreshToken_ConcurrentCallsShareRotation(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "comptable@peages.bf", domain.RoleComptable)
	ctx := context.Background()

	_, pair, err := f.svc.Login(ctx, u.Email, testPassword, "ip", "ua")
	require.NoError(t, err)

	const n = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		tokens = map[string]bool{}
		failed int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := f.svc.RefreshToken(ctx, pair.RefreshToken, "ip", "ua")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !errors.Is(err, ErrRefreshExpired) {
					t.Errorf("unexpected error: %v", err)
				}
				failed++
				return
			}
			tokens[p.RefreshToken] = true
		}()
	}
	wg.Wait()

	// late callers may miss the shared flight and see the revoked token
	assert.Len(t, tokens, 1, "every successful caller got the same pair")
	assert.Less(t, failed, n)
	assert.Equal(t, 1, f.tokens.Active(u.ID))
}

func TestAuthService_Me(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "caissier@peages.bf", domain.RoleCaissier)
	ctx := context.Background()

	user, perms, err := f.svc.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, user.Email)
	assert.Contains(t, perms, domain.PermissionSessionsSell)
	assert.NotContains(t, perms, domain.PermissionSessionsValidate)

	f.users.Stored(u.ID).Actif = false
	_, _, err = f.svc.Me(ctx, u.ID)
	assert.ErrorIs(t, err, ErrAccountDisabled)

	_, _, err = f.svc.Me(ctx, 999)
	assert.Equal(t, http.StatusNotFound, status(err))
}

func TestAuthService_RevokeAndPurge(t *testing.T) {
	f := newAuthFixture(t)
	u := f.addUser(t, "caissier@peages.bf", domain.RoleCaissier)
	ctx := context.Background()

	_, _, err := f.svc.Login(ctx, u.Email, testPassword, "ip", "ua")
	require.NoError(t, err)
	require.NoError(t, f.svc.RevokeAllTokens(ctx, u.ID))
	assert.Zero(t, f.tokens.Active(u.ID))

	require.NoError(t, f.tokens.Save(ctx, &domain.RefreshToken{Token: "old", UserID: u.ID, ExpiresAt: time.Now().Add(-time.Minute)}))
	n, err := f.svc.PurgeExpiredTokens(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 1, f.tokens.PurgeCalls)
}
