package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/app"
	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Secret123!"

// testServer is the full router over a fresh SQLite container
type testServer struct {
	t         *testing.T
	handler   http.Handler
	container *app.Container
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	conf := &config.Config{
		Environment: "test",
		Database:    config.DatabaseConfig{Type: "sqlite", DSN: filepath.Join(dir, "peages.db")},
		Auth: config.AuthConfig{
			JWTSecret:            "a-very-long-test-secret-with-enough-entropy-123",
			AccessTokenDuration:  time.Minute,
			RefreshTokenDuration: time.Hour,
			CookiePath:           "/",
		},
		Security: config.SecurityConfig{
			BcryptCost:        bcrypt.MinCost,
			MaxFailedAttempts: 3,
			LockoutDuration:   time.Minute,
		},
		SMTP:       config.SMTPConfig{Host: "localhost", Port: 1025, From: "test@example.com"},
		Websocket:  config.WebsocketConfig{Enabled: true, BufferSize: 8},
		Accounting: config.AccountingConfig{Decimals: 0},
	}

	container, err := app.NewContainer(conf)
	require.NoError(t, err)
	handler, stop := NewMux(NewHandler(container), conf, container)
	t.Cleanup(func() {
		stop()
		container.Close()
	})
	return &testServer{t: t, handler: handler, container: container}
}

// addUser stores an active user with testPassword / Enregistre un utilisateur actif avec testPassword
func (s *testServer) addUser(email, role string) *domain.User {
	s.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(s.t, err)
	u := &domain.User{Email: email, Password: string(hash), Nom: "Test", Role: role, Actif: true}
	require.NoError(s.t, s.container.UserRepo.Create(context.Background(), u))
	return u
}

// login opens a session and returns a cookie client / Ouvre une session et retourne un client à cookies
func (s *testServer) login(email string) *client {
	s.t.Helper()
	c := &client{s: s}
	rec := c.do(http.MethodPost, "/api/login", map[string]string{"email": email, "password": testPassword})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return c
}

func (s *testServer) loginAs(role string) *client {
	s.t.Helper()
	s.addUser(role+"@peages.bf", role)
	return s.login(role + "@peages.bf")
}

// client replays cookies and echoes the CSRF token like the front-end
type client struct {
	s       *testServer
	cookies map[string]*http.Cookie
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.s.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(c.s.t, err)
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:4321"
	req.Header.Set("User-Agent", "go-test")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if ck, ok := c.cookies["csrf_token"]; ok {
		req.Header.Set(CSRFHeader, ck.Value)
	}

	rec := httptest.NewRecorder()
	c.s.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if c.cookies == nil {
			c.cookies = map[string]*http.Cookie{}
		}
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

// decode unmarshals a response body / Décode un corps de réponse
func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
