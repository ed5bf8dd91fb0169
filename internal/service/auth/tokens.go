// Package auth issues and verifies the API access tokens.
// Package auth émet et vérifie les tokens d'accès de l'API.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrWeakKey is returned for signing keys under 32 bytes / Clé de signature trop courte
var ErrWeakKey = errors.New("JWT key too weak")

const (
	// Issuer is the iss claim of access tokens / Émetteur des tokens d'accès
	Issuer = "gestion-peages"
	// Audience is the aud claim, the back-office API / Audience, l'API back-office
	Audience = "peages-api"

	minKeyLength = 32
	leeway       = 5 * time.Second
)

// Claims are the access token claims / Claims du token d'accès
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// UserID parses the subject claim / Lit l'identifiant utilisateur du sujet
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return id, nil
}

// TokenPair is what a login or refresh hands back / Paire rendue par login ou refresh
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Signer signs HS256 access tokens and verifies them / Signe et vérifie les tokens HS256
type Signer struct {
	key       []byte
	accessTTL time.Duration
	now       func() time.Time
	parser    *jwt.Parser
}

// NewSigner refuses keys shorter than 32 bytes / Refuse les clés de moins de 32 octets
func NewSigner(secret string, accessTTL time.Duration) (*Signer, error) {
	if len(secret) < minKeyLength {
		return nil, ErrWeakKey
	}
	if accessTTL <= 0 {
		return nil, fmt.Errorf("access token duration must be positive, got %s", accessTTL)
	}
	s := &Signer{key: []byte(secret), accessTTL: accessTTL, now: time.Now}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// Issue creates an access token and a fresh opaque refresh token
// Issue crée un token d'accès et un nouveau refresh token opaque
func (s *Signer) Issue(userID int64, role string) (*TokenPair, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}
	refresh, err := RandomToken()
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, issuer, audience and lifetime / Vérifie signature, émetteur, audience et validité
func (s *Signer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	if _, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}); err != nil {
		return nil, err
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: %v", jwt.ErrTokenInvalidClaims, err)
	}
	return claims, nil
}

// RandomToken returns 32 random bytes, base64url encoded, for refresh and CSRF cookies
// RandomToken retourne 32 octets aléatoires encodés en base64url
func RandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
