package web

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"golang.org/x/time/rate"
)

// visitorTTL is how long an idle visitor keeps its limiter / Durée de conservation d'un visiteur inactif
const visitorTTL = 3 * time.Minute

// RateLimiter keeps one token bucket per visitor (IP hash or user id)
// RateLimiter conserve un seau de jetons par visiteur (hash d'IP ou id utilisateur)
type RateLimiter struct {
	visitors map[string]*Visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	cancel   context.CancelFunc
}

// Visitor is one rate-limited client / Client soumis à limitation
type Visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates limiter and starts idle visitor cleanup / Crée le limiteur et lance le nettoyage
func NewRateLimiter(ctx context.Context, rps float64, burst int) *RateLimiter {
	cleanupCtx, cancel := context.WithCancel(ctx)
	rl := &RateLimiter{
		visitors: make(map[string]*Visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		cancel:   cancel,
	}
	go rl.cleanupVisitors(cleanupCtx)
	return rl
}

// Stop ends the cleanup goroutine / Arrête la goroutine de nettoyage
func (rl *RateLimiter) Stop() {
	rl.cancel()
}

// Allow consumes one token for key / Consomme un jeton pour la clé
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getVisitor(key).Allow()
}

func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		v = &Visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) cleanupVisitors(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if time.Since(v.lastSeen) > visitorTTL {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// getIPWithTrustedProxies only trusts X-Forwarded-For / X-Real-IP when RemoteAddr is a configured proxy
// getIPWithTrustedProxies ne fait confiance aux en-têtes de proxy que si RemoteAddr est un proxy configuré
func getIPWithTrustedProxies(r *http.Request, trustedProxies []string) string {
	remoteIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteIP = r.RemoteAddr
	}

	trusted := false
	for _, p := range trustedProxies {
		if remoteIP == p {
			trusted = true
			break
		}
	}
	if !trusted {
		return remoteIP
	}

	// X-Forwarded-For is "client, proxy1, proxy2"
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		clientIP := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if net.ParseIP(clientIP) != nil {
			return clientIP
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" && net.ParseIP(realIP) != nil {
		return realIP
	}

	return remoteIP
}

// hashIP avoids keeping raw addresses in memory / Évite de garder les adresses brutes en mémoire
func hashIP(ip string) string {
	h := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(h[:])
}

func (mw *Middleware) clientKey(r *http.Request) string {
	return hashIP(getIPWithTrustedProxies(r, mw.conf.Security.TrustedProxies))
}

// RateLimit applies the global per-IP limit / Applique la limite globale par IP
func (mw *Middleware) RateLimit(next http.Handler) http.Handler {
	return mw.limit(func() *RateLimiter { return mw.globalLimiter }, "global", mw.clientKey, next)
}

// RateLimitStrict guards authentication endpoints / Protège les points d'authentification
func (mw *Middleware) RateLimitStrict(next http.Handler) http.Handler {
	return mw.limit(func() *RateLimiter { return mw.strictLimiter }, "strict", mw.clientKey, next)
}

// RateLimitByUser limits per authenticated user, per IP otherwise / Limite par utilisateur authentifié, sinon par IP
func (mw *Middleware) RateLimitByUser(next http.Handler) http.Handler {
	key := func(r *http.Request) string {
		if userID, ok := UserIDFromContext(r.Context()); ok {
			return fmt.Sprintf("user_%d", userID)
		}
		return mw.clientKey(r)
	}
	return mw.limit(func() *RateLimiter { return mw.userLimiter }, "user", key, next)
}

func (mw *Middleware) limit(limiter func() *RateLimiter, endpoint string, key func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := limiter()
		if !mw.conf.RateLimiter.Enabled || l == nil {
			next.ServeHTTP(w, r)
			return
		}
		if !l.Allow(key(r)) {
			mw.metrics.RecordRateLimitHit(endpoint)
			sendRateLimitError(w, 60)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sendRateLimitError writes 429 with Retry-After / Écrit 429 avec Retry-After
func sendRateLimitError(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(errorBody{
		Error: "Trop de requêtes. Veuillez réessayer dans quelques instants.",
		Code:  string(apperr.FromStatus(http.StatusTooManyRequests)),
	})
}
