package web

import (
	"context"

	"github.com/open-tech-stack/mitic-web-sub002/internal/service/auth"
)

// ContextKey avoids collisions with other packages' context keys
// ContextKey évite les collisions avec les clés de contexte d'autres packages
type ContextKey string

const (
	// ClaimsContextKey holds validated JWT claims / Contient les claims JWT validés
	ClaimsContextKey = ContextKey("claims")
	// UserIDContextKey holds the authenticated user id / Contient l'id de l'utilisateur authentifié
	UserIDContextKey    = ContextKey("user_id")
	requestIDContextKey = ContextKey("request_id")
)

// UserIDFromContext returns the authenticated user id / Retourne l'id de l'utilisateur authentifié
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDContextKey).(int64)
	return id, ok
}

// ClaimsFromContext returns JWT claims / Retourne les claims JWT
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.Claims)
	return claims, ok
}

// GetRequestID extracts request ID from context / Extrait l'ID de la requête du contexte
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDContextKey).(string); ok {
		return requestID
	}
	return ""
}
