package web

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/apperr"
	"github.com/open-tech-stack/mitic-web-sub002/internal/dto"
	"github.com/open-tech-stack/mitic-web-sub002/internal/service"
	"github.com/open-tech-stack/mitic-web-sub002/internal/service/auth"
)

// setCookie writes an auth cookie with the configured scope / Écrit un cookie avec la portée configurée
func (h *Handler) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration, httpOnly bool) {
	conf := h.container.Config.Auth
	age := int(maxAge.Seconds())
	if maxAge < 0 {
		age = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     conf.CookiePath,
		Domain:   conf.CookieDomain,
		MaxAge:   age,
		HttpOnly: httpOnly,
		Secure:   conf.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// setAuthCookies sets access, refresh and a fresh CSRF token / Positionne accès, refresh et un nouveau jeton CSRF
func (h *Handler) setAuthCookies(w http.ResponseWriter, pair *auth.TokenPair) error {
	conf := h.container.Config.Auth
	h.setCookie(w, "access_token", pair.AccessToken, conf.AccessTokenDuration, true)
	h.setCookie(w, "refresh_token", pair.RefreshToken, conf.RefreshTokenDuration, true)

	csrfToken, err := auth.RandomToken()
	if err != nil {
		return err
	}
	// readable by the front-end so it can echo it in X-CSRF-Token
	h.setCookie(w, "csrf_token", csrfToken, conf.RefreshTokenDuration, false)
	return nil
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	h.setCookie(w, "access_token", "", -1, true)
	h.setCookie(w, "refresh_token", "", -1, true)
	h.setCookie(w, "csrf_token", "", -1, false)
}

// clientHashes binds refresh tokens to the client without storing its IP or agent
func (h *Handler) clientHashes(r *http.Request) (ipHash, uaHash string) {
	digest := func(s string) string {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	}
	ip := getIPWithTrustedProxies(r, h.container.Config.Security.TrustedProxies)
	return digest(ip), digest(r.Header.Get("User-Agent"))
}

// Login authenticates and opens the single active session / Authentifie et ouvre l'unique session active
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginDTOReq
	if !decodeJSON(w, r, &req) {
		return
	}

	ipHash, uaHash := h.clientHashes(r)
	user, pair, err := h.container.AuthSvc.Login(r.Context(), req.Email, req.Password, ipHash, uaHash)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			h.container.Metrics.RecordLoginAttempt("failure")
		case errors.Is(err, service.ErrAccountLocked):
			h.container.Metrics.RecordLoginAttempt("locked")
		case errors.Is(err, service.ErrAccountDisabled):
			h.container.Metrics.RecordLoginAttempt("inactive")
		default:
			h.container.Metrics.RecordLoginAttempt("error")
		}
		writeError(w, r, err)
		return
	}
	h.container.Metrics.RecordLoginAttempt("success")

	if err := h.setAuthCookies(w, pair); err != nil {
		writeError(w, r, apperr.Internal(err))
		return
	}

	_, perms, err := h.container.AuthSvc.Me(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, dto.MeToDTO(user, perms))
}

// RefreshToken rotates the refresh token from cookie or body / Fait tourner le refresh token du cookie ou du corps
// Concurrent calls with the same token share one rotation in the service.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if body, err := io.ReadAll(r.Body); err == nil && len(body) > 0 {
		if !decodeBytes(w, r, body, &req) {
			return
		}
	}
	if req.RefreshToken == "" {
		if cookie, err := r.Cookie("refresh_token"); err == nil {
			req.RefreshToken = cookie.Value
		}
	}

	ipHash, uaHash := h.clientHashes(r)
	pair, err := h.container.AuthSvc.RefreshToken(r.Context(), req.RefreshToken, ipHash, uaHash)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshBinding):
			h.container.Metrics.RecordTokenRefresh("binding_failure")
			h.container.Metrics.RecordTokenBindingFailure()
		case errors.Is(err, service.ErrRefreshExpired):
			h.container.Metrics.RecordTokenRefresh("expired")
		default:
			h.container.Metrics.RecordTokenRefresh("invalid")
		}
		h.clearAuthCookies(w)
		writeError(w, r, err)
		return
	}
	h.container.Metrics.RecordTokenRefresh("success")

	if err := h.setAuthCookies(w, pair); err != nil {
		writeError(w, r, apperr.Internal(err))
		return
	}
	jsonResponse(w, pair)
}

// Me restores the session: profile plus resolved permissions / Restaure la session : profil et permissions résolues
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	user, perms, err := h.container.AuthSvc.Me(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, dto.MeToDTO(user, perms))
}

// Logout revokes every refresh token of the user / Révoque tous les refresh tokens de l'utilisateur
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	if err := h.container.AuthSvc.RevokeAllTokens(r.Context(), userID); err != nil {
		slog.Error("failed to revoke tokens during logout", "user_id", userID, "err", err)
		writeError(w, r, err)
		return
	}
	h.clearAuthCookies(w)
	messageResponse(w, "Déconnexion réussie")
}

// ChangePassword changes own password and closes sessions / Change son mot de passe et ferme les sessions
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangePasswordDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, _ := UserIDFromContext(r.Context())
	if err := h.container.PasswordSvc.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	h.clearAuthCookies(w)
	messageResponse(w, "Mot de passe modifié. Veuillez vous reconnecter.")
}

// RequestPasswordReset always answers the same message to prevent enumeration
// RequestPasswordReset répond toujours le même message pour éviter l'énumération
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.container.PasswordSvc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		slog.Error("password reset request failed", "err", err)
	}
	messageResponse(w, "Si un compte existe pour cette adresse, un lien de réinitialisation a été envoyé.")
}

// ResetPassword completes a reset or an account activation / Termine une réinitialisation ou une activation
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.container.PasswordSvc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	messageResponse(w, "Mot de passe défini. Vous pouvez maintenant vous connecter.")
}
