package web

import (
	"net/http"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/app"
	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux creates and configures the HTTP router; stop releases the rate limiters
// NewMux crée et configure le routeur HTTP ; stop libère les limiteurs
func NewMux(h *Handler, conf *config.Config, container *app.Container) (handler http.Handler, stop func()) {
	mux := http.NewServeMux()
	mw := NewMiddleware(conf, container.Metrics, container.UserSvc, container.AuthSvc)

	// authed requires a valid session / authed exige une session valide
	authed := func(f http.HandlerFunc) http.Handler {
		return chain(f, mw.Auth, mw.CSRF, mw.RateLimitByUser)
	}
	// can additionally requires one permission / can exige en plus une permission
	can := func(perm domain.Permission, f http.HandlerFunc) http.Handler {
		return chain(f, mw.Auth, mw.CSRF, mw.RateLimitByUser, mw.RequirePermission(perm))
	}

	// Health checks stay open for load balancers
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /readiness", h.ReadinessCheck)

	metricsHandler := promhttp.HandlerFor(container.Registry, promhttp.HandlerOpts{Registry: container.Registry})
	mux.Handle("GET /metrics", chain(metricsHandler.ServeHTTP, mw.Auth, mw.RequirePermission(domain.PermissionStatsRead)))

	// Authentication
	mux.Handle("POST /api/login", chain(h.Login, mw.RateLimitStrict))
	mux.Handle("POST /api/request-password-reset", chain(h.RequestPasswordReset, mw.RateLimitStrict))
	mux.Handle("POST /api/reset-password", chain(h.ResetPassword, mw.RateLimitStrict))
	// no Auth: the access token may already be expired
	mux.Handle("POST /api/refresh", chain(h.RefreshToken, mw.CSRF, mw.RateLimitStrict))
	mux.Handle("POST /api/logout", authed(h.Logout))
	mux.Handle("GET /api/me", authed(h.Me))
	mux.Handle("POST /api/me/password", authed(h.ChangePassword))
	mux.Handle("GET /api/ws", authed(h.Events))

	// Chart of accounts
	pcg := crud[domain.Pcg]{container.PcgSvc.Get, container.PcgSvc.Create, container.PcgSvc.Update, container.PcgSvc.Delete}
	mux.Handle("GET /api/pcg", can(domain.PermissionPcgRead, h.ListPcg))
	mux.Handle("GET /api/pcg/tree", can(domain.PermissionPcgRead, h.PcgTree))
	mux.Handle("GET /api/pcg/export", can(domain.PermissionPcgRead, h.ExportPcg))
	mux.Handle("POST /api/pcg/import", can(domain.PermissionPcgWrite, h.ImportPcg))
	mux.Handle("POST /api/pcg", can(domain.PermissionPcgWrite, pcg.Create))
	mux.Handle("GET /api/pcg/{id}", can(domain.PermissionPcgRead, pcg.Get))
	mux.Handle("PUT /api/pcg/{id}", can(domain.PermissionPcgWrite, pcg.Update))
	mux.Handle("DELETE /api/pcg/{id}", can(domain.PermissionPcgDelete, pcg.Delete))

	comptes := crud[domain.Compte]{container.CompteSvc.Get, container.CompteSvc.Create, container.CompteSvc.Update, container.CompteSvc.Delete}
	mux.Handle("GET /api/comptes", can(domain.PermissionComptesRead, h.ListComptes))
	mux.Handle("POST /api/comptes", can(domain.PermissionComptesWrite, comptes.Create))
	mux.Handle("GET /api/comptes/{id}", can(domain.PermissionComptesRead, comptes.Get))
	mux.Handle("PUT /api/comptes/{id}", can(domain.PermissionComptesWrite, comptes.Update))
	mux.Handle("DELETE /api/comptes/{id}", can(domain.PermissionComptesDelete, comptes.Delete))

	// Organisation
	uo := crud[domain.OrganizationalUnit]{container.UOSvc.Get, container.UOSvc.Create, container.UOSvc.Update, container.UOSvc.Delete}
	mux.Handle("GET /api/uo", can(domain.PermissionUORead, h.ListUO))
	mux.Handle("GET /api/uo/tree", can(domain.PermissionUORead, h.UOTree))
	mux.Handle("POST /api/uo", can(domain.PermissionUOWrite, uo.Create))
	mux.Handle("GET /api/uo/{id}", can(domain.PermissionUORead, uo.Get))
	mux.Handle("PUT /api/uo/{id}", can(domain.PermissionUOWrite, uo.Update))
	mux.Handle("POST /api/uo/{id}/move", can(domain.PermissionUOWrite, h.MoveUO))
	mux.Handle("DELETE /api/uo/{id}", can(domain.PermissionUODelete, uo.Delete))

	peages := crud[domain.Peage]{container.PeageSvc.Get, container.PeageSvc.Create, container.PeageSvc.Update, container.PeageSvc.Delete}
	mux.Handle("GET /api/peages", can(domain.PermissionPeagesRead, h.ListPeages))
	mux.Handle("POST /api/peages", can(domain.PermissionPeagesWrite, peages.Create))
	mux.Handle("GET /api/peages/{id}", can(domain.PermissionPeagesRead, peages.Get))
	mux.Handle("PUT /api/peages/{id}", can(domain.PermissionPeagesWrite, peages.Update))
	mux.Handle("DELETE /api/peages/{id}", can(domain.PermissionPeagesDelete, peages.Delete))

	periodicites := crud[domain.Periodicite]{container.PeriodiciteSvc.Get, container.PeriodiciteSvc.Create, container.PeriodiciteSvc.Update, container.PeriodiciteSvc.Delete}
	mux.Handle("GET /api/periodicites", can(domain.PermissionPeriodicitesRead, h.ListPeriodicites))
	mux.Handle("POST /api/periodicites", can(domain.PermissionPeriodicitesWrite, periodicites.Create))
	mux.Handle("GET /api/periodicites/{id}", can(domain.PermissionPeriodicitesRead, periodicites.Get))
	mux.Handle("PUT /api/periodicites/{id}", can(domain.PermissionPeriodicitesWrite, periodicites.Update))
	mux.Handle("DELETE /api/periodicites/{id}", can(domain.PermissionPeriodicitesDelete, periodicites.Delete))

	// Subscriptions
	abonnes := crud[domain.Abonne]{container.AbonneSvc.Get, container.AbonneSvc.Create, container.AbonneSvc.Update, container.AbonneSvc.Delete}
	mux.Handle("GET /api/abonnes", can(domain.PermissionAbonnesRead, h.ListAbonnes))
	mux.Handle("POST /api/abonnes", can(domain.PermissionAbonnesWrite, abonnes.Create))
	mux.Handle("GET /api/abonnes/{id}", can(domain.PermissionAbonnesRead, abonnes.Get))
	mux.Handle("PUT /api/abonnes/{id}", can(domain.PermissionAbonnesWrite, abonnes.Update))
	mux.Handle("DELETE /api/abonnes/{id}", can(domain.PermissionAbonnesDelete, abonnes.Delete))

	tarifs := crud[domain.AbonnementTarif]{container.TarifSvc.Get, container.TarifSvc.Create, container.TarifSvc.Update, container.TarifSvc.Delete}
	mux.Handle("GET /api/tarifs", can(domain.PermissionTarifsRead, h.ListTarifs))
	mux.Handle("POST /api/tarifs", can(domain.PermissionTarifsWrite, tarifs.Create))
	mux.Handle("GET /api/tarifs/{id}", can(domain.PermissionTarifsRead, tarifs.Get))
	mux.Handle("PUT /api/tarifs/{id}", can(domain.PermissionTarifsWrite, tarifs.Update))
	mux.Handle("DELETE /api/tarifs/{id}", can(domain.PermissionTarifsDelete, tarifs.Delete))

	abonnements := container.AbonnementSvc
	mux.Handle("GET /api/abonnements", can(domain.PermissionAbonnementsRead, h.ListAbonnements))
	mux.Handle("POST /api/abonnements", can(domain.PermissionAbonnementsWrite, h.Souscrire))
	mux.Handle("GET /api/abonnements/{id}", can(domain.PermissionAbonnementsRead, h.GetAbonnement))
	mux.Handle("POST /api/abonnements/{id}/renouveler", can(domain.PermissionAbonnementsWrite, abonnementAction(abonnements.Renouveler)))
	mux.Handle("POST /api/abonnements/{id}/suspendre", can(domain.PermissionAbonnementsManage, abonnementAction(abonnements.Suspendre)))
	mux.Handle("POST /api/abonnements/{id}/reactiver", can(domain.PermissionAbonnementsManage, abonnementAction(abonnements.Reactiver)))
	mux.Handle("POST /api/abonnements/{id}/resilier", can(domain.PermissionAbonnementsManage, abonnementAction(abonnements.Resilier)))
	mux.Handle("POST /api/abonnements/{id}/passages", can(domain.PermissionAbonnementsManage, abonnementAction(abonnements.EnregistrerPassage)))

	// Cash sessions
	mux.Handle("GET /api/sessions-caisse", can(domain.PermissionSessionsRead, h.ListSessions))
	mux.Handle("POST /api/sessions-caisse", can(domain.PermissionSessionsOpen, h.OuvrirSession))
	mux.Handle("GET /api/sessions-caisse/current", can(domain.PermissionSessionsOpen, h.CurrentSession))
	mux.Handle("GET /api/sessions-caisse/{id}", can(domain.PermissionSessionsRead, h.GetSession))
	mux.Handle("GET /api/sessions-caisse/{id}/tickets", can(domain.PermissionSessionsRead, h.SessionTickets))
	mux.Handle("POST /api/sessions-caisse/{id}/tickets", can(domain.PermissionSessionsSell, h.Vendre))
	mux.Handle("POST /api/sessions-caisse/{id}/fermer", can(domain.PermissionSessionsClose, h.FermerSession))
	mux.Handle("POST /api/sessions-caisse/{id}/valider", can(domain.PermissionSessionsValidate, h.ValiderSession))
	mux.Handle("GET /api/sessions-caisse/{id}/export", can(domain.PermissionSessionsRead, h.ExportSession))

	// Accounting
	schemas := crud[domain.SchemaComptable]{container.SchemaSvc.Get, container.SchemaSvc.Create, container.SchemaSvc.Update, container.SchemaSvc.Delete}
	mux.Handle("GET /api/schemas-comptables", can(domain.PermissionSchemasRead, h.ListSchemas))
	mux.Handle("POST /api/schemas-comptables", can(domain.PermissionSchemasWrite, schemas.Create))
	mux.Handle("GET /api/schemas-comptables/{id}", can(domain.PermissionSchemasRead, schemas.Get))
	mux.Handle("PUT /api/schemas-comptables/{id}", can(domain.PermissionSchemasWrite, schemas.Update))
	mux.Handle("DELETE /api/schemas-comptables/{id}", can(domain.PermissionSchemasDelete, schemas.Delete))
	mux.Handle("POST /api/schemas-comptables/{id}/simuler", can(domain.PermissionSchemasRead, h.SimulerSchema))
	mux.Handle("GET /api/ecritures", can(domain.PermissionEcrituresRead, h.ListEcritures))
	mux.Handle("GET /api/ecritures/{id}", can(domain.PermissionEcrituresRead, h.GetEcriture))
	mux.Handle("GET /api/dashboard", can(domain.PermissionStatsRead, h.Dashboard))

	// Administration
	mux.Handle("GET /api/permissions", can(domain.PermissionRolesRead, h.ListPermissions))
	mux.Handle("GET /api/roles", can(domain.PermissionRolesRead, h.ListRoles))
	mux.Handle("POST /api/roles", can(domain.PermissionRolesWrite, h.CreateRole))
	mux.Handle("GET /api/roles/{name}", can(domain.PermissionRolesRead, h.GetRole))
	mux.Handle("PUT /api/roles/{name}", can(domain.PermissionRolesWrite, h.UpdateRole))
	mux.Handle("DELETE /api/roles/{name}", can(domain.PermissionRolesWrite, h.DeleteRole))
	mux.Handle("GET /api/admin/users", can(domain.PermissionUsersRead, h.ListUsers))
	mux.Handle("POST /api/admin/users", can(domain.PermissionUsersWrite, h.CreateUser))
	mux.Handle("GET /api/admin/users/{id}", can(domain.PermissionUsersRead, h.GetUser))
	mux.Handle("PATCH /api/admin/users/{id}", can(domain.PermissionUsersWrite, h.UpdateUser))
	mux.Handle("DELETE /api/admin/users/{id}", can(domain.PermissionUsersDelete, h.DeleteUser))

	// Global middlewares - applied in reverse order / Middlewares globaux appliqués en ordre inverse
	handler = mux
	handler = mw.MetricsMiddleware(handler) // Metrics first to capture everything
	handler = mw.RateLimit(handler)
	handler = mw.SecurityHeaders(handler)
	handler = mw.Cors(handler)
	handler = Timeout(30 * time.Second)(handler)
	handler = Logging(handler)   // Logging includes request ID
	handler = RequestID(handler) // RequestID first - generates ID for all middleware

	return handler, mw.Stop
}

// chain applies middleware to HTTP handler / Applique les middlewares au gestionnaire HTTP
func chain(f http.HandlerFunc, middlewares ...func(http.Handler) http.Handler) http.Handler {
	var handler http.Handler = f

	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	return handler
}
