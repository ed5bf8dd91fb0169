// Package metrics exposes the Prometheus collectors of the toll back-office.
// Package metrics expose les collecteurs Prometheus du back-office péage.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name / Préfixe de chaque métrique
const Namespace = "peages"

// Metrics holds all Prometheus metric collectors / Contient tous les collecteurs de métriques Prometheus
type Metrics struct {
	// auth
	LoginAttempts   *prometheus.CounterVec
	UsersCreated    prometheus.Counter
	TokenRefreshes  *prometheus.CounterVec
	AccountLockouts prometheus.Counter

	// http
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ActiveConnections   prometheus.Gauge

	// caisse and comptabilité
	TicketsSold        *prometheus.CounterVec
	SessionsCaisse     *prometheus.CounterVec
	Abonnements        *prometheus.CounterVec
	EcrituresGenerated *prometheus.CounterVec
	WebsocketClients   prometheus.Gauge

	// security
	RateLimitHits     *prometheus.CounterVec
	CSRFFailures      prometheus.Counter
	InvalidTokens     prometheus.Counter
	TokenBindingFails prometheus.Counter
	PermissionDenials *prometheus.CounterVec

	// system
	DatabaseConnections prometheus.Gauge
	BackgroundTasks     *prometheus.GaugeVec
	JobRuns             *prometheus.CounterVec
	JobDuration         *prometheus.HistogramVec
}

// NewMetrics registers every collector on reg, the default registerer when nil
// NewMetrics enregistre les collecteurs sur reg, le registre par défaut si nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	counter := func(subsystem, name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help})
	}
	counterVec := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
	}
	gauge := func(subsystem, name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help})
	}

	return &Metrics{
		LoginAttempts:   counterVec("auth", "login_attempts_total", "Login attempts by status (success, failure, locked, inactive, error)", "status"),
		UsersCreated:    counter("auth", "users_created_total", "Back-office accounts created by administrators"),
		TokenRefreshes:  counterVec("auth", "token_refreshes_total", "Refresh token rotations by status", "status"),
		AccountLockouts: counter("auth", "account_lockouts_total", "Accounts locked after repeated failed logins"),

		HTTPRequestsTotal: counterVec("http", "requests_total", "HTTP requests by method, route pattern and status code", "method", "path", "status_code"),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern",
			// xlsx exports sit in the upper buckets
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "path"}),
		ActiveConnections: gauge("http", "active_connections", "HTTP requests currently being served"),

		TicketsSold:        counterVec("caisse", "tickets_sold_total", "Tickets sold by payment mode", "mode"),
		SessionsCaisse:     counterVec("caisse", "sessions_total", "Cash session transitions (opened, closed, validated)", "event"),
		Abonnements:        counterVec("abonnement", "events_total", "Subscription events (created, renewed, suspended, expired, terminated)", "event"),
		EcrituresGenerated: counterVec("compta", "ecritures_total", "Journal entries generated by accounting operation", "operation"),
		WebsocketClients:   gauge("events", "websocket_clients", "Connected change-feed clients"),

		RateLimitHits:     counterVec("security", "rate_limit_hits_total", "Requests refused by a rate limiter", "endpoint"),
		CSRFFailures:      counter("security", "csrf_failures_total", "Mutating requests with a missing or wrong CSRF token"),
		InvalidTokens:     counter("security", "invalid_tokens_total", "Rejected access tokens"),
		TokenBindingFails: counter("security", "token_binding_failures_total", "Refresh tokens presented from another IP or user agent"),
		PermissionDenials: counterVec("security", "permission_denials_total", "Requests refused for a missing permission", "permission"),

		DatabaseConnections: gauge("db", "open_connections", "Open connections in the database pool"),
		BackgroundTasks: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "jobs", Name: "scheduled",
			Help: "Whether a periodic job is scheduled (1) or stopped (0)",
		}, []string{"job"}),
		JobRuns: counterVec("jobs", "runs_total", "Periodic job executions by outcome", "job", "outcome"),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: "jobs", Name: "duration_seconds",
			Help:    "Periodic job execution time",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"job"}),
	}
}

// RecordLoginAttempt counts a login by outcome / Compte une connexion par résultat
func (m *Metrics) RecordLoginAttempt(status string) {
	m.LoginAttempts.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordUserCreated() {
	m.UsersCreated.Inc()
}

// RecordTokenRefresh counts a rotation: success, invalid, expired or binding_failure
func (m *Metrics) RecordTokenRefresh(status string) {
	m.TokenRefreshes.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordAccountLockout() {
	m.AccountLockouts.Inc()
}

// RecordTicketSold counts a sale by payment mode / Compte une vente par mode de paiement
func (m *Metrics) RecordTicketSold(mode string) {
	m.TicketsSold.WithLabelValues(mode).Inc()
}

// RecordSessionEvent counts a cash session transition / Compte une transition de session
func (m *Metrics) RecordSessionEvent(event string) {
	m.SessionsCaisse.WithLabelValues(event).Inc()
}

// RecordAbonnementEvent counts n subscription events / Compte n événements d'abonnement
func (m *Metrics) RecordAbonnementEvent(event string, n int) {
	m.Abonnements.WithLabelValues(event).Add(float64(n))
}

// RecordEcriture counts a generated journal entry / Compte une écriture générée
func (m *Metrics) RecordEcriture(operation string) {
	m.EcrituresGenerated.WithLabelValues(operation).Inc()
}

// SetWebsocketClients sets connected feed clients / Positionne le nombre de clients du flux
func (m *Metrics) SetWebsocketClients(n int) {
	m.WebsocketClients.Set(float64(n))
}

// RecordHTTPRequest counts a request under its route pattern / Compte une requête sous son motif de route
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusLabel(statusCode)).Inc()
}

func (m *Metrics) RecordHTTPDuration(method, path string, duration time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) IncrementActiveConnections() {
	m.ActiveConnections.Inc()
}

func (m *Metrics) DecrementActiveConnections() {
	m.ActiveConnections.Dec()
}

func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) RecordCSRFFailure() {
	m.CSRFFailures.Inc()
}

func (m *Metrics) RecordInvalidToken() {
	m.InvalidTokens.Inc()
}

func (m *Metrics) RecordTokenBindingFailure() {
	m.TokenBindingFails.Inc()
}

// RecordPermissionDenial counts a refused permission check / Compte un refus de permission
func (m *Metrics) RecordPermissionDenial(permission string) {
	m.PermissionDenials.WithLabelValues(permission).Inc()
}

// UpdateDatabaseConnections mirrors sql.DBStats.OpenConnections / Reflète sql.DBStats.OpenConnections
func (m *Metrics) UpdateDatabaseConnections(count int) {
	m.DatabaseConnections.Set(float64(count))
}

// SetBackgroundTaskStatus flags a job as scheduled or stopped / Marque une tâche planifiée ou arrêtée
func (m *Metrics) SetBackgroundTaskStatus(job string, running bool) {
	v := 0.0
	if running {
		v = 1
	}
	m.BackgroundTasks.WithLabelValues(job).Set(v)
}

// ObserveJobRun records one job execution / Enregistre une exécution de tâche
func (m *Metrics) ObserveJobRun(job string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.JobRuns.WithLabelValues(job, outcome).Inc()
	m.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// statusLabel keeps real codes and folds anything out of range
func statusLabel(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code)
}
