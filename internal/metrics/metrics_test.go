package metrics_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMetrics(t *testing.T) (*metrics.Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return metrics.NewMetrics(reg), reg
}

func TestNewMetrics_Namespaced(t *testing.T) {
	m, reg := newMetrics(t)
	m.RecordLoginAttempt("success")
	m.RecordHTTPRequest("GET", "GET /api/peages", 200)
	m.UpdateDatabaseConnections(1)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
	for _, f := range families {
		assert.True(t, strings.HasPrefix(f.GetName(), metrics.Namespace+"_"), f.GetName())
	}
}

func TestNewMetrics_TwoRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		newMetrics(t)
		newMetrics(t)
	}, "each container owns its registry")
}

func TestCounters(t *testing.T) {
	m, _ := newMetrics(t)

	tests := []struct {
		name    string
		record  func()
		counter prometheus.Collector
		want    float64
	}{
		{"login failure", func() { m.RecordLoginAttempt("failure"); m.RecordLoginAttempt("failure") }, m.LoginAttempts.WithLabelValues("failure"), 2},
		{"user created", m.RecordUserCreated, m.UsersCreated, 1},
		{"refresh", func() { m.RecordTokenRefresh("binding_failure") }, m.TokenRefreshes.WithLabelValues("binding_failure"), 1},
		{"lockout", m.RecordAccountLockout, m.AccountLockouts, 1},
		{"ticket", func() { m.RecordTicketSold("ESPECES") }, m.TicketsSold.WithLabelValues("ESPECES"), 1},
		{"session", func() { m.RecordSessionEvent("validated") }, m.SessionsCaisse.WithLabelValues("validated"), 1},
		{"abonnements expired", func() { m.RecordAbonnementEvent("expired", 3) }, m.Abonnements.WithLabelValues("expired"), 3},
		{"ecriture", func() { m.RecordEcriture("VENTE_TICKETS") }, m.EcrituresGenerated.WithLabelValues("VENTE_TICKETS"), 1},
		{"rate limit", func() { m.RecordRateLimitHit("/api/auth/login") }, m.RateLimitHits.WithLabelValues("/api/auth/login"), 1},
		{"csrf", m.RecordCSRFFailure, m.CSRFFailures, 1},
		{"invalid token", m.RecordInvalidToken, m.InvalidTokens, 1},
		{"binding", m.RecordTokenBindingFailure, m.TokenBindingFails, 1},
		{"permission", func() { m.RecordPermissionDenial("pcg:write") }, m.PermissionDenials.WithLabelValues("pcg:write"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.record()
			assert.Equal(t, tt.want, testutil.ToFloat64(tt.counter))
		})
	}
}

func TestGauges(t *testing.T) {
	m, _ := newMetrics(t)

	m.IncrementActiveConnections()
	m.IncrementActiveConnections()
	m.DecrementActiveConnections()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveConnections))

	m.SetWebsocketClients(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.WebsocketClients))

	m.UpdateDatabaseConnections(10)
	assert.Equal(t, 10.0, testutil.ToFloat64(m.DatabaseConnections))

	m.SetBackgroundTaskStatus("token_purge", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackgroundTasks.WithLabelValues("token_purge")))
	m.SetBackgroundTaskStatus("token_purge", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BackgroundTasks.WithLabelValues("token_purge")))
}

func TestRecordHTTPRequest_StatusLabels(t *testing.T) {
	m, _ := newMetrics(t)

	tests := []struct {
		code int
		want string
	}{
		{200, "200"},
		{204, "204"},
		{409, "409"},
		{504, "504"},
		{42, "unknown"},
		{700, "unknown"},
	}
	for _, tt := range tests {
		m.RecordHTTPRequest("POST", "POST /api/sessions-caisse", tt.code)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "POST /api/sessions-caisse", tt.want)), "code %d", tt.code)
		m.HTTPRequestsTotal.Reset()
	}
}

func TestRecordHTTPDuration(t *testing.T) {
	m, _ := newMetrics(t)
	m.RecordHTTPDuration("GET", "GET /api/pcg/export", 3*time.Second)

	expected := `
# HELP peages_http_request_duration_seconds HTTP request latency by method and route pattern
# TYPE peages_http_request_duration_seconds histogram
peages_http_request_duration_seconds_bucket{method="GET",path="GET /api/pcg/export",le="0.01"} 0
peages_http_request_duration_seconds_bucket{method="GET",path="GET /api/pcg/export",le="0.05"} 0
peages_http_request_duration_seconds_bucket{method="GET",path="GET /api/pcg/export",le="0.1"} 0
peages_http_request_duration_seconds_bucket{method="GET",path="GET /api/pcg/export",le="0.25"} 0
peages_http_request_duration_seconds_bucket{method="GET",path="GET /api/pcg/export",le="0.5"} 0
peages_http_request_duration_seconds_bucket{method="GET",path="GET /api/pcg/export",le="1"} 0
peages_http_request_duration_seconds_bucket{method="GET",path="GET /api/pcg/export",le="2.5"} 0
peages_http_request_duration_seconds_bucket{method="GET",path="GET /api/pcg/export",le="5"} 1
peages_http_request_duration_seconds_bucket{method="GET",path="GET /api/pcg/export",le="10"} 1
peages_http_request_duration_seconds_bucket{method="GET",path="GET /api/pcg/export",le="30"} 1
peages_http_request_duration_seconds_bucket{method="GET",path="GET /api/pcg/export",le="+Inf"} 1
peages_http_request_duration_seconds_sum{method="GET",path="GET /api/pcg/export"} 3
peages_http_request_duration_seconds_count{method="GET",path="GET /api/pcg/export"} 1
`
	err := testutil.CollectAndCompare(m.HTTPRequestDuration, strings.NewReader(expected), "peages_http_request_duration_seconds")
	assert.NoError(t, err)
}

func TestObserveJobRun(t *testing.T) {
	m, _ := newMetrics(t)

	m.ObserveJobRun("abonnement_expiry", 20*time.Millisecond, nil)
	m.ObserveJobRun("abonnement_expiry", time.Second, errors.New("db locked"))
	m.ObserveJobRun("abonnement_expiry", 30*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("abonnement_expiry", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("abonnement_expiry", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.JobDuration, "peages_jobs_duration_seconds"))
}
