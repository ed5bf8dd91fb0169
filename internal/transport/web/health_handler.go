package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HealthResponse is the body of health endpoints / Corps des points de santé
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
}

var startTime = time.Now()

// Version is set at build time with -ldflags / Positionnée à la compilation via -ldflags
var Version = "dev"

// HealthCheck reports liveness without touching dependencies / Indique la vivacité sans toucher aux dépendances
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   Version,
		Uptime:    formatUptime(time.Since(startTime)),
	})
}

// ReadinessCheck verifies database and cache / Vérifie la base et le cache
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	healthy := true

	var one int
	if err := h.container.DB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		checks["database"] = "error"
		healthy = false
	}

	if h.container.Config.Redis.Enabled {
		checks["redis"] = "ok"
		if err := h.container.PingCache(ctx); err != nil {
			// permission lookups fall back to the database, traffic can still be served
			checks["redis"] = "degraded"
		}
	}

	resp := HealthResponse{Status: "ok", Timestamp: time.Now().UTC(), Checks: checks}
	status := http.StatusOK
	if !healthy {
		resp.Status = "error"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// formatUptime renders "1d 5h 23m", "2h 15m 30s" or "45s" / Affiche la durée de fonctionnement
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	units := []struct {
		v    int64
		name string
	}{
		{secs / 86400, "d"},
		{secs % 86400 / 3600, "h"},
		{secs % 3600 / 60, "m"},
		{secs % 60, "s"},
	}

	// skip leading zero units, then show at most three
	for len(units) > 1 && units[0].v == 0 {
		units = units[1:]
	}
	if len(units) > 3 {
		units = units[:3]
	}

	parts := make([]string, 0, len(units))
	for _, u := range units {
		if u.v > 0 || len(parts) == 0 && u.name == "s" {
			parts = append(parts, strconv.FormatInt(u.v, 10)+u.name)
		}
	}
	return strings.Join(parts, " ")
}
