package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// HealthStatus is the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // healthy, degraded, unhealthy
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
	Workers map[string]interface{}    `json:"workers,omitempty"`
}

// ComponentCheck is the health of a single dependency.
type ComponentCheck struct {
	Status  string `json:"status"` // up, down, not_configured
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatsReporter exposes worker counters for the health payload.
type StatsReporter func() map[string]interface{}

// HealthChecker probes the engine's dependencies. Redis being down is a
// degradation (dedup and cooldowns fail open); Postgres being down is not,
// nothing can commit without it.
type HealthChecker struct {
	db        *sql.DB
	redis     *redis.Client
	workers   StatsReporter
	startTime time.Time
}

// NewHealthChecker creates a checker. Any dependency can be nil; nil deps
// report "not_configured".
func NewHealthChecker(db *sql.DB, rdb *redis.Client, workers StatsReporter) *HealthChecker {
	return &HealthChecker{db: db, redis: rdb, workers: workers, startTime: time.Now()}
}

// HandleHealth reports dependency health. Always 200; the body carries the
// status so load balancers keep routing to a degraded instance.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]ComponentCheck{
		"postgres": hc.checkPostgres(ctx),
		"redis":    hc.checkRedis(ctx),
	}

	status := HealthStatus{
		Status: overallStatus(checks),
		Uptime: formatUptime(time.Since(hc.startTime)),
		Checks: checks,
	}
	if hc.workers != nil {
		status.Workers = hc.workers()
	}

	respondJSON(w, http.StatusOK, status)
}

func (hc *HealthChecker) checkPostgres(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "not_configured"}
	}
	start := time.Now()
	if err := hc.db.PingContext(ctx); err != nil {
		return ComponentCheck{Status: "down", Message: err.Error()}
	}
	return ComponentCheck{Status: "up", Latency: time.Since(start).Round(time.Millisecond).String()}
}

func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redis == nil {
		return ComponentCheck{Status: "not_configured"}
	}
	start := time.Now()
	if err := hc.redis.Ping(ctx).Err(); err != nil {
		return ComponentCheck{Status: "down", Message: err.Error()}
	}
	return ComponentCheck{Status: "up", Latency: time.Since(start).Round(time.Millisecond).String()}
}

func overallStatus(checks map[string]ComponentCheck) string {
	if c, ok := checks["postgres"]; ok && c.Status == "down" {
		return "unhealthy"
	}
	for _, c := range checks {
		if c.Status == "down" {
			return "degraded"
		}
	}
	return "healthy"
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return d.String()
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	return fmt.Sprintf("%dm%ds", minutes, int(d.Seconds())%60)
}
