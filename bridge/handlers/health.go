package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
)

// HealthStatus represents the health status of the service.
type HealthStatus struct {
	Status       string            `json:"status"`
	Timestamp    string            `json:"timestamp"`
	Uptime       string            `json:"uptime"`
	Dependencies map[string]string `json:"dependencies"`
}

// HealthChecker manages health and readiness checks.
type HealthChecker struct {
	startTime   time.Time
	redisClient *asynq.Client

	readyMu      sync.RWMutex
	ready        bool
	redisHealthy bool
}

// NewHealthChecker creates a health checker and starts its background
// probe loop.
func NewHealthChecker(redisClient *asynq.Client) *HealthChecker {
	hc := &HealthChecker{
		startTime:   time.Now(),
		redisClient: redisClient,
	}
	go hc.startHealthChecks()
	return hc
}

func (hc *HealthChecker) startHealthChecks() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	hc.checkDependencies()
	for range ticker.C {
		hc.checkDependencies()
	}
}

func (hc *HealthChecker) checkDependencies() {
	healthy := hc.checkRedis()

	hc.readyMu.Lock()
	hc.redisHealthy = healthy
	hc.ready = healthy
	hc.readyMu.Unlock()
}

func (hc *HealthChecker) checkRedis() bool {
	if hc.redisClient == nil {
		return false
	}
	return hc.redisClient.Ping() == nil
}

// HealthHandler is the liveness probe: the process is up and serving.
func (hc *HealthChecker) HealthHandler(c echo.Context) error {
	hc.readyMu.RLock()
	redisHealthy := hc.redisHealthy
	hc.readyMu.RUnlock()

	deps := map[string]string{"redis": statusWord(redisHealthy)}
	return c.JSON(http.StatusOK, HealthStatus{
		Status:       "ok",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Uptime:       time.Since(hc.startTime).Round(time.Second).String(),
		Dependencies: deps,
	})
}

// ReadinessHandler is the readiness probe: dependencies are reachable and
// the service can process logins end to end.
func (hc *HealthChecker) ReadinessHandler(c echo.Context) error {
	hc.readyMu.RLock()
	ready := hc.ready
	hc.readyMu.RUnlock()

	if !ready {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func statusWord(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}
