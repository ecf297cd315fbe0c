package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-vending/internal/vendingconfig"
)

var draining atomic.Bool

// SetReady toggles readiness. The server marks itself not ready while shutting down.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// RedisPinger probes the optional Redis dependency.
type RedisPinger interface {
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// ScheduleSource exposes the active vending snapshot.
type ScheduleSource interface {
	Current() *vendingconfig.Snapshot
}

// RedisChecker pings a go-redis client.
type RedisChecker struct {
	Client *redis.Client
}

// PingRedis issues PING bounded by timeout.
func (c RedisChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Client.Ping(ctx).Err()
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	// Redis is nil when the deployment runs without Redis.
	Redis        RedisPinger
	Schedule     ScheduleSource
	RedisTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness. A loaded schedule is required; Redis only counts when configured.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ready := !draining.Load()
	status := map[string]string{}

	if ready {
		status["server"] = "ok"
	} else {
		status["server"] = "shutting down"
	}

	scheduleStatus := "not loaded"
	if h.Schedule != nil {
		if snap := h.Schedule.Current(); snap != nil && snap.Schedule != nil {
			scheduleStatus = "ok"
			status["schedule_version"] = snap.Version
		}
	}
	status["schedule"] = scheduleStatus
	if scheduleStatus != "ok" {
		ready = false
	}

	redisStatus := "disabled"
	if h.Redis != nil {
		redisStatus = "ok"
		if err := h.Redis.PingRedis(r.Context(), h.redisTimeout()); err != nil {
			redisStatus = err.Error()
			ready = false
		}
	}
	status["redis"] = redisStatus

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
