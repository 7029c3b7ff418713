package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mapplot/customer-atlas/internal/config"
)

// HealthChecker reports the health of one dependency.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (f HealthCheckFunc) Name() string                    { return f.CheckName }
func (f HealthCheckFunc) Check(ctx context.Context) error { return f.Fn(ctx) }

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checkers []HealthChecker
	startAt  time.Time
}

// NewHealthHandler constructs a HealthHandler over the given dependency
// checkers.
func NewHealthHandler(checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{checkers: checkers, startAt: time.Now()}
}

type componentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Liveness always reports alive while the process runs.
func (h *HealthHandler) Liveness(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"status":  "alive",
		"version": config.Version,
		"uptime":  time.Since(h.startAt).Truncate(time.Second).String(),
	})
}

// Readiness probes every registered dependency; any failure yields 503.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]componentCheck, len(h.checkers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, checker := range h.checkers {
		wg.Add(1)
		go func(ck HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := ck.Check(ctx)
			cc := componentCheck{
				Status:  "healthy",
				Latency: time.Since(start).Truncate(time.Microsecond).String(),
			}
			if err != nil {
				cc.Status = "unhealthy"
				cc.Error = err.Error()
			}
			mu.Lock()
			components[ck.Name()] = cc
			mu.Unlock()
		}(checker)
	}
	wg.Wait()

	status := http.StatusOK
	overall := "ready"
	for _, cc := range components {
		if cc.Status != "healthy" {
			status = http.StatusServiceUnavailable
			overall = "not_ready"
			break
		}
	}
	respond(c, status, gin.H{"status": overall, "components": components})
}
