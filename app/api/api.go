package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// Check reports whether one dependency of the process is reachable.
type Check func(ctx context.Context) error

// HealthInfo describes the running process in health responses.
type HealthInfo struct {
	Environment string
	Version     string
}

// NewRouter returns the process HTTP surface. It only serves /healthz.
func NewRouter(info HealthInfo, checks map[string]Check) *gin.Engine {
	if info.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", HealthCheck(info, checks))
	return engine
}

// HealthCheck runs every check and answers 503 when any of them fails.
func HealthCheck(info HealthInfo, checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)

		status := make(map[string]string, len(checks))
		failed := false
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				status[name] = err.Error()
				failed = true
				continue
			}
			status[name] = "ok"
		}

		data := gin.H{
			"environment": info.Environment,
			"version":     info.Version,
			"checks":      status,
		}
		if failed {
			ErrorResponse(c, http.StatusServiceUnavailable, "UNHEALTHY", "dependency check failed", data)
			return
		}
		SuccessResponse(c, http.StatusOK, "healthy", data)
	}
}
