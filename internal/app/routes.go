package app

import (
	"net/http"
	"time"

	"github.com/geolens/engine/internal/middleware"
	"github.com/geolens/engine/internal/modules/analytics"
	"github.com/geolens/engine/internal/modules/crontask"
	"github.com/geolens/engine/internal/modules/health"
	"github.com/geolens/engine/internal/modules/promptrun"
	"github.com/geolens/engine/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	apiPrefix    = "/api/v1"
	triggerLimit = 10
)

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth()
	triggerMW := middleware.RateLimit(a.rc, "trigger", triggerLimit, time.Minute, a.logger)

	r.NoRoute(response.NotFound)
	r.NoMethod(response.MethodNotAllowed)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "geolens-engine",
			"version": "1.0.0",
			"api":     apiPrefix,
		})
	})

	api := r.Group(apiPrefix)
	health.RegisterRoutes(api, a.db, a.sched, processStart, a.providerNames)
	promptrun.NewHandler(a.orch, a.executor, a.status, promptrun.NewHistory(a.db)).RegisterRoutes(api, authMW, triggerMW)
	analytics.NewHandler(analytics.NewService(a.db)).RegisterRoutes(api, authMW)
	crontask.NewHandler(a.sched, a.tasks).RegisterRoutes(api, authMW)
}

func (a *App) providerNames() []string {
	ids := a.registry.IDs()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
