package health

import (
	"net/http"
	"time"

	"github.com/geolens/engine/internal/pkg/cron"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterRoutes mounts GET /health. providers lists the configured answer
// providers and may be nil.
func RegisterRoutes(rg *gin.RouterGroup, db *gorm.DB, sched *cron.Scheduler, startedAt time.Time, providers func() []string) {
	rg.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		dbOK := err == nil && sqlDB.PingContext(c.Request.Context()) == nil

		status := "ok"
		code := http.StatusOK
		if !dbOK {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		body := gin.H{
			"status":   status,
			"database": dbOK,
			"uptime":   humanizeDuration(time.Since(startedAt)),
			"cron":     sched.List(),
		}
		if providers != nil {
			body["providers"] = providers()
		}
		c.JSON(code, body)
	})
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	if d < 24*time.Hour {
		return d.Truncate(time.Hour).String()
	}
	return d.Truncate(24 * time.Hour).String()
}
