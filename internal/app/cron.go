package app

import (
	"context"
	"time"

	"github.com/geolens/engine/internal/modules/provider"
	pkgcron "github.com/geolens/engine/internal/pkg/cron"
	"go.uber.org/zap"
)

const taskRetention = 7 * 24 * time.Hour

// registerCronJobs registers all scheduled background jobs.
func (a *App) registerCronJobs() {
	cronLogger := a.logger.Named("CronService")

	if a.cfg.Schedule.Enable {
		a.sched.Register(pkgcron.Job{
			Name:        "scheduled_prompt_runs",
			Description: "Run every active prompt against the scheduled providers",
			Interval:    a.cfg.Schedule.Interval,
			Fn: func(ctx context.Context) error {
				return a.orch.RunScheduled(ctx, a.scheduledProviders(cronLogger))
			},
		})
	}

	if a.tasks != nil {
		a.sched.Register(pkgcron.Job{
			Name:        "cleanup_task_records",
			Description: "Remove finished batch task records older than 7 days",
			Interval:    24 * time.Hour,
			Fn: func(ctx context.Context) error {
				removed, err := a.tasks.DeleteFinished(ctx, time.Now().Add(-taskRetention))
				if err != nil {
					return err
				}
				cronLogger.Info("task records cleaned", zap.Int("removed", removed))
				return nil
			},
		})
	}
}

// scheduledProviders resolves schedule.providers, defaulting to every configured provider.
func (a *App) scheduledProviders(log *zap.Logger) []provider.ID {
	if len(a.cfg.Schedule.Providers) == 0 {
		return a.registry.IDs()
	}
	ids := make([]provider.ID, 0, len(a.cfg.Schedule.Providers))
	for _, raw := range a.cfg.Schedule.Providers {
		id, err := provider.ParseID(raw)
		if err != nil {
			log.Warn("ignoring scheduled provider", zap.String("provider", raw), zap.Error(err))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
