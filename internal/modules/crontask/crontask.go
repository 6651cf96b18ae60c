// Package crontask exposes the scheduler jobs and the batch task records.
package crontask

import (
	"github.com/geolens/engine/internal/pkg/cron"
	"github.com/geolens/engine/internal/pkg/pagination"
	"github.com/geolens/engine/internal/pkg/response"
	"github.com/geolens/engine/internal/pkg/taskqueue"
	"github.com/gin-gonic/gin"
)

// Handler wraps the scheduler and task records for HTTP access.
// taskSvc may be nil when redis is not configured.
type Handler struct {
	sched   *cron.Scheduler
	taskSvc *taskqueue.Service
}

func NewHandler(sched *cron.Scheduler, taskSvc *taskqueue.Service) *Handler {
	return &Handler{sched: sched, taskSvc: taskSvc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("", authMW)
	g.GET("/cron-task", h.list)
	g.POST("/cron-task/:name/run", h.run)
	g.GET("/tasks", h.listTasks)
	g.GET("/tasks/:id", h.getTask)
}

// GET /cron-task
func (h *Handler) list(c *gin.Context) {
	response.OK(c, h.sched.List())
}

// POST /cron-task/:name/run
func (h *Handler) run(c *gin.Context) {
	if err := h.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
		response.NotFoundMsg(c, err.Error())
		return
	}
	response.Accepted(c, gin.H{"message": "job triggered"})
}

// GET /tasks?page&size&type&status
func (h *Handler) listTasks(c *gin.Context) {
	if h.taskSvc == nil {
		response.ServiceUnavailable(c, "task records require redis")
		return
	}
	q := pagination.FromContext(c)

	var taskType *string
	if v := c.Query("type"); v != "" {
		taskType = &v
	}
	var status *taskqueue.TaskStatus
	if v := c.Query("status"); v != "" {
		s := taskqueue.TaskStatus(v)
		status = &s
	}

	tasks, total, err := h.taskSvc.List(c.Request.Context(), q.Page, q.Size, taskType, status)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, tasks, response.NewPagination(total, q.Page, q.Size))
}

// GET /tasks/:id
func (h *Handler) getTask(c *gin.Context) {
	if h.taskSvc == nil {
		response.ServiceUnavailable(c, "task records require redis")
		return
	}
	task, err := h.taskSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if task == nil {
		response.NotFoundMsg(c, "task not found")
		return
	}
	response.OK(c, task)
}
