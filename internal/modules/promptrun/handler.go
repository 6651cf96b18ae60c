package promptrun

import (
	"errors"
	"strings"

	"github.com/geolens/engine/internal/modules/provider"
	"github.com/geolens/engine/internal/pkg/pagination"
	"github.com/geolens/engine/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	orch     *Orchestrator
	executor *Executor
	status   *StatusStore
	history  *History
}

func NewHandler(orch *Orchestrator, executor *Executor, status *StatusStore, history *History) *Handler {
	return &Handler{orch: orch, executor: executor, status: status, history: history}
}

// RegisterRoutes mounts the prompt-run routes. triggerMW guards the routes
// that start provider calls.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, triggerMW ...gin.HandlerFunc) {
	a := rg.Group("", authMW)
	a.GET("/domains/:id/prompt-runs/status", h.batchStatus)
	a.GET("/prompts/:id/runs", h.listRuns)
	a.GET("/prompts/:id/runs/latest", h.latestRun)

	t := a.Group("", triggerMW...)
	t.POST("/domains/:id/prompt-runs", h.startBatch)
	t.POST("/prompts/:id/run", h.runOne)
}

type triggerRequest struct {
	Provider string `json:"provider" binding:"required"`
}

func bindProvider(c *gin.Context) (provider.ID, bool) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "provider is required")
		return "", false
	}
	id, err := provider.ParseID(req.Provider)
	if err != nil {
		response.BadRequest(c, err.Error())
		return "", false
	}
	return id, true
}

// POST /domains/:id/prompt-runs
func (h *Handler) startBatch(c *gin.Context) {
	id, ok := bindProvider(c)
	if !ok {
		return
	}
	ack, err := h.orch.StartBatch(c.Request.Context(), c.Param("id"), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Accepted(c, ack)
}

// GET /domains/:id/prompt-runs/status
func (h *Handler) batchStatus(c *gin.Context) {
	st, err := h.status.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, st)
}

// POST /prompts/:id/run
func (h *Handler) runOne(c *gin.Context) {
	id, ok := bindProvider(c)
	if !ok {
		return
	}
	if err := h.orch.providers.Configured(id); err != nil {
		writeError(c, err)
		return
	}
	res, err := h.executor.RunOne(c.Request.Context(), c.Param("id"), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, res)
}

// GET /prompts/:id/runs?provider=chatgpt
func (h *Handler) listRuns(c *gin.Context) {
	var llmProvider string
	if raw := strings.TrimSpace(c.Query("provider")); raw != "" {
		id, err := provider.ParseID(raw)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		llmProvider = string(id)
	}
	runs, pag, err := h.history.ListRuns(c.Request.Context(), c.Param("id"), llmProvider, pagination.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Paged(c, runs, pag)
}

// GET /prompts/:id/runs/latest?provider=chatgpt
func (h *Handler) latestRun(c *gin.Context) {
	id, err := provider.ParseID(c.Query("provider"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	run, err := h.history.Latest(c.Request.Context(), c.Param("id"), string(id))
	if err != nil {
		writeError(c, err)
		return
	}
	if run == nil {
		response.NotFoundMsg(c, "no runs for this provider yet")
		return
	}
	response.OK(c, run)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNoActivePrompts):
		response.BadRequest(c, "No active prompts to run")
	case errors.Is(err, ErrProviderNotConfigured), errors.Is(err, provider.ErrNotConfigured), errors.Is(err, provider.ErrUnknownProvider):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrDomainNotFound), errors.Is(err, ErrPromptNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrBatchInProgress):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrShuttingDown):
		response.ServiceUnavailable(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
