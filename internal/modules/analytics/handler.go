package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geolens/engine/internal/modules/provider"
	"github.com/geolens/engine/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/domains/:id/analytics", authMW)
	g.GET("/visibility", serve(h.svc.Visibility))
	g.GET("/ranking", serve(h.svc.Ranking))
	g.GET("/sources", serve(h.svc.SourceDomains))
	g.GET("/topics", serve(h.svc.Topics))
	g.GET("/models", serve(h.svc.Models))
	g.GET("/trend", serve(h.svc.Trend))
}

// serve adapts a rollup to GET /domains/:id/analytics/<name>?from&to&provider&brand
func serve[T any](fn func(context.Context, Filter) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := filterFromQuery(c)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		out, err := fn(c.Request.Context(), f)
		switch {
		case err == nil:
			response.OK(c, out)
		case errors.Is(err, ErrDomainNotFound):
			response.NotFoundMsg(c, err.Error())
		case errors.Is(err, ErrInvalidWindow):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
	}
}

func filterFromQuery(c *gin.Context) (Filter, error) {
	f := Filter{DomainID: c.Param("id"), Brand: c.Query("brand")}
	var err error
	if f.From, err = parseTime(c.Query("from"), false); err != nil {
		return f, fmt.Errorf("invalid from: %w", err)
	}
	if f.To, err = parseTime(c.Query("to"), true); err != nil {
		return f, fmt.Errorf("invalid to: %w", err)
	}
	if raw := strings.TrimSpace(c.Query("provider")); raw != "" {
		if f.Provider, err = provider.ParseID(raw); err != nil {
			return f, err
		}
	}
	return f, nil
}

// parseTime accepts RFC 3339 or a bare date. A bare end date covers the whole day.
func parseTime(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, errors.New("expected RFC 3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
