package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	domrepo "github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/repository"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/normalize"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/quality"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/cache"
	xhttp "github.com/virtexvirtuoso/Virtuoso-sub004/pkg/http"
	xlogger "github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/util"
)

// OpsHandler exposes the operational read surface: health, quality
// statistics, filter effectiveness, normalizer state and latest results.
type OpsHandler struct {
	logger  *xlogger.Logger
	tracker *quality.Tracker
	norms   *normalize.Registry
	results domrepo.ResultCache
}

func NewOpsHandler(logger *xlogger.Logger, tracker *quality.Tracker, norms *normalize.Registry, results domrepo.ResultCache) *OpsHandler {
	return &OpsHandler{logger: logger, tracker: tracker, norms: norms, results: results}
}

func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/quality/stats", h.QualityStats)
	g.GET("/quality/effectiveness", h.Effectiveness)
	g.GET("/normalizers", h.Normalizers)
	g.GET("/results/:symbol/latest", h.LatestResult)
}

func (h *OpsHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// QualityStats returns aggregate quality statistics over the requested
// period (default 1h), e.g. ?period=24h.
func (h *OpsHandler) QualityStats(c echo.Context) error {
	period := util.ParseDurationDefault(c.QueryParam("period"), time.Hour)
	return xhttp.SuccessResponse(c, h.tracker.GetStatistics(period))
}

func (h *OpsHandler) Effectiveness(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.tracker.GetFilterEffectiveness())
}

func (h *OpsHandler) Normalizers(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.norms.Snapshots())
}

func (h *OpsHandler) LatestResult(c echo.Context) error {
	symbol := c.Param("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol is required")
	}
	res, err := h.results.Latest(c.Request().Context(), symbol)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return xhttp.NotFoundResponse(c, "no result for symbol")
		}
		h.logger.Error("latest result lookup", xlogger.Error(err), xlogger.String("symbol", symbol))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, res)
}
