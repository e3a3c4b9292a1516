package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/metrics"
	"github.com/SergeiKhy/ad-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	rollup    service.RollupService
	inventory service.InventoryService
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewAdminHandler(rollup service.RollupService, inventory service.InventoryService, m *metrics.Metrics, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		rollup:    rollup,
		inventory: inventory,
		metrics:   m,
		logger:    logger,
	}
}

// RefreshViews godoc
// @Summary Recompute metric rollups
// @Description Recompute hourly/daily metric rows for a window (default last 24h)
// @Tags admin
// @Produce json
// @Param hours query int false "Window size in hours" default(24)
// @Param site_id query int false "Site filter"
// @Param ad_id query int false "Ad filter"
// @Success 200 {object} service.RollupReport
// @Router /admin/refresh-views [post]
func (h *AdminHandler) RefreshViews(c *gin.Context) {
	hours := parseSpan(c.Query("hours"), 24, 24*90)
	filter := parseEventFilter(c)

	to := time.Now().UTC()
	from := to.Add(-time.Duration(hours) * time.Hour)

	started := time.Now()
	report, err := h.rollup.Recompute(c.Request.Context(), from, to, filter)
	if err != nil {
		h.logger.Error("Rollup recompute failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "rollup_failed",
			Message: "Пересчёт агрегатов завершился ошибкой",
		})
		return
	}
	if h.metrics != nil {
		h.metrics.RollupDuration.Observe(time.Since(started).Seconds())
	}

	c.JSON(http.StatusOK, report)
}

// ReconcileInventory godoc
// @Summary Recompute inventory snapshots
// @Description Rebuild per-site inventory snapshots from slot counters
// @Tags admin
// @Produce json
// @Param site_id query int false "Reconcile a single site"
// @Success 200 {object} service.ReconcileReport
// @Router /admin/reconcile-inventory [post]
func (h *AdminHandler) ReconcileInventory(c *gin.Context) {
	var siteID *int64
	if raw := c.Query("site_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_site_id",
				Message: "Параметр site_id должен быть положительным числом",
			})
			return
		}
		siteID = &id
	}

	started := time.Now()
	report, err := h.inventory.Reconcile(c.Request.Context(), siteID)
	if err != nil {
		h.logger.Error("Inventory reconcile failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "reconcile_failed",
			Message: "Сверка инвентаря завершилась ошибкой",
		})
		return
	}
	if h.metrics != nil {
		h.metrics.ReconcileDuration.Observe(time.Since(started).Seconds())
	}

	c.JSON(http.StatusOK, report)
}
