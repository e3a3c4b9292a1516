package handler

import (
	"errors"
	"net/http"

	"github.com/SergeiKhy/ad-tracker/internal/metrics"
	"github.com/SergeiKhy/ad-tracker/internal/middleware"
	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/SergeiKhy/ad-tracker/internal/repository"
	"github.com/SergeiKhy/ad-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TrackHandler struct {
	ingest  service.IngestService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewTrackHandler(ingest service.IngestService, m *metrics.Metrics, logger *zap.Logger) *TrackHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackHandler{
		ingest:  ingest,
		metrics: m,
		logger:  logger,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type TrackImpressionResponse struct {
	ImpressionID string `json:"impression_id"`
	CreatedAt    string `json:"created_at"`
}

// TrackImpression godoc
// @Summary Track an ad impression
// @Description Persist one immutable impression row for the authenticated site
// @Tags tracking
// @Accept json
// @Produce json
// @Param request body models.TrackImpressionInput true "Impression event"
// @Success 201 {object} TrackImpressionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /track-impression [post]
func (h *TrackHandler) TrackImpression(c *gin.Context) {
	site, ok := middleware.SiteFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Площадка не аутентифицирована",
		})
		return
	}

	var input models.TrackImpressionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("Invalid impression request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	imp, err := h.ingest.TrackImpression(c.Request.Context(), site, &input)
	if err != nil {
		h.respondIngestError(c, err, "Failed to track impression")
		return
	}

	if h.metrics != nil {
		h.metrics.ImpressionsIngested.Inc()
	}

	c.JSON(http.StatusCreated, TrackImpressionResponse{
		ImpressionID: imp.ID,
		CreatedAt:    imp.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// TrackClick godoc
// @Summary Track an ad click
// @Description Score, persist and decide block/redirect for one click
// @Tags tracking
// @Accept json
// @Produce json
// @Param request body models.TrackClickInput true "Click event"
// @Success 200 {object} models.ClickDecision
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /track-click [post]
func (h *TrackHandler) TrackClick(c *gin.Context) {
	site, ok := middleware.SiteFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Площадка не аутентифицирована",
		})
		return
	}

	var input models.TrackClickInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("Invalid click request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	decision, err := h.ingest.TrackClick(c.Request.Context(), site, &input)
	if err != nil {
		h.respondIngestError(c, err, "Failed to track click")
		return
	}

	if h.metrics != nil {
		h.metrics.ClicksIngested.Inc()
		if decision.Blocked {
			h.metrics.ClicksBlocked.Inc()
		}
	}

	c.JSON(http.StatusOK, decision)
}

// respondIngestError маппит ошибки сервиса на машиночитаемые 4xx
func (h *TrackHandler) respondIngestError(c *gin.Context, err error, logMsg string) {
	h.logger.Warn(logMsg, zap.Error(err))

	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_ids",
			Message: "ad_id, slot_id и site_id обязательны",
		})
	case errors.Is(err, service.ErrSiteMismatch):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "site_mismatch",
			Message: "site_id не совпадает с аутентифицированной площадкой",
		})
	case errors.Is(err, service.ErrSlotMismatch):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "slot_mismatch",
			Message: "Слот не принадлежит площадке",
		})
	case errors.Is(err, repository.ErrSlotNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "slot_not_found",
			Message: "Слот не найден",
		})
	case errors.Is(err, repository.ErrAdNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "ad_not_found",
			Message: "Объявление не найдено",
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Не удалось обработать событие",
		})
	}
}
