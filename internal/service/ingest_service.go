package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/SergeiKhy/ad-tracker/internal/repository"
	"github.com/SergeiKhy/ad-tracker/internal/service/fraud"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ошибки сервиса ингестии
var (
	ErrValidation   = errors.New("отсутствуют обязательные идентификаторы")
	ErrSiteMismatch = errors.New("site_id не совпадает с аутентифицированной площадкой")
	ErrSlotMismatch = errors.New("слот не принадлежит площадке")
)

var thousand = decimal.NewFromInt(1000)

// IngestService приём сырых событий доставки: каждая операция - одна
// независимая вставка неизменяемой строки
type IngestService interface {
	TrackImpression(ctx context.Context, site *models.Site, input *models.TrackImpressionInput) (*models.Impression, error)
	TrackClick(ctx context.Context, site *models.Site, input *models.TrackClickInput) (*models.ClickDecision, error)
}

type ingestService struct {
	eventRepo repository.EventRepository
	slotRepo  repository.SlotRepository
	adRepo    repository.AdRepository
	counters  CounterProcessor
	scorer    *fraud.Scorer
	logger    *zap.Logger
}

// NewIngestService создаёт новый экземпляр сервиса ингестии
func NewIngestService(
	eventRepo repository.EventRepository,
	slotRepo repository.SlotRepository,
	adRepo repository.AdRepository,
	counters CounterProcessor,
	scorer *fraud.Scorer,
	logger *zap.Logger,
) IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ingestService{
		eventRepo: eventRepo,
		slotRepo:  slotRepo,
		adRepo:    adRepo,
		counters:  counters,
		scorer:    scorer,
		logger:    logger,
	}
}

// TrackImpression сохраняет показ и возвращает его сгенерированный id
func (s *ingestService) TrackImpression(ctx context.Context, site *models.Site, input *models.TrackImpressionInput) (*models.Impression, error) {
	slot, ad, err := s.resolveTargets(ctx, site, input.SiteID, input.AdID, input.SlotID)
	if err != nil {
		return nil, err
	}

	imp := &models.Impression{
		ID:            uuid.NewString(),
		AdID:          ad.ID,
		SlotID:        slot.ID,
		SiteID:        site.ID,
		DeviceClass:   input.Context.DeviceClass,
		ViewportW:     input.Context.ViewportW,
		ViewportH:     input.Context.ViewportH,
		Referrer:      input.Context.Referrer,
		PageURL:       input.Context.PageURL,
		IsViewable:    input.Context.IsViewable,
		TimeVisibleMs: input.Context.TimeVisibleMs,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.eventRepo.InsertImpression(ctx, imp); err != nil {
		return nil, fmt.Errorf("failed to track impression: %w", err)
	}

	// Показ зарабатывает CPM/1000; счётчики слота догоняют асинхронно
	s.enqueueCounters(ctx, &models.SlotCounterEvent{
		SlotID:      slot.ID,
		Impressions: 1,
		Revenue:     ad.CPMBid.Div(thousand),
	})

	return imp, nil
}

// TrackClick скорит клик, сохраняет его безусловно и возвращает вердикт.
// Заблокированные клики тоже попадают в БД - для аудита
func (s *ingestService) TrackClick(ctx context.Context, site *models.Site, input *models.TrackClickInput) (*models.ClickDecision, error) {
	slot, ad, err := s.resolveTargets(ctx, site, input.SiteID, input.AdID, input.SlotID)
	if err != nil {
		return nil, err
	}

	// Висячий impression_id допустим: клик становится кликом без показа
	var impression *models.Impression
	var impressionID *string
	if input.ImpressionID != "" {
		impression, err = s.eventRepo.GetImpression(ctx, input.ImpressionID)
		switch {
		case err == nil:
			impressionID = &impression.ID
		case errors.Is(err, repository.ErrImpressionNotFound):
			s.logger.Debug("Клик ссылается на неизвестный показ",
				zap.String("impression_id", input.ImpressionID),
			)
		default:
			return nil, fmt.Errorf("failed to resolve impression: %w", err)
		}
	}

	now := time.Now().UTC()
	score := s.scorer.Score(ctx, &fraud.Input{
		SiteID:       site.ID,
		AdID:         ad.ID,
		Slot:         slot,
		Impression:   impression,
		ClickX:       input.Context.ClickX,
		ClickY:       input.Context.ClickY,
		TimeOnPageMs: input.Context.TimeOnPageMs,
		Fingerprint:  input.Context.Fingerprint,
		Now:          now,
	})
	blocked := score >= s.scorer.Threshold()

	revenue := decimal.Zero
	if !blocked {
		revenue = ad.CPCBid
	}

	click := &models.Click{
		ID:           uuid.NewString(),
		ImpressionID: impressionID,
		AdID:         ad.ID,
		SlotID:       slot.ID,
		SiteID:       site.ID,
		ClickX:       input.Context.ClickX,
		ClickY:       input.Context.ClickY,
		TimeOnPageMs: input.Context.TimeOnPageMs,
		FraudScore:   score,
		Blocked:      blocked,
		Revenue:      revenue,
		CreatedAt:    now,
	}

	if err := s.eventRepo.InsertClick(ctx, click); err != nil {
		return nil, fmt.Errorf("failed to track click: %w", err)
	}

	s.enqueueCounters(ctx, &models.SlotCounterEvent{
		SlotID:  slot.ID,
		Clicks:  1,
		Revenue: revenue,
	})

	decision := &models.ClickDecision{
		ClickID:    click.ID,
		Blocked:    blocked,
		FraudScore: score,
	}
	if !blocked {
		decision.RedirectURL = ad.DestinationURL
	}

	return decision, nil
}

// resolveTargets валидирует идентификаторы и принадлежность слота площадке
func (s *ingestService) resolveTargets(ctx context.Context, site *models.Site, siteID, adID, slotID int64) (*models.Slot, *models.Ad, error) {
	if siteID == 0 || adID == 0 || slotID == 0 {
		return nil, nil, ErrValidation
	}
	if siteID != site.ID {
		return nil, nil, ErrSiteMismatch
	}

	slot, err := s.slotRepo.GetByID(ctx, slotID)
	if err != nil {
		return nil, nil, err
	}
	if slot.SiteID != site.ID {
		return nil, nil, ErrSlotMismatch
	}

	ad, err := s.adRepo.GetByID(ctx, adID)
	if err != nil {
		return nil, nil, err
	}

	return slot, ad, nil
}

func (s *ingestService) enqueueCounters(ctx context.Context, event *models.SlotCounterEvent) {
	if s.counters == nil {
		return
	}
	if err := s.counters.Enqueue(ctx, event); err != nil {
		s.logger.Debug("Не удалось поставить счётчики в очередь", zap.Error(err))
	}
}
