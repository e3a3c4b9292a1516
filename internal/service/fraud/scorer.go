package fraud

import (
	"context"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/config"
	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/SergeiKhy/ad-tracker/internal/repository"
	"go.uber.org/zap"
)

// Input всё, что известно о клике на момент скоринга
type Input struct {
	SiteID       int64
	AdID         int64
	Slot         *models.Slot
	Impression   *models.Impression // nil - клик без найденного показа, сам по себе не фрод-сигнал
	ClickX       int
	ClickY       int
	TimeOnPageMs int
	Fingerprint  string
	Now          time.Time
}

// Signal один фрод-сигнал; возвращает подозрительность 0..1
type Signal interface {
	Name() string
	Score(ctx context.Context, in *Input) (float64, error)
}

// Scorer взвешенная сумма сигналов; веса и порог приходят из конфига,
// а не из кода
type Scorer struct {
	signals   []Signal
	weights   map[string]float64
	threshold float64
	logger    *zap.Logger
}

// NewScorer создаёт скорер со стандартным набором сигналов
func NewScorer(cfg config.FraudConfig, cacheRepo repository.CacheRepository, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	signals := []Signal{
		&shortDwellSignal{minDwellMs: cfg.MinDwellMs},
		&outOfBoundsSignal{},
		&clickVelocitySignal{minVelocityMs: cfg.MinVelocityMs},
		&repeatClickSignal{
			cacheRepo: cacheRepo,
			window:    cfg.RepeatWindow,
			maxCount:  cfg.RepeatMaxCount,
		},
	}
	return NewScorerWithSignals(signals, cfg.Weights, cfg.Threshold, logger)
}

// NewScorerWithSignals создаёт скорер с произвольным набором сигналов
func NewScorerWithSignals(signals []Signal, weights map[string]float64, threshold float64, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		signals:   signals,
		weights:   weights,
		threshold: threshold,
		logger:    logger,
	}
}

// Threshold порог блокировки по шкале 0-100
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Score считает итоговый балл 0-100. Отказавший сигнал пропускается:
// потерять один сигнал лучше, чем не обработать клик
func (s *Scorer) Score(ctx context.Context, in *Input) float64 {
	var total float64
	for _, signal := range s.signals {
		weight := s.weights[signal.Name()]
		if weight == 0 {
			continue
		}

		suspicion, err := signal.Score(ctx, in)
		if err != nil {
			s.logger.Warn("Фрод-сигнал завершился ошибкой",
				zap.String("signal", signal.Name()),
				zap.Error(err),
			)
			continue
		}

		total += clamp01(suspicion) * weight
	}

	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return total
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
