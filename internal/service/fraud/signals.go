package fraud

import (
	"context"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/repository"
)

// shortDwellSignal неправдоподобно короткое время на странице перед кликом
type shortDwellSignal struct {
	minDwellMs int
}

func (s *shortDwellSignal) Name() string { return "short_dwell" }

func (s *shortDwellSignal) Score(_ context.Context, in *Input) (float64, error) {
	if in.TimeOnPageMs <= 0 {
		// Время не передано - считаем максимально подозрительным
		return 1, nil
	}
	if in.TimeOnPageMs >= s.minDwellMs {
		return 0, nil
	}
	return 1 - float64(in.TimeOnPageMs)/float64(s.minDwellMs), nil
}

// outOfBoundsSignal координаты клика вне отрендеренных границ слота
type outOfBoundsSignal struct{}

func (s *outOfBoundsSignal) Name() string { return "out_of_bounds" }

func (s *outOfBoundsSignal) Score(_ context.Context, in *Input) (float64, error) {
	if in.Slot == nil || in.Slot.Width == 0 || in.Slot.Height == 0 {
		return 0, nil
	}
	// Координаты относительно левого верхнего угла слота
	if in.ClickX < 0 || in.ClickX > in.Slot.Width || in.ClickY < 0 || in.ClickY > in.Slot.Height {
		return 1, nil
	}
	return 0, nil
}

// clickVelocitySignal клик слишком быстро после привязанного показа
type clickVelocitySignal struct {
	minVelocityMs int
}

func (s *clickVelocitySignal) Name() string { return "click_velocity" }

func (s *clickVelocitySignal) Score(_ context.Context, in *Input) (float64, error) {
	// Без разрешённого показа сигнал молчит: висячий impression_id - не фрод
	if in.Impression == nil {
		return 0, nil
	}

	elapsed := in.Now.Sub(in.Impression.CreatedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	elapsedMs := int(elapsed / time.Millisecond)
	if elapsedMs >= s.minVelocityMs {
		return 0, nil
	}
	return 1 - float64(elapsedMs)/float64(s.minVelocityMs), nil
}

// repeatClickSignal повторные клики с одного отпечатка в коротком окне
type repeatClickSignal struct {
	cacheRepo repository.CacheRepository
	window    time.Duration
	maxCount  int
}

func (s *repeatClickSignal) Name() string { return "repeat_click" }

func (s *repeatClickSignal) Score(ctx context.Context, in *Input) (float64, error) {
	if in.Fingerprint == "" || s.cacheRepo == nil {
		return 0, nil
	}

	count, err := s.cacheRepo.IncrClickCount(ctx, in.Fingerprint, s.window)
	if err != nil {
		return 0, err
	}

	// Первый клик в окне не подозрителен, дальше подозрительность растёт линейно
	if count <= 1 {
		return 0, nil
	}
	if s.maxCount <= 1 {
		return 1, nil
	}
	return float64(count-1) / float64(s.maxCount-1), nil
}
