package service

import (
	"context"
	"sync"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/SergeiKhy/ad-tracker/internal/repository"
	"go.uber.org/zap"
)

// Константы worker pool
const (
	defaultWorkerCount   = 3    // Количество воркеров
	defaultChannelBuffer = 1000 // Размер буфера канала
	maxRetries           = 3    // Максимальное количество попыток записи
)

// CounterProcessor асинхронно применяет инкременты счётчиков слотов:
// ответ ингестии не ждёт UPDATE, инвентарь отстаёт на ограниченное время
type CounterProcessor interface {
	Start()
	Stop()
	Enqueue(ctx context.Context, event *models.SlotCounterEvent) error
}

// counterProcessor реализация процессора счётчиков с использованием Worker Pool
type counterProcessor struct {
	slotRepo     repository.SlotRepository
	logger       *zap.Logger
	eventChannel chan *models.SlotCounterEvent // Канал для событий счётчиков
	workerCount  int                           // Количество воркеров
	wg           sync.WaitGroup                // WaitGroup для ожидания завершения воркеров
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewCounterProcessor создаёт новый экземпляр процессора счётчиков
func NewCounterProcessor(slotRepo repository.SlotRepository, logger *zap.Logger) CounterProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &counterProcessor{
		slotRepo:     slotRepo,
		logger:       logger,
		eventChannel: make(chan *models.SlotCounterEvent, defaultChannelBuffer),
		workerCount:  defaultWorkerCount,
	}
}

// Start запускает worker pool
func (p *counterProcessor) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.logger.Info("Запуск воркеров процессора счётчиков", zap.Int("count", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop корректно останавливает worker pool
func (p *counterProcessor) Stop() {
	p.logger.Info("Остановка процессора счётчиков...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("Процессор счётчиков остановлен")
}

// worker обрабатывает события счётчиков из канала
func (p *counterProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Воркер счётчиков запущен", zap.Int("id", id))

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("Воркер счётчиков остановлен", zap.Int("id", id))
			return

		case event, ok := <-p.eventChannel:
			if !ok {
				return
			}
			p.applyCounters(event)
		}
	}
}

// applyCounters применяет один инкремент с retry логикой
func (p *counterProcessor) applyCounters(event *models.SlotCounterEvent) {
	ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if lastErr = p.slotRepo.ApplyCounters(ctx, event); lastErr == nil {
			return
		}
		if i < maxRetries-1 {
			p.logger.Debug("Повторная попытка записи счётчиков",
				zap.Int64("slot_id", event.SlotID),
				zap.Int("attempt", i+1),
				zap.Error(lastErr),
			)
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}

	// Потерянный инкремент не фатален: сверка инвентаря выровняет срез
	p.logger.Error("Не удалось записать счётчики слота после всех попыток",
		zap.Int64("slot_id", event.SlotID),
		zap.Error(lastErr),
	)
}

// Enqueue отправляет событие счётчиков в worker pool (неблокирующая операция)
func (p *counterProcessor) Enqueue(ctx context.Context, event *models.SlotCounterEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.eventChannel <- event:
		return nil
	default:
		// Канал заполнен: событие теряем, запрос не блокируем
		p.logger.Warn("Буфер канала счётчиков заполнен, событие потеряно",
			zap.Int64("slot_id", event.SlotID),
		)
		return nil
	}
}
