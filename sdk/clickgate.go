package sdk

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Дебаунс кликов и пауза перед навигацией, чтобы запрос трекинга успел
// уйти до выгрузки страницы
const (
	ClickDebounce = 1000 * time.Millisecond
	navigateDelay = 100 * time.Millisecond
)

// GateOptions параметры click gate одного слота
type GateOptions struct {
	AdID   int64
	SlotID int64

	Context Context

	// ImpressionID источник привязки к засчитанному показу; nil или
	// пустая строка дают непривязанный клик
	ImpressionID func() string

	// FallbackURL адрес перехода при недоступности сервера (fail-open);
	// пустая строка отключает переход
	FallbackURL string

	// Navigate выполняет переход; обязателен
	Navigate func(url string)

	// OnDenied вызывается при заблокированном клике вместо навигации
	OnDenied func(*ClickResult)

	// Now и Sleep переопределяют часы и паузу перед навигацией
	Now   func() time.Time
	Sleep func(time.Duration)
}

// ClickGate перехватывает клики по слоту: дебаунс, единственный запрос
// in-flight, навигация только по вердикту сервера
type ClickGate struct {
	client *Client
	opts   GateOptions

	mu        sync.Mutex
	inFlight  bool
	lastClick time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// ClickEvent координаты клика внутри слота
type ClickEvent struct {
	X int
	Y int
}

// NewClickGate создаёт gate слота
func (c *Client) NewClickGate(opts GateOptions) *ClickGate {
	g := &ClickGate{
		client: c,
		opts:   opts,
		now:    opts.Now,
		sleep:  opts.Sleep,
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.sleep == nil {
		g.sleep = time.Sleep
	}
	return g
}

// HandleClick обрабатывает один клик. Отброшенные дебаунсом или
// in-flight защитой клики возвращают (nil, nil)
func (g *ClickGate) HandleClick(ctx context.Context, ev ClickEvent) (*ClickResult, error) {
	now := g.now()

	g.mu.Lock()
	if g.inFlight || (!g.lastClick.IsZero() && now.Sub(g.lastClick) < ClickDebounce) {
		g.mu.Unlock()
		return nil, nil
	}
	g.inFlight = true
	g.lastClick = now
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inFlight = false
		g.mu.Unlock()
	}()

	eventCtx := g.opts.Context
	eventCtx.ClickX = ev.X
	eventCtx.ClickY = ev.Y

	var impressionID string
	if g.opts.ImpressionID != nil {
		impressionID = g.opts.ImpressionID()
	}

	result, err := g.client.TrackClick(ctx, TrackClickInput{
		AdID:         g.opts.AdID,
		SlotID:       g.opts.SlotID,
		ImpressionID: impressionID,
		Context:      eventCtx,
	})
	if err != nil {
		// сервер недоступен: переход не теряем, атрибуция теряется
		g.client.logger.Warn("click tracking failed",
			zap.Int64("slot_id", g.opts.SlotID),
			zap.Error(err),
		)
		if g.opts.FallbackURL != "" {
			g.opts.Navigate(g.opts.FallbackURL)
		}
		return nil, err
	}

	if result.Blocked {
		if g.opts.OnDenied != nil {
			g.opts.OnDenied(result)
		}
		return result, nil
	}

	g.sleep(navigateDelay)
	g.opts.Navigate(result.RedirectURL)
	return result, nil
}
