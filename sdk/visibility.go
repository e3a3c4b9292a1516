package sdk

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Порог засчитывания показа: не менее половины площади слота в зоне
// видимости непрерывно в течение dwell-интервала
const (
	VisibleRatioThreshold = 0.5
	VisibleDwell          = 500 * time.Millisecond
)

// Состояния наблюдателя
type visibilityState int

const (
	stateIdle visibilityState = iota
	statePendingVisible
	stateCounted
)

// VisibilityOptions параметры наблюдателя одного слота
type VisibilityOptions struct {
	AdID   int64
	SlotID int64

	// Context базовый контекст события; viewability-поля наблюдатель
	// заполняет сам
	Context Context

	// Visible повторная геометрическая проверка в момент истечения
	// dwell-интервала; nil означает "доверять последнему intersection"
	Visible func() bool

	// OnCounted вызывается после успешной регистрации показа
	OnCounted func(*ImpressionResult)

	// Schedule и Now переопределяют таймер и часы
	Schedule func(d time.Duration, f func())
	Now      func() time.Time
}

// VisibilityObserver конечный автомат засчитывания показа для одного
// элемента. Хост транслирует в HandleIntersection события пересечения
// с порогом 0.5; показ уходит на сервер не более одного раза
type VisibilityObserver struct {
	client *Client
	opts   VisibilityOptions

	mu           sync.Mutex
	state        visibilityState
	visibleSince time.Time
	seq          int // инвалидация отставших dwell-таймеров

	schedule func(d time.Duration, f func())
	now      func() time.Time
}

// NewVisibilityObserver создаёт наблюдатель слота
func (c *Client) NewVisibilityObserver(opts VisibilityOptions) *VisibilityObserver {
	o := &VisibilityObserver{
		client:   c,
		opts:     opts,
		state:    stateIdle,
		schedule: opts.Schedule,
		now:      opts.Now,
	}
	if o.schedule == nil {
		o.schedule = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// HandleIntersection принимает очередное событие пересечения.
// ratio - доля видимой площади слота, at - момент события
func (o *VisibilityObserver) HandleIntersection(ratio float64, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.state == stateIdle && ratio >= VisibleRatioThreshold:
		o.state = statePendingVisible
		o.visibleSince = at
		o.seq++
		seq := o.seq
		o.schedule(VisibleDwell, func() { o.dwellElapsed(seq) })

	case o.state == statePendingVisible && ratio < VisibleRatioThreshold:
		// элемент ушёл из зоны видимости до истечения dwell
		o.state = stateIdle
		o.seq++
	}
	// в состоянии counted любые события игнорируются
}

// Counted сообщает, был ли показ уже засчитан
func (o *VisibilityObserver) Counted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == stateCounted
}

func (o *VisibilityObserver) dwellElapsed(seq int) {
	o.mu.Lock()

	if o.state != statePendingVisible || seq != o.seq {
		// таймер от отменённого цикла видимости
		o.mu.Unlock()
		return
	}
	if o.opts.Visible != nil && !o.opts.Visible() {
		o.state = stateIdle
		o.seq++
		o.mu.Unlock()
		return
	}

	o.state = stateCounted
	visibleMs := int(o.now().Sub(o.visibleSince) / time.Millisecond)
	o.mu.Unlock()

	eventCtx := o.opts.Context
	eventCtx.IsViewable = true
	eventCtx.TimeVisibleMs = visibleMs

	ctx, cancel := context.WithTimeout(context.Background(), o.client.config.Timeout)
	defer cancel()

	result, err := o.client.TrackImpression(ctx, TrackImpressionInput{
		AdID:    o.opts.AdID,
		SlotID:  o.opts.SlotID,
		Context: eventCtx,
	})
	if err != nil {
		// сбой трекинга никогда не должен ронять страницу хоста
		o.client.logger.Warn("impression tracking failed",
			zap.Int64("slot_id", o.opts.SlotID),
			zap.Error(err),
		)
		return
	}

	if o.opts.OnCounted != nil {
		o.opts.OnCounted(result)
	}
}
