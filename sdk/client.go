// Package sdk встраиваемый трекинг-клиент для приложений паблишеров,
// отрисовывающих рекламные слоты. Вся конфигурация живёт в явно
// сконструированном Client - глобального состояния нет, один процесс
// может обслуживать несколько площадок
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Ошибки клиента
var (
	ErrNotConfigured = errors.New("sdk: клиент не сконфигурирован (siteId, apiKey, endpointBase обязательны)")
	ErrUnauthorized  = errors.New("sdk: невалидный site-ключ")
)

const defaultTimeout = 5 * time.Second

// Config конфигурация трекера; инжектится в каждый наблюдатель и click gate
type Config struct {
	SiteID       int64
	APIKey       string
	EndpointBase string
	Debug        bool
	Timeout      time.Duration // 0 = defaultTimeout
	Logger       *zap.Logger
	Page         PageEnv
}

// PageEnv окружение страницы, из которого автообогащается контекст событий
type PageEnv struct {
	UserAgent   string
	ViewportW   int
	ViewportH   int
	Referrer    string
	PageURL     string
	LoadedAt    time.Time
	Fingerprint string
}

// Context контекст события; незаполненные поля дозаполняются из PageEnv
type Context struct {
	DeviceClass   string `json:"device_class,omitempty"`
	ViewportW     int    `json:"viewport_w,omitempty"`
	ViewportH     int    `json:"viewport_h,omitempty"`
	Referrer      string `json:"referrer,omitempty"`
	PageURL       string `json:"page_url,omitempty"`
	IsViewable    bool   `json:"is_viewable,omitempty"`
	TimeVisibleMs int    `json:"time_visible_ms,omitempty"`
	ClickX        int    `json:"click_x,omitempty"`
	ClickY        int    `json:"click_y,omitempty"`
	TimeOnPageMs  int    `json:"time_on_page_ms,omitempty"`
	Fingerprint   string `json:"fingerprint,omitempty"`
}

// TrackImpressionInput параметры показа
type TrackImpressionInput struct {
	AdID    int64
	SlotID  int64
	Context Context
}

// TrackClickInput параметры клика
type TrackClickInput struct {
	AdID         int64
	SlotID       int64
	ImpressionID string
	Context      Context
}

// ImpressionResult ответ эндпоинта показов
type ImpressionResult struct {
	ImpressionID string `json:"impression_id"`
	CreatedAt    string `json:"created_at"`
}

// ClickResult вердикт сервера по клику; Blocked - валидный исход, не ошибка
type ClickResult struct {
	ClickID     string  `json:"click_id"`
	Blocked     bool    `json:"blocked"`
	FraudScore  float64 `json:"fraud_score"`
	RedirectURL string  `json:"redirect_url,omitempty"`
}

// Client трекинг-клиент площадки
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// New создаёт клиент; вызов трекинга без валидной конфигурации невозможен
func New(config Config) (*Client, error) {
	if config.SiteID == 0 || config.APIKey == "" || config.EndpointBase == "" {
		return nil, ErrNotConfigured
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	logger := config.Logger
	if logger == nil {
		if config.Debug {
			logger, _ = zap.NewDevelopment()
		} else {
			logger = zap.NewNop()
		}
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
		now:    time.Now,
	}, nil
}

type impressionRequest struct {
	AdID    int64   `json:"ad_id"`
	SlotID  int64   `json:"slot_id"`
	SiteID  int64   `json:"site_id"`
	Context Context `json:"context"`
}

type clickRequest struct {
	AdID         int64   `json:"ad_id"`
	SlotID       int64   `json:"slot_id"`
	SiteID       int64   `json:"site_id"`
	ImpressionID string  `json:"impression_id,omitempty"`
	Context      Context `json:"context"`
}

// TrackImpression отправляет один показ. Никаких retry: дубликаты показов
// хуже потерянного показа
func (c *Client) TrackImpression(ctx context.Context, input TrackImpressionInput) (*ImpressionResult, error) {
	payload := impressionRequest{
		AdID:    input.AdID,
		SlotID:  input.SlotID,
		SiteID:  c.config.SiteID,
		Context: c.enrich(input.Context, false),
	}

	var result ImpressionResult
	if err := c.post(ctx, "/track-impression", payload, http.StatusCreated, &result); err != nil {
		return nil, err
	}

	c.logger.Debug("impression tracked", zap.String("impression_id", result.ImpressionID))
	return &result, nil
}

// TrackClick отправляет один клик и возвращает вердикт сервера
func (c *Client) TrackClick(ctx context.Context, input TrackClickInput) (*ClickResult, error) {
	payload := clickRequest{
		AdID:         input.AdID,
		SlotID:       input.SlotID,
		SiteID:       c.config.SiteID,
		ImpressionID: input.ImpressionID,
		Context:      c.enrich(input.Context, true),
	}

	var result ClickResult
	if err := c.post(ctx, "/track-click", payload, http.StatusOK, &result); err != nil {
		return nil, err
	}

	c.logger.Debug("click tracked",
		zap.Bool("blocked", result.Blocked),
		zap.Float64("fraud_score", result.FraudScore),
	)
	return &result, nil
}

// enrich дозаполняет контекст из окружения страницы; для кликов добавляет
// время с момента загрузки
func (c *Client) enrich(in Context, click bool) Context {
	page := c.config.Page

	if in.DeviceClass == "" {
		in.DeviceClass = DeviceClassOf(page.UserAgent)
	}
	if in.ViewportW == 0 {
		in.ViewportW = page.ViewportW
	}
	if in.ViewportH == 0 {
		in.ViewportH = page.ViewportH
	}
	if in.Referrer == "" {
		in.Referrer = page.Referrer
	}
	if in.PageURL == "" {
		in.PageURL = page.PageURL
	}
	if in.Fingerprint == "" {
		in.Fingerprint = page.Fingerprint
	}
	if click && in.TimeOnPageMs == 0 && !page.LoadedAt.IsZero() {
		in.TimeOnPageMs = int(c.now().Sub(page.LoadedAt) / time.Millisecond)
	}

	return in
}

// post выполняет один ограниченный по времени запрос к эндпоинту ингестии
func (c *Client) post(ctx context.Context, path string, payload any, wantStatus int, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sdk: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.EndpointBase+path, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("sdk: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Site-Key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sdk: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("sdk: unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sdk: failed to decode response: %w", err)
	}

	return nil
}
