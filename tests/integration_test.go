package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/config"
	"github.com/SergeiKhy/ad-tracker/internal/handler"
	"github.com/SergeiKhy/ad-tracker/internal/metrics"
	"github.com/SergeiKhy/ad-tracker/internal/middleware"
	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/SergeiKhy/ad-tracker/internal/repository"
	"github.com/SergeiKhy/ad-tracker/internal/service"
	"github.com/SergeiKhy/ad-tracker/internal/service/fraud"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testSiteKey = "integration-site-key"

// TestMain настраивает тестовый режим gin
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// TestEnv окружение интеграционных тестов
type TestEnv struct {
	router         *gin.Engine
	counters       service.CounterProcessor
	dbContainer    testcontainers.Container
	redisContainer testcontainers.Container
	db             *repository.PostgresDB
	redis          *repository.RedisDB
}

// setupTestEnv поднимает PostgreSQL и Redis контейнеры и собирает полный стек
func setupTestEnv(t *testing.T) *TestEnv {
	ctx := t.Context()

	dbContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("adtracker"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
	)
	require.NoError(t, err)

	dbHost, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	dbPort, err := dbContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	db, err := repository.NewPostgresDB(config.DBConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     "user",
		Password: "password",
		Name:     "adtracker",
	})
	require.NoError(t, err)

	redisClient, err := repository.NewRedisClient(config.RedisConfig{
		Host: redisHost,
		Port: redisPort.Port(),
	})
	require.NoError(t, err)

	applySchema(t, db)
	seedFixtures(t, db)

	siteRepo := repository.NewSiteRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	adRepo := repository.NewAdRepository(db)
	eventRepo := repository.NewEventRepository(db)
	metricRepo := repository.NewMetricRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// Порог ниже продакшенового, чтобы вердикт блокировки был детерминирован
	// двумя сигналами
	scorer := fraud.NewScorer(config.FraudConfig{
		Threshold: 50,
		Weights: map[string]float64{
			"short_dwell":    25,
			"out_of_bounds":  25,
			"click_velocity": 25,
			"repeat_click":   25,
		},
		MinDwellMs:     2000,
		MinVelocityMs:  1000,
		RepeatWindow:   5 * time.Minute,
		RepeatMaxCount: 5,
	}, cacheRepo, nil)

	counters := service.NewCounterProcessor(slotRepo, nil)
	counters.Start()

	ingest := service.NewIngestService(eventRepo, slotRepo, adRepo, counters, scorer, nil)
	dashboard := service.NewDashboardService(metricRepo, eventRepo, siteRepo, adRepo)
	rollup := service.NewRollupService(eventRepo, metricRepo, siteRepo, adRepo, nil)
	inventory := service.NewInventoryService(siteRepo, slotRepo, inventoryRepo, nil)
	siteAuth := middleware.NewSiteAuth(middleware.DefaultSiteAuthConfig, siteRepo, cacheRepo, nil)

	router := handler.NewRouter(ingest, dashboard, rollup, inventory, siteAuth, nil, metrics.New(), nil)

	return &TestEnv{
		router:         router,
		counters:       counters,
		dbContainer:    dbContainer,
		redisContainer: redisContainer,
		db:             db,
		redis:          redisClient,
	}
}

// applySchema применяет schema.sql из корня репозитория
func applySchema(t *testing.T, db *repository.PostgresDB) {
	t.Helper()

	ddl, err := os.ReadFile("../schema.sql")
	require.NoError(t, err)

	_, err = db.Pool.Exec(context.Background(), string(ddl))
	require.NoError(t, err)
}

// seedFixtures создаёт площадку, объявление и слот
func seedFixtures(t *testing.T, db *repository.PostgresDB) {
	t.Helper()
	ctx := context.Background()

	_, err := db.Pool.Exec(ctx,
		`INSERT INTO sites (id, domain, key_hash, status) VALUES ($1, $2, $3, $4)`,
		1, "news.example.com", middleware.HashSiteKey(testSiteKey), "active",
	)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx,
		`INSERT INTO ads (id, channel, cpm_bid, cpc_bid, destination_url, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		5, "display", 2.50, 0.40, "https://advertiser.example.com/landing", "active",
	)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx,
		`INSERT INTO slots (id, site_id, position, width, height, current_ad_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		10, 1, "sidebar", 300, 250, 5,
	)
	require.NoError(t, err)
}

// teardown очищает ресурсы после теста
func (env *TestEnv) teardown(t *testing.T) {
	env.counters.Stop()
	env.db.Close()
	env.redis.Close()

	ctx := t.Context()
	if env.dbContainer != nil {
		env.dbContainer.Terminate(ctx)
	}
	if env.redisContainer != nil {
		env.redisContainer.Terminate(ctx)
	}
}

func (env *TestEnv) send(t *testing.T, method, path string, withKey bool, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if withKey {
		req.Header.Set("X-Site-Key", testSiteKey)
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// TestIntegration_TrackingPipeline прогоняет полный путь события:
// показ -> клик -> пересчёт агрегатов -> дашборд -> сверка инвентаря
func TestIntegration_TrackingPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	// Показ
	w := env.send(t, http.MethodPost, "/track-impression", true, &models.TrackImpressionInput{
		AdID:   5,
		SlotID: 10,
		SiteID: 1,
		Context: models.EventContext{
			DeviceClass:   "desktop",
			IsViewable:    true,
			TimeVisibleMs: 800,
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var impResp handler.TrackImpressionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &impResp))
	require.NotEmpty(t, impResp.ImpressionID)

	// Чистый клик с привязкой к показу: velocity-сигнал даёт часть балла,
	// но порог не достигается
	time.Sleep(1100 * time.Millisecond)
	w = env.send(t, http.MethodPost, "/track-click", true, &models.TrackClickInput{
		AdID:         5,
		SlotID:       10,
		SiteID:       1,
		ImpressionID: impResp.ImpressionID,
		Context: models.EventContext{
			ClickX:       150,
			ClickY:       100,
			TimeOnPageMs: 30000,
			Fingerprint:  "clean-visitor",
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var decision models.ClickDecision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	assert.False(t, decision.Blocked)
	assert.Equal(t, "https://advertiser.example.com/landing", decision.RedirectURL)

	// Заблокированный клик: вне слота, без времени на странице
	w = env.send(t, http.MethodPost, "/track-click", true, &models.TrackClickInput{
		AdID:   5,
		SlotID: 10,
		SiteID: 1,
		Context: models.EventContext{
			ClickX:      -10,
			ClickY:      500,
			Fingerprint: "clean-visitor", // второй клик с того же отпечатка
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	assert.True(t, decision.Blocked)
	assert.GreaterOrEqual(t, decision.FraudScore, float64(50))
	assert.Empty(t, decision.RedirectURL)

	// Пересчёт агрегатов
	w = env.send(t, http.MethodPost, "/admin/refresh-views", false, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rollupReport service.RollupReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rollupReport))
	assert.Equal(t, 3, rollupReport.RowsScanned)

	// Метрики площадки из пересчитанных корзин
	w = env.send(t, http.MethodGet, "/metrics/site?site_id=1", false, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var totals models.EntityMetrics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &totals))
	assert.Equal(t, int64(1), totals.Impressions)
	assert.Equal(t, int64(2), totals.Clicks)

	// Счётчики слота догоняют асинхронно
	require.Eventually(t, func() bool {
		var imps, clicks int64
		err := env.db.Pool.QueryRow(context.Background(),
			`SELECT impressions, clicks FROM slots WHERE id = 10`,
		).Scan(&imps, &clicks)
		return err == nil && imps == 1 && clicks == 2
	}, 5*time.Second, 100*time.Millisecond)

	// Сверка инвентаря
	w = env.send(t, http.MethodPost, "/admin/reconcile-inventory", false, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var reconcileReport service.ReconcileReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reconcileReport))
	assert.Equal(t, 1, reconcileReport.SitesProcessed)

	var total, occupied, available int
	require.NoError(t, env.db.Pool.QueryRow(context.Background(),
		`SELECT total_slots, occupied_slots, available_slots FROM inventory_snapshots WHERE site_id = 1`,
	).Scan(&total, &occupied, &available))
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, occupied)
	assert.Equal(t, 0, available)
}

// TestIntegration_SiteKeyAuth проверяет аутентификацию площадок против живой БД и кэша
func TestIntegration_SiteKeyAuth(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	body := &models.TrackImpressionInput{AdID: 5, SlotID: 10, SiteID: 1}

	// Без ключа
	w := env.send(t, http.MethodPost, "/track-impression", false, body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// С неизвестным ключом
	req, _ := http.NewRequest(http.MethodPost, "/track-impression", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Site-Key", "unknown-key")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// С валидным ключом: второй запрос идёт через кэш площадок в redis
	w = env.send(t, http.MethodPost, "/track-impression", true, body)
	assert.Equal(t, http.StatusCreated, w.Code)
	w = env.send(t, http.MethodPost, "/track-impression", true, body)
	assert.Equal(t, http.StatusCreated, w.Code)
}
