package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/middleware"
	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/SergeiKhy/ad-tracker/internal/service/mocks"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestRateLimiter_Middleware проверяет работу rate limiter middleware
func TestRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Лимит 5 запросов в секунду и burst 5
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 5,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	})

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Первые 5 запросов проходят в пределах burst лимита
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	// Следующие запросы ограничиваются
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

// TestRateLimiter_MiddlewareWithKey проверяет изоляцию квот по site-ключу:
// одна площадка не выедает квоту другой
func TestRateLimiter_MiddlewareWithKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 2,
		BurstSize:         2,
		CleanupInterval:   time.Minute,
	})

	router := gin.New()
	router.Use(rl.MiddlewareWithKey(func(c *gin.Context) string {
		return c.GetHeader("X-Site-Key")
	}))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	send := func(key string) int {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Site-Key", key)
		router.ServeHTTP(w, req)
		return w.Code
	}

	// Площадка A исчерпывает свою квоту
	assert.Equal(t, http.StatusOK, send("site-a"))
	assert.Equal(t, http.StatusOK, send("site-a"))
	assert.Equal(t, http.StatusTooManyRequests, send("site-a"))

	// Квота площадки B не тронута
	assert.Equal(t, http.StatusOK, send("site-b"))
}

// setupSiteAuth роутер с site-key аутентификацией и одной активной площадкой
func setupSiteAuth(t *testing.T) (*gin.Engine, *mocks.MockSiteRepository, *mocks.MockCacheRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	siteRepo := mocks.NewMockSiteRepository()
	cacheRepo := mocks.NewMockCacheRepository()
	logger, _ := zap.NewDevelopment()

	siteRepo.Add(&models.Site{
		ID:      1,
		Domain:  "news.example.com",
		KeyHash: middleware.HashSiteKey("valid-site-key"),
		Status:  models.SiteStatusActive,
	})

	sa := middleware.NewSiteAuth(middleware.DefaultSiteAuthConfig, siteRepo, cacheRepo, logger)

	router := gin.New()
	router.Use(sa.Middleware())
	router.POST("/track", func(c *gin.Context) {
		site, ok := middleware.SiteFromContext(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"site_id": site.ID})
	})

	return router, siteRepo, cacheRepo
}

func sendTrack(router *gin.Engine, header, value string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/track", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	router.ServeHTTP(w, req)
	return w
}

// TestSiteAuth_ValidKey проверяет успешную аутентификацию по заголовку X-Site-Key
func TestSiteAuth_ValidKey(t *testing.T) {
	router, _, _ := setupSiteAuth(t)

	w := sendTrack(router, "X-Site-Key", "valid-site-key")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"site_id":1`)
}

// TestSiteAuth_BearerFallback проверяет запасную схему Authorization: Bearer
func TestSiteAuth_BearerFallback(t *testing.T) {
	router, _, _ := setupSiteAuth(t)

	w := sendTrack(router, "Authorization", "Bearer valid-site-key")

	assert.Equal(t, http.StatusOK, w.Code)
}

// TestSiteAuth_MissingKey проверяет отказ без ключа
func TestSiteAuth_MissingKey(t *testing.T) {
	router, _, _ := setupSiteAuth(t)

	w := sendTrack(router, "", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing_site_key")
}

// TestSiteAuth_InvalidKey проверяет отказ по неизвестному ключу
func TestSiteAuth_InvalidKey(t *testing.T) {
	router, _, _ := setupSiteAuth(t)

	w := sendTrack(router, "X-Site-Key", "wrong-key")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_site_key")
}

// TestSiteAuth_SuspendedSite проверяет отказ приостановленной площадке
func TestSiteAuth_SuspendedSite(t *testing.T) {
	router, siteRepo, _ := setupSiteAuth(t)

	siteRepo.Add(&models.Site{
		ID:      2,
		Domain:  "spam.example.com",
		KeyHash: middleware.HashSiteKey("suspended-key"),
		Status:  models.SiteStatusSuspended,
	})

	w := sendTrack(router, "X-Site-Key", "suspended-key")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "site_suspended")
}

// TestSiteAuth_CachesSite проверяет, что площадка кэшируется после первого запроса
func TestSiteAuth_CachesSite(t *testing.T) {
	router, _, cacheRepo := setupSiteAuth(t)

	w := sendTrack(router, "X-Site-Key", "valid-site-key")
	require.Equal(t, http.StatusOK, w.Code)

	cached, err := cacheRepo.GetSite(context.Background(), middleware.HashSiteKey("valid-site-key"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.ID)
}
