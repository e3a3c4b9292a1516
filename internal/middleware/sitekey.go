package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/SergeiKhy/ad-tracker/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const siteContextKey = "auth_site"

// SiteAuthConfig конфигурация аутентификации площадок
type SiteAuthConfig struct {
	// HeaderName имя заголовка с site-ключом (по умолчанию: X-Site-Key)
	HeaderName string
	// CacheTTL время жизни площадки в кэше
	CacheTTL time.Duration
}

// DefaultSiteAuthConfig конфигурация по умолчанию
var DefaultSiteAuthConfig = SiteAuthConfig{
	HeaderName: "X-Site-Key",
	CacheTTL:   time.Minute,
}

// SiteAuth middleware для аутентификации площадок по site-ключу
type SiteAuth struct {
	config    SiteAuthConfig
	siteRepo  repository.SiteRepository
	cacheRepo repository.CacheRepository
	logger    *zap.Logger
}

// NewSiteAuth создаёт новый site-key middleware
func NewSiteAuth(config SiteAuthConfig, siteRepo repository.SiteRepository, cacheRepo repository.CacheRepository, logger *zap.Logger) *SiteAuth {
	if config.HeaderName == "" {
		config.HeaderName = DefaultSiteAuthConfig.HeaderName
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultSiteAuthConfig.CacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteAuth{
		config:    config,
		siteRepo:  siteRepo,
		cacheRepo: cacheRepo,
		logger:    logger,
	}
}

// Middleware возвращает Gin handler: резолвит площадку по ключу и кладёт её в контекст
func (sa *SiteAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		siteKey := c.GetHeader(sa.config.HeaderName)

		// Запасной вариант - заголовок Authorization с Bearer схемой
		if siteKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				siteKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if siteKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_site_key",
				"message": "Требуется site-ключ. Передайте его через заголовок X-Site-Key или Authorization: Bearer",
			})
			c.Abort()
			return
		}

		keyHash := HashSiteKey(siteKey)

		site, err := sa.resolveSite(c, keyHash)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_site_key",
				"message": "Невалидный site-ключ",
			})
			c.Abort()
			return
		}

		// Сверка хэшей constant-time, несмотря на выборку по хэшу
		if subtle.ConstantTimeCompare([]byte(keyHash), []byte(site.KeyHash)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_site_key",
				"message": "Невалидный site-ключ",
			})
			c.Abort()
			return
		}

		if site.Status != models.SiteStatusActive {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "site_suspended",
				"message": "Площадка приостановлена",
			})
			c.Abort()
			return
		}

		c.Set(siteContextKey, site)
		c.Next()
	}
}

// resolveSite ищет площадку сначала в кэше, затем в БД
func (sa *SiteAuth) resolveSite(c *gin.Context, keyHash string) (*models.Site, error) {
	ctx := c.Request.Context()

	site, err := sa.cacheRepo.GetSite(ctx, keyHash)
	if err == nil {
		return site, nil
	}

	site, err = sa.siteRepo.GetByKeyHash(ctx, keyHash)
	if err != nil {
		return nil, err
	}

	if err := sa.cacheRepo.SetSite(ctx, keyHash, site, sa.config.CacheTTL); err != nil {
		sa.logger.Debug("Не удалось закэшировать площадку", zap.Error(err))
	}

	return site, nil
}

// HashSiteKey возвращает hex SHA-256 от site-ключа; в БД хранятся только хэши
func HashSiteKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// SiteFromContext извлекает аутентифицированную площадку из контекста
func SiteFromContext(c *gin.Context) (*models.Site, bool) {
	value, exists := c.Get(siteContextKey)
	if !exists {
		return nil, false
	}
	site, ok := value.(*models.Site)
	return site, ok
}
