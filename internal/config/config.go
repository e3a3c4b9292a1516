package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Fraud     FraudConfig
	Rollup    RollupConfig
	Inventory InventoryConfig
}

type AppConfig struct {
	Port string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host string
	Port string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// FraudConfig политика фрод-скоринга: порог и веса сигналов задаются
// снаружи, а не в бизнес-логике
type FraudConfig struct {
	Threshold      float64            // Порог блокировки, шкала 0-100
	Weights        map[string]float64 // Вес каждого сигнала (имя сигнала -> вес)
	MinDwellMs     int                // Минимальное правдоподобное время на странице
	MinVelocityMs  int                // Минимальный интервал показ -> клик
	RepeatWindow   time.Duration      // Окно подсчёта повторных кликов
	RepeatMaxCount int                // Количество кликов в окне, дающее максимум подозрения
}

type RollupConfig struct {
	Interval time.Duration // Период фонового пересчёта агрегатов
}

type InventoryConfig struct {
	Interval time.Duration // Период фоновой сверки инвентаря
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")

	// Rate limit config
	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 50
	}
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 100
	}

	cfg.Fraud = loadFraudConfig()

	cfg.Rollup.Interval = viper.GetDuration("ROLLUP_INTERVAL")
	if cfg.Rollup.Interval == 0 {
		cfg.Rollup.Interval = 15 * time.Minute
	}
	cfg.Inventory.Interval = viper.GetDuration("INVENTORY_INTERVAL")
	if cfg.Inventory.Interval == 0 {
		cfg.Inventory.Interval = 10 * time.Minute
	}

	return &cfg, nil
}

// loadFraudConfig читает политику фрод-скоринга с дефолтами
func loadFraudConfig() FraudConfig {
	fc := FraudConfig{
		Threshold: viper.GetFloat64("FRAUD_THRESHOLD"),
		Weights: map[string]float64{
			"short_dwell":    viper.GetFloat64("FRAUD_WEIGHT_SHORT_DWELL"),
			"out_of_bounds":  viper.GetFloat64("FRAUD_WEIGHT_OUT_OF_BOUNDS"),
			"click_velocity": viper.GetFloat64("FRAUD_WEIGHT_CLICK_VELOCITY"),
			"repeat_click":   viper.GetFloat64("FRAUD_WEIGHT_REPEAT_CLICK"),
		},
		MinDwellMs:     viper.GetInt("FRAUD_MIN_DWELL_MS"),
		MinVelocityMs:  viper.GetInt("FRAUD_MIN_VELOCITY_MS"),
		RepeatWindow:   viper.GetDuration("FRAUD_REPEAT_WINDOW"),
		RepeatMaxCount: viper.GetInt("FRAUD_REPEAT_MAX_COUNT"),
	}

	if fc.Threshold == 0 {
		fc.Threshold = 70
	}
	for name, w := range fc.Weights {
		if w == 0 {
			fc.Weights[name] = 25
		}
	}
	if fc.MinDwellMs == 0 {
		fc.MinDwellMs = 2000
	}
	if fc.MinVelocityMs == 0 {
		fc.MinVelocityMs = 1000
	}
	if fc.RepeatWindow == 0 {
		fc.RepeatWindow = 5 * time.Minute
	}
	if fc.RepeatMaxCount == 0 {
		fc.RepeatMaxCount = 5
	}

	return fc
}
