package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Storage    StorageConfig
	Tracing    TracingConfig `mapstructure:"tracing"`
	Redis      RedisConfig
	AI         AIConfig
	Browser    BrowserConfig    `mapstructure:"browser"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Training   TrainingConfig   `mapstructure:"training"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type AIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`

	// 生成服务重试策略
	MaxAttempts        int `mapstructure:"max_attempts"`
	BackoffBaseSeconds int `mapstructure:"backoff_base_seconds"`
	BackoffCapSeconds  int `mapstructure:"backoff_cap_seconds"`
}

// BrowserConfig 浏览器自动化网关配置
type BrowserConfig struct {
	GatewayURL     string `mapstructure:"gateway_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ProcessingConfig 课程采集会话配置
type ProcessingConfig struct {
	MaxConsecutiveFailures int    `mapstructure:"max_consecutive_failures"`
	ModuleTextLimit        int    `mapstructure:"module_text_limit"`
	SessionStore           string `mapstructure:"session_store"` // memory | redis
}

// TrainingConfig 自适应训练配置
type TrainingConfig struct {
	QuestionCount int `mapstructure:"question_count"`
	RaiseStreak   int `mapstructure:"raise_streak"`
	LowerStreak   int `mapstructure:"lower_streak"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("MYTUTOR")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// AI
	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("ai.api_key", "AI_API_KEY")
	viper.BindEnv("ai.model", "AI_MODEL")

	// Browser gateway
	viper.BindEnv("browser.gateway_url", "BROWSER_GATEWAY_URL")

	// Storage
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour
	applyDefaults(&cfg)

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.AI.MaxAttempts <= 0 {
		cfg.AI.MaxAttempts = 5
	}
	if cfg.AI.BackoffBaseSeconds <= 0 {
		cfg.AI.BackoffBaseSeconds = 10
	}
	if cfg.AI.BackoffCapSeconds <= 0 {
		cfg.AI.BackoffCapSeconds = 60
	}
	if cfg.Processing.MaxConsecutiveFailures <= 0 {
		cfg.Processing.MaxConsecutiveFailures = 3
	}
	if cfg.Processing.ModuleTextLimit <= 0 {
		cfg.Processing.ModuleTextLimit = 10000
	}
	if cfg.Processing.SessionStore == "" {
		cfg.Processing.SessionStore = "memory"
	}
	if cfg.Training.QuestionCount <= 0 {
		cfg.Training.QuestionCount = 10
	}
	if cfg.Training.RaiseStreak <= 0 {
		cfg.Training.RaiseStreak = 3
	}
	if cfg.Training.LowerStreak <= 0 {
		cfg.Training.LowerStreak = 2
	}
	if cfg.Browser.TimeoutSeconds <= 0 {
		cfg.Browser.TimeoutSeconds = 60
	}
}
