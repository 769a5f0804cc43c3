package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	LMS       LMSConfig       `mapstructure:"lms"`
	Voice     VoiceConfig     `mapstructure:"voice"`
	Proctor   ProctorConfig   `mapstructure:"proctor"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
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

// LMSConfig 主站协作方（题库/成绩）接口配置
type LMSConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// VoiceConfig 语音识别服务配置
type VoiceConfig struct {
	AnalyzeURL string `mapstructure:"analyze_url"`
	APIKey     string `mapstructure:"api_key"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// ProctorConfig 监考引擎参数
type ProctorConfig struct {
	MaxViolations       int `mapstructure:"max_violations"`        // 违规上限，默认2
	MaxAttempts         int `mapstructure:"max_attempts"`          // 每题作答上限，默认2
	OrderTTLHours       int `mapstructure:"order_ttl_hours"`       // 出题顺序缓存有效期，默认2小时
	HeartbeatIntervalMS int `mapstructure:"heartbeat_interval_ms"` // 客户端可见性心跳间隔，默认500ms
	HeartbeatStaleMS    int `mapstructure:"heartbeat_stale_ms"`    // 心跳超时判定阈值
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("LORDMINDS")
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

	// 协作方
	viper.BindEnv("lms.base_url", "LMS_BASE_URL")
	viper.BindEnv("lms.api_key", "LMS_API_KEY")
	viper.BindEnv("voice.analyze_url", "VOICE_ANALYZE_URL")
	viper.BindEnv("voice.api_key", "VOICE_API_KEY")

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

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	applyProctorDefaults(&cfg.Proctor)

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

func applyProctorDefaults(p *ProctorConfig) {
	if p.MaxViolations <= 0 {
		p.MaxViolations = 2
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 2
	}
	if p.OrderTTLHours <= 0 {
		p.OrderTTLHours = 2
	}
	if p.HeartbeatIntervalMS <= 0 {
		p.HeartbeatIntervalMS = 500
	}
	if p.HeartbeatStaleMS <= 0 {
		p.HeartbeatStaleMS = p.HeartbeatIntervalMS * 4
	}
}

func (p ProctorConfig) OrderTTL() time.Duration {
	return time.Duration(p.OrderTTLHours) * time.Hour
}

func (p ProctorConfig) HeartbeatStale() time.Duration {
	return time.Duration(p.HeartbeatStaleMS) * time.Millisecond
}
