package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Judge0    Judge0Config
	Grading   GradingConfig   `mapstructure:"grading"`
	Session   SessionConfig   `mapstructure:"session"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type ServerConfig struct {
	Port         string
	Mode         string
	AdminKeyHash string `mapstructure:"admin_key_hash"` // bcrypt hash of the operator API key
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

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type Judge0Config struct {
	URL          string
	APIKey       string        `mapstructure:"api_key"`
	RapidAPIHost string        `mapstructure:"rapid_api_host"`
	RapidAPIKey  string        `mapstructure:"rapid_api_key"`
	PollInterval time.Duration `mapstructure:"poll_interval_seconds"`
	MaxWait      time.Duration `mapstructure:"max_wait_seconds"`
}

type GradingConfig struct {
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff_seconds"`
}

type SessionConfig struct {
	MaxExtensionMinutes int `mapstructure:"max_extension_minutes"`
	DefaultTabBlurLimit int `mapstructure:"default_tab_blur_limit"`
}

type SweeperConfig struct {
	ExpiryInterval      time.Duration `mapstructure:"expiry_interval_seconds"`
	LeaderboardInterval time.Duration `mapstructure:"leaderboard_interval_seconds"`
	StatisticsInterval  time.Duration `mapstructure:"statistics_interval_seconds"`
	LeaderboardSize     int           `mapstructure:"leaderboard_size"`
	LeaderboardTTL      time.Duration `mapstructure:"leaderboard_ttl_seconds"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("ELEVATE")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")
	viper.BindEnv("server.admin_key_hash", "ADMIN_KEY_HASH")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Judge0
	viper.BindEnv("judge0.url", "JUDGE0_URL")
	viper.BindEnv("judge0.api_key", "JUDGE0_API_KEY")
	viper.BindEnv("judge0.rapid_api_host", "JUDGE0_RAPID_API_HOST")
	viper.BindEnv("judge0.rapid_api_key", "JUDGE0_RAPID_API_KEY")

	// Storage / Minio
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
	cfg.Judge0.PollInterval = cfg.Judge0.PollInterval * time.Second
	cfg.Judge0.MaxWait = cfg.Judge0.MaxWait * time.Second
	cfg.Grading.RetryBackoff = cfg.Grading.RetryBackoff * time.Second
	cfg.Sweeper.ExpiryInterval = cfg.Sweeper.ExpiryInterval * time.Second
	cfg.Sweeper.LeaderboardInterval = cfg.Sweeper.LeaderboardInterval * time.Second
	cfg.Sweeper.StatisticsInterval = cfg.Sweeper.StatisticsInterval * time.Second
	cfg.Sweeper.LeaderboardTTL = cfg.Sweeper.LeaderboardTTL * time.Second

	if cfg.Grading.Workers <= 0 {
		cfg.Grading.Workers = 4
	}
	if cfg.Grading.QueueSize <= 0 {
		cfg.Grading.QueueSize = 256
	}
	if cfg.Session.DefaultTabBlurLimit <= 0 {
		cfg.Session.DefaultTabBlurLimit = 999
	}
	if cfg.Sweeper.LeaderboardSize <= 0 {
		cfg.Sweeper.LeaderboardSize = 100
	}

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	return &cfg, nil
}
