package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション設定を表す
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Booking   BookingConfig
	Cache     CacheConfig
	Messaging MessagingConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	MigrationsDir string

	// 接続を使い回す上限
	ConnMaxLifetime time.Duration

	// 起動直後にDBがまだ受け付けていない場合の再試行
	ConnectRetries    int
	ConnectRetryDelay time.Duration
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Host        string
	Port        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// AuthConfig は認証設定（JWT の検証のみ）
type AuthConfig struct {
	JWTSecret string
}

// BookingConfig は予約処理の設定
type BookingConfig struct {
	// PendingTTL が0の場合、保留中の予約は自動キャンセルしない
	PendingTTL      time.Duration
	CleanupInterval time.Duration
	CleanupBatch    int
	LockTTL         time.Duration
	LockRetries     int
	LockRetryDelay  time.Duration
}

// CacheConfig はキャッシュ設定
type CacheConfig struct {
	AvailabilityTTL time.Duration
}

// MessagingConfig は予約イベント配信の設定
type MessagingConfig struct {
	Enabled bool
	Topic   string
}

// RateLimitConfig は予約作成のレート制限設定
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

// LogConfig はログ設定
type LogConfig struct {
	Env   string
	Level string
}

// MetricsConfig は /metrics の認証設定
type MetricsConfig struct {
	Username string
	Password string
}

// Load は環境変数から設定を読み込む
// DATABASE_URL / REDIS_URL が設定されている場合は個別の設定より優先する
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "postgres"),
			Password:      getEnv("DB_PASSWORD", "postgres"),
			DBName:        getEnv("DB_NAME", "ticket_booking"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:  getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),

			ConnMaxLifetime:   getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnectRetries:    getIntEnv("DB_CONNECT_RETRIES", 5),
			ConnectRetryDelay: getDurationEnv("DB_CONNECT_RETRY_DELAY", time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),

			DialTimeout: getDurationEnv("REDIS_DIAL_TIMEOUT", 3*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Booking: BookingConfig{
			PendingTTL:      getDurationEnv("BOOKING_PENDING_TTL", 0),
			CleanupInterval: getDurationEnv("BOOKING_CLEANUP_INTERVAL", time.Minute),
			CleanupBatch:    getIntEnv("BOOKING_CLEANUP_BATCH", 100),
			LockTTL:         getDurationEnv("BOOKING_LOCK_TTL", 10*time.Second),
			LockRetries:     getIntEnv("BOOKING_LOCK_RETRIES", 3),
			LockRetryDelay:  getDurationEnv("BOOKING_LOCK_RETRY_DELAY", 100*time.Millisecond),
		},
		Cache: CacheConfig{
			AvailabilityTTL: getDurationEnv("CACHE_AVAILABILITY_TTL", 5*time.Second),
		},
		Messaging: MessagingConfig{
			Enabled: getBoolEnv("MESSAGING_ENABLED", false),
			Topic:   getEnv("MESSAGING_TOPIC", "booking-events"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getBoolEnv("RATE_LIMIT_ENABLED", false),
			Capacity:       getIntEnv("RATE_LIMIT_CAPACITY", 10),
			RefillTokens:   getIntEnv("RATE_LIMIT_REFILL_TOKENS", 1),
			RefillInterval: getDurationEnv("RATE_LIMIT_REFILL_INTERVAL", time.Second),
			TTL:            getDurationEnv("RATE_LIMIT_TTL", 10*time.Minute),
			Prefix:         getEnv("RATE_LIMIT_PREFIX", "rl:booking"),
		},
		Log: LogConfig{
			Env:   getEnv("APP_ENV", "development"),
			Level: getEnv("LOG_LEVEL", ""),
		},
		Metrics: MetricsConfig{
			Username: getEnv("METRICS_USERNAME", ""),
			Password: getEnv("METRICS_PASSWORD", ""),
		},
	}

	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		applyDatabaseURL(&cfg.Database, raw)
	}
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		applyRedisURL(&cfg.Redis, raw)
	}
	return cfg
}

func applyDatabaseURL(c *DatabaseConfig, raw string) {
	u, err := url.Parse(raw)
	if err != nil {
		return
	}
	c.Host = u.Hostname()
	if port := u.Port(); port != "" {
		c.Port = port
	}
	if u.User != nil {
		c.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
	c.DBName = strings.TrimPrefix(u.Path, "/")
	// マネージドDBはTLS前提のため、未指定なら require
	c.SSLMode = "require"
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.SSLMode = mode
	}
}

func applyRedisURL(c *RedisConfig, raw string) {
	u, err := url.Parse(raw)
	if err != nil {
		return
	}
	c.Host = u.Hostname()
	if port := u.Port(); port != "" {
		c.Port = port
	}
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			c.DB = n
		}
	}
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// URL は golang-migrate 用の接続URLを返す
func (c *DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// AuthEnabled は /metrics に Basic 認証を掛けるかを返す
func (c MetricsConfig) AuthEnabled() bool {
	return c.Username != "" && c.Password != ""
}

// CleanerEnabled は保留中予約の自動キャンセルが有効かを返す
func (c *BookingConfig) CleanerEnabled() bool {
	return c.PendingTTL > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
