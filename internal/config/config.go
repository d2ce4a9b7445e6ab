package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL  string
	StoreTimeout time.Duration

	// Launcher
	LauncherBaseURL string
	LauncherTimeout time.Duration
	FallbackCommand string
	FallbackStopKey string
	FallbackTimeout time.Duration

	// Session
	DefaultTimerMinutes int
	TickInterval        time.Duration
	ShutdownTimeout     time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitTap     int

	// Hardware IPC (Redis)。RedisAddrが空の場合は無効
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	KioskEventChannel string

	// Telemetry (RabbitMQ)。RabbitMQURLが空の場合は無効
	RabbitMQURL    string
	TelemetryQueue string
	KioskID        string

	// Reaper
	StaleSessionAfter    time.Duration
	StaleSessionInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む。既に設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envは任意
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.StoreTimeout = getEnvDuration("STORE_TIMEOUT", 5*time.Second)
	cfg.LauncherBaseURL = getEnvString("LAUNCHER_BASE_URL", "http://127.0.0.1:8765")
	cfg.LauncherTimeout = getEnvDuration("LAUNCHER_TIMEOUT", 3*time.Second)
	cfg.FallbackCommand = getEnvString("FALLBACK_COMMAND", "xdotool key")
	cfg.FallbackStopKey = getEnvString("FALLBACK_STOP_KEY", "Escape")
	cfg.FallbackTimeout = getEnvDuration("FALLBACK_TIMEOUT", 5*time.Second)
	cfg.DefaultTimerMinutes = getEnvInt("DEFAULT_TIMER_MINUTES", 8)
	cfg.TickInterval = getEnvDuration("TICK_INTERVAL", time.Second)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitTap = getEnvInt("RATE_LIMIT_TAP", 30)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.KioskEventChannel = getEnvString("KIOSK_EVENT_CHANNEL", "kiosk:events")
	cfg.RabbitMQURL = getEnvString("RABBITMQ_URL", "")
	cfg.TelemetryQueue = getEnvString("TELEMETRY_QUEUE", "kiosk.session.events")
	cfg.KioskID = getEnvString("KIOSK_ID", defaultKioskID())
	cfg.StaleSessionAfter = getEnvDuration("STALE_SESSION_AFTER", 3*time.Hour)
	cfg.StaleSessionInterval = getEnvDuration("STALE_SESSION_INTERVAL", 10*time.Minute)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	// 0以下のタイマーは起動直後のセッションを即時終了させるため既定値に戻す
	if cfg.DefaultTimerMinutes <= 0 {
		cfg.DefaultTimerMinutes = 8
	}

	return cfg, nil
}

func defaultKioskID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "kiosk"
	}
	return host
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
