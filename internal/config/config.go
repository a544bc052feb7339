package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Config はクライアントコア全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// API
	APIBaseURL         string
	HTTPConnectTimeout time.Duration
	HTTPReadTimeout    time.Duration
	APIRateLimit       float64 // req/sec
	APIRateBurst       int

	// Database
	DatabaseURL string

	// Paging
	TimelinePageSize        int
	TimelineInitialLoadSize int
	ProfilePageSize         int
	TimelinePollInterval    time.Duration // 0以下で定期更新しない

	// Cache
	UserCacheRetentionDays int

	// Logging
	LogLevel          slog.Level
	LogEndpointSuffix string

	// Bridge
	BridgePort string

	// Time
	Location *time.Location
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.APIBaseURL = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "API_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DatabaseURL = getEnvString("DATABASE_URL", DefaultDatabaseURL())
	cfg.HTTPConnectTimeout = getEnvDuration("HTTP_CONNECT_TIMEOUT", 3*time.Second)
	cfg.HTTPReadTimeout = getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second)
	cfg.APIRateLimit = getEnvFloat("API_RATE_LIMIT", 10)
	cfg.APIRateBurst = getEnvInt("API_RATE_BURST", 20)
	cfg.TimelinePageSize = getEnvInt("TIMELINE_PAGE_SIZE", 3)
	cfg.TimelineInitialLoadSize = getEnvInt("TIMELINE_INITIAL_LOAD_SIZE", 6)
	cfg.ProfilePageSize = getEnvInt("PROFILE_PAGE_SIZE", 5)
	cfg.TimelinePollInterval = getEnvDuration("TIMELINE_POLL_INTERVAL", 10*time.Minute)
	cfg.UserCacheRetentionDays = getEnvInt("USER_CACHE_RETENTION_DAYS", 30)
	cfg.LogLevel = getEnvLevel("LOG_LEVEL", slog.LevelInfo)
	cfg.LogEndpointSuffix = getEnvString("LOG_ENDPOINT_SUFFIX", "answers")
	cfg.BridgePort = getEnvString("BRIDGE_PORT", "8080")

	loc, err := time.LoadLocation(getEnvString("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.TimelineInitialLoadSize < cfg.TimelinePageSize {
		cfg.TimelineInitialLoadSize = cfg.TimelinePageSize
	}

	return cfg, nil
}

// DefaultDatabaseURL は端末のXDGデータディレクトリ配下のSQLiteキャッシュを指すURLを返す。
func DefaultDatabaseURL() string {
	return "sqlite://" + filepath.Join(xdg.DataHome, "dailyq", "dailyq.db")
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
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
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

func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
