package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Dedup scopes for product view tracking.
const (
	// DedupScopeSession counts one view per session token per product inside the dedup window.
	DedupScopeSession = "session"
	// DedupScopeNone counts every view.
	DedupScopeNone = "none"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort    string `validate:"required,numeric"`
	JWTSecret  string `validate:"required"`
	CronSecret string
	// Gin framework configuration
	GinMode string `validate:"omitempty,oneof=debug release test"`
	GinPath string
	// Database
	DBDriver    string `validate:"oneof=mysql sqlite"`
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string `validate:"required_if=DBDriver sqlite"`
	// Redis for dashboard caching; empty host disables caching
	RedisHost     string
	RedisPort     int `validate:"gte=0,lte=65535"`
	RedisDB       int `validate:"gte=0"`
	RedisPassword string
	// Logging configuration
	LogLevel      string `validate:"oneof=debug info warn error dpanic panic fatal"`
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// HTTP surface
	AllowedOrigins     []string
	RateLimitPerMinute int `validate:"gt=0"`
	AdminUsernames     []string
	SessionCookieName  string `validate:"required"`
	// Analytics
	ViewDedupWindowHours   int    `validate:"gt=0"`
	ViewDedupScope         string `validate:"oneof=session none"`
	ViewEventRetentionDays int    `validate:"gte=0"`
	StatsTimezone          string
	DashboardCacheSeconds  int `validate:"gte=0"`
}

// ViewDedupWindow returns the trailing window inside which repeat views from one session are not recounted.
func (c AppConfig) ViewDedupWindow() time.Duration {
	return time.Duration(c.ViewDedupWindowHours) * time.Hour
}

// ViewEventRetention returns how long view events are kept; zero means forever.
func (c AppConfig) ViewEventRetention() time.Duration {
	return time.Duration(c.ViewEventRetentionDays) * 24 * time.Hour
}

// StatsLocation resolves the timezone used to derive month keys. Falls back to time.Local.
func (c AppConfig) StatsLocation() *time.Location {
	if c.StatsTimezone == "" || strings.EqualFold(c.StatsTimezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.StatsTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> defaults -> .env -> environment variable overrides
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Fatalf("invalid config/config.json: %v", err)
	}

	applyDefaults(&cfg)

	// .env only fills variables that are not already set in the process environment
	_ = godotenv.Load()
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}
	if err := Validate(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules on a loaded configuration.
func Validate(c AppConfig) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.ViewEventRetentionDays > 0 && c.ViewEventRetention() < c.ViewDedupWindow() {
		return errRetentionShorterThanWindow
	}
	if c.StatsTimezone != "" && !strings.EqualFold(c.StatsTimezone, "local") {
		if _, err := time.LoadLocation(c.StatsTimezone); err != nil {
			return err
		}
	}
	return nil
}

type configError string

func (e configError) Error() string { return string(e) }

const errRetentionShorterThanWindow = configError("view event retention must not be shorter than the dedup window")

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads JSON file into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if v, ok := m[key]; ok {
			if arr, ok := v.([]any); ok {
				res := make([]string, 0, len(arr))
				for _, it := range arr {
					if s, ok := it.(string); ok {
						res = append(res, s)
					}
				}
				return res
			}
		}
		return nil
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		out.CronSecret = getString(app, "CronSecret")
		if v := getInt(app, "RateLimitPerMinute"); v != 0 {
			out.RateLimitPerMinute = v
		}
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
		if list := getStringSlice(app, "AdminUsernames"); len(list) > 0 {
			out.AdminUsernames = list
		}
		if v := getString(app, "SessionCookieName"); v != "" {
			out.SessionCookieName = v
		}
	}

	if g, ok := raw["gin"].(map[string]any); ok {
		if v := getString(g, "Mode"); v != "" {
			out.GinMode = v
		}
		if v := getString(g, "LogPath"); v != "" {
			out.GinPath = v
		}
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
		out.SQLitePath = getString(dbs, "SQLitePath")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		if v := getInt(rds, "RedisPort"); v != 0 {
			out.RedisPort = v
		}
		if v := getInt(rds, "RedisDB"); v != 0 {
			out.RedisDB = v
		}
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		if v := getString(lg, "Level"); v != "" {
			out.LogLevel = v
		}
		if v := getString(lg, "Path"); v != "" {
			out.LogPath = v
		}
		if v := getInt(lg, "MaxSizeMB"); v != 0 {
			out.LogMaxSizeMB = v
		}
		if v := getInt(lg, "MaxBackups"); v != 0 {
			out.LogMaxBackups = v
		}
		if v := getInt(lg, "MaxAgeDays"); v != 0 {
			out.LogMaxAgeDays = v
		}
		out.LogCompress = getBool(lg, "Compress")
	}

	if an, ok := raw["analytics"].(map[string]any); ok {
		if v := getInt(an, "ViewDedupWindowHours"); v != 0 {
			out.ViewDedupWindowHours = v
		}
		if v := getString(an, "ViewDedupScope"); v != "" {
			out.ViewDedupScope = v
		}
		if v := getInt(an, "ViewEventRetentionDays"); v != 0 {
			out.ViewEventRetentionDays = v
		}
		if v := getString(an, "StatsTimezone"); v != "" {
			out.StatsTimezone = v
		}
		if v := getInt(an, "DashboardCacheSeconds"); v != 0 {
			out.DashboardCacheSeconds = v
		}
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "storefront"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "data/storefront.db"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 120
	}
	if c.SessionCookieName == "" {
		c.SessionCookieName = "sf_session"
	}
	if c.ViewDedupWindowHours == 0 {
		c.ViewDedupWindowHours = 24
	}
	if c.ViewDedupScope == "" {
		c.ViewDedupScope = DedupScopeSession
	}
	if c.DashboardCacheSeconds == 0 {
		c.DashboardCacheSeconds = 300
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("CRON_SECRET", ""); v != "" {
		c.CronSecret = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = strings.ToLower(v)
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("SQLITE_PATH", ""); v != "" {
		c.SQLitePath = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("ADMIN_USERNAMES", ""); v != "" {
		c.AdminUsernames = splitAndTrim(v)
	}
	if v := getEnv("SESSION_COOKIE_NAME", ""); v != "" {
		c.SessionCookieName = v
	}
	if v := getEnv("VIEW_DEDUP_WINDOW_HOURS", ""); v != "" {
		c.ViewDedupWindowHours = mustParseInt(v)
	}
	if v := getEnv("VIEW_DEDUP_SCOPE", ""); v != "" {
		c.ViewDedupScope = strings.ToLower(v)
	}
	if v := getEnv("VIEW_EVENT_RETENTION_DAYS", ""); v != "" {
		c.ViewEventRetentionDays = mustParseInt(v)
	}
	if v := getEnv("STATS_TIMEZONE", ""); v != "" {
		c.StatsTimezone = v
	}
	if v := getEnv("DASHBOARD_CACHE_SECONDS", ""); v != "" {
		c.DashboardCacheSeconds = mustParseInt(v)
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
