package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Backend   BackendConfig
	R2        R2Config
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	// WebAppOrigin is the origin the Mini App page is served from (CORS).
	WebAppOrigin string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SessionConfig struct {
	Secret   string
	TTLHours int
}

type RateLimitConfig struct {
	LaunchPerMin    int
	ThumbnailPerMin int
	SubmitPerHour   int
}

// BackendConfig describes the bot backend that receives edited metadata.
type BackendConfig struct {
	URL          string
	Timeout      int // seconds
	MaxRetries   int
	RetryDelayMs int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("SESSION_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.webapp_origin", "WEBAPP_ORIGIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("session.secret", "SESSION_SECRET")
	_ = viper.BindEnv("session.ttl_hours", "SESSION_TTL_HOURS")
	_ = viper.BindEnv("ratelimit.launch_per_min", "RATELIMIT_LAUNCH_PER_MIN")
	_ = viper.BindEnv("ratelimit.thumbnail_per_min", "RATELIMIT_THUMBNAIL_PER_MIN")
	_ = viper.BindEnv("ratelimit.submit_per_hour", "RATELIMIT_SUBMIT_PER_HOUR")
	_ = viper.BindEnv("backend.url", "BACKEND_URL")
	_ = viper.BindEnv("backend.timeout", "BACKEND_TIMEOUT")
	_ = viper.BindEnv("backend.max_retries", "BACKEND_MAX_RETRIES")
	_ = viper.BindEnv("backend.retry_delay_ms", "BACKEND_RETRY_DELAY_MS")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.webapp_origin", "*")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("session.secret", "change-me-in-production")
	viper.SetDefault("session.ttl_hours", 24)
	viper.SetDefault("ratelimit.launch_per_min", 30)
	viper.SetDefault("ratelimit.thumbnail_per_min", 20)
	viper.SetDefault("ratelimit.submit_per_hour", 30)

	// Backend defaults: the bot may spend minutes re-tagging a file,
	// 511 is its "try again" signal.
	viper.SetDefault("backend.timeout", 900)
	viper.SetDefault("backend.max_retries", 3)
	viper.SetDefault("backend.retry_delay_ms", 500)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("server.port"),
			Env:          viper.GetString("server.env"),
			LogLevel:     viper.GetString("server.log_level"),
			WebAppOrigin: viper.GetString("server.webapp_origin"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Session: SessionConfig{
			Secret:   viper.GetString("session.secret"),
			TTLHours: viper.GetInt("session.ttl_hours"),
		},
		RateLimit: RateLimitConfig{
			LaunchPerMin:    viper.GetInt("ratelimit.launch_per_min"),
			ThumbnailPerMin: viper.GetInt("ratelimit.thumbnail_per_min"),
			SubmitPerHour:   viper.GetInt("ratelimit.submit_per_hour"),
		},
		Backend: BackendConfig{
			URL:          viper.GetString("backend.url"),
			Timeout:      viper.GetInt("backend.timeout"),
			MaxRetries:   viper.GetInt("backend.max_retries"),
			RetryDelayMs: viper.GetInt("backend.retry_delay_ms"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
		},
	}

	return cfg, nil
}
