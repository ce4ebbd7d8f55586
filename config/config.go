package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr string

	// Logging
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	TimelineCacheSize int
	TimelineCacheTTL  time.Duration

	// MinIO clip storage
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// Owner authentication. An empty hash disables auth.
	OwnerPasswordHash string
	JWTSecret         string
	TokenTTL          time.Duration

	// Geolocation
	GeoTimeout     time.Duration
	GeoMaximumAge  time.Duration
	GeoFixFile     string
	ManualEntryTTL time.Duration // how long an invalid-coordinates indication stays visible

	// Audio capture
	FFmpegPath        string
	FFmpegInputFormat string
	FFmpegInputDevice string
	ClipMIMEType      string
	TickInterval      time.Duration
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("10s", "1m30s").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() does not override variables that are already set.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for passwords
		DBName:     getEnv("DB_NAME", "geojournal"),

		RedisHost:         getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		TimelineCacheSize: getEnvInt("TIMELINE_CACHE_SIZE", 200),
		TimelineCacheTTL:  getEnvDuration("TIMELINE_CACHE_TTL", 10*time.Minute),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "geojournal"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		OwnerPasswordHash: getEnv("OWNER_PASSWORD_HASH", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		TokenTTL:          getEnvDuration("TOKEN_TTL", 24*time.Hour),

		GeoTimeout:     getEnvDuration("GEO_TIMEOUT", 10*time.Second),
		GeoMaximumAge:  getEnvDuration("GEO_MAXIMUM_AGE", 0),
		GeoFixFile:     getEnv("GEO_FIX_FILE", "/run/geojournal/fix"),
		ManualEntryTTL: getEnvDuration("MANUAL_ENTRY_INVALID_TTL", 2*time.Second),

		FFmpegPath:        getEnv("FFMPEG_PATH", "ffmpeg"),
		FFmpegInputFormat: getEnv("FFMPEG_INPUT_FORMAT", "alsa"),
		FFmpegInputDevice: getEnv("FFMPEG_INPUT_DEVICE", "default"),
		ClipMIMEType:      getEnv("CLIP_MIME_TYPE", "audio/webm"),
		TickInterval:      getEnvDuration("TICK_INTERVAL", time.Second),
	}
}

// AuthEnabled reports whether the owner password is configured.
func (c *Config) AuthEnabled() bool {
	return c.OwnerPasswordHash != ""
}
